package notify

import (
	"sync"

	"coinpulse/pkg/logger"
)

// queuedDelivery 离线期间攒下的一次渠道投递
type queuedDelivery struct {
	channel string
	msg     *Message
}

// OfflineQueue 离线队列：FIFO，上线后按入队顺序回放。
// 回放时临时失败的重新排到队尾，永久失败的丢弃并告警
type OfflineQueue struct {
	mu    sync.Mutex
	items []queuedDelivery
}

func NewOfflineQueue() *OfflineQueue {
	return &OfflineQueue{}
}

func (q *OfflineQueue) Enqueue(channel string, msg *Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, queuedDelivery{channel: channel, msg: msg})
	logger.Debugf("offline queue: +1 %s delivery for user %d (depth %d)",
		channel, msg.UserID, len(q.items))
}

func (q *OfflineQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain 回放队列。deliver返回的错误按Temporary分流：
// 临时错误的条目回到队尾等下次上线，其余丢弃
func (q *OfflineQueue) Drain(deliver func(channel string, msg *Message) error) {
	q.mu.Lock()
	pending := q.items
	q.items = nil
	q.mu.Unlock()

	if len(pending) == 0 {
		return
	}
	logger.Infof("draining offline queue, %d deliveries", len(pending))

	var retry []queuedDelivery
	for _, it := range pending {
		err := deliver(it.channel, it.msg)
		if err == nil {
			continue
		}
		if Temporary(err) {
			retry = append(retry, it)
			continue
		}
		logger.Warnf("offline delivery via %s for user %d dropped: %v",
			it.channel, it.msg.UserID, err)
	}

	if len(retry) > 0 {
		q.mu.Lock()
		// 回放期间新入队的排在重试项前面，保持先来先走
		q.items = append(q.items, retry...)
		q.mu.Unlock()
	}
}
