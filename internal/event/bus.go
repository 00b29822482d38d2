package event

import (
	"sync"

	"coinpulse/internal/market"
)

// 应用内的类型化发布订阅，由组装方创建并显式注入，不做全局注册表。
// Subscribe 返回取消函数，Close 统一回收所有订阅。

// Connectivity 连通性事件：true=online，false=offline
type Connectivity struct {
	Online bool
}

// NotificationPushed 路由器产生了一条面向用户的新通知（或合并更新），
// websocket网关订阅后推给在线客户端
type NotificationPushed struct {
	UserID  int64
	Payload []byte // 已序列化的通知JSON
}

type topic[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan T
}

func newTopic[T any]() *topic[T] {
	return &topic[T]{subs: make(map[int]chan T)}
}

func (t *topic[T]) subscribe(buf int) (<-chan T, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	ch := make(chan T, buf)
	t.subs[id] = ch

	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if c, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(c)
		}
	}
}

// publish 非阻塞投递，订阅者消费过慢时丢弃而不是卡住发布方
func (t *topic[T]) publish(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

func (t *topic[T]) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, ch := range t.subs {
		delete(t.subs, id)
		close(ch)
	}
}

// Bus 应用级事件总线
type Bus struct {
	ticks         *topic[market.Tick]
	connectivity  *topic[Connectivity]
	notifications *topic[NotificationPushed]
}

func NewBus() *Bus {
	return &Bus{
		ticks:         newTopic[market.Tick](),
		connectivity:  newTopic[Connectivity](),
		notifications: newTopic[NotificationPushed](),
	}
}

func (b *Bus) PublishTick(t market.Tick)                { b.ticks.publish(t) }
func (b *Bus) PublishConnectivity(c Connectivity)       { b.connectivity.publish(c) }
func (b *Bus) PublishNotification(n NotificationPushed) { b.notifications.publish(n) }

func (b *Bus) SubscribeTicks() (<-chan market.Tick, func()) {
	return b.ticks.subscribe(64)
}

func (b *Bus) SubscribeConnectivity() (<-chan Connectivity, func()) {
	return b.connectivity.subscribe(8)
}

func (b *Bus) SubscribeNotifications() (<-chan NotificationPushed, func()) {
	return b.notifications.subscribe(256)
}

// Close 回收全部订阅，关闭后发布是无效操作
func (b *Bus) Close() {
	b.ticks.close()
	b.connectivity.close()
	b.notifications.close()
}
