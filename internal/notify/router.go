package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coinpulse/conf"
	"coinpulse/internal/consts"
	"coinpulse/internal/dao"
	"coinpulse/internal/event"
	"coinpulse/internal/market"
	"coinpulse/internal/model/entity"
	"coinpulse/pkg/logger"
	"coinpulse/utils/uuid"

	"github.com/goccy/go-json"
	"go.uber.org/multierr"
	"gorm.io/datatypes"
)

// deferredDispatch 因限流延后的一次渠道投递，通知本身已经落库
type deferredDispatch struct {
	msg      *Message
	channels []string
}

// Router 通知路由器：类型过滤 -> 相似合并 -> 限流 -> 渠道分发。
// 限流超额的派发进延后队列，窗口腾出位置时由定时器补发；
// 离线时渠道投递进离线队列，上线事件触发回放
type Router struct {
	notifDao dao.NotificationDAO
	bus      *event.Bus
	cfg      conf.NotificationConfig
	channels map[string]Channel
	offline  *OfflineQueue

	mu         sync.Mutex
	online     bool
	hits       map[int64][]time.Time // userID -> 窗口内的派发时刻
	deferred   []deferredDispatch
	drainTimer *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRouter(notifDao dao.NotificationDAO, bus *event.Bus, cfg conf.NotificationConfig, channels ...Channel) *Router {
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if cfg.MaxPerWindow <= 0 {
		cfg.MaxPerWindow = 5
	}
	if cfg.GroupSimilarWindow <= 0 {
		cfg.GroupSimilarWindow = 5 * time.Minute
	}
	m := make(map[string]Channel, len(channels))
	for _, c := range channels {
		m[c.Name()] = c
	}
	return &Router{
		notifDao: notifDao,
		bus:      bus,
		cfg:      cfg,
		channels: m,
		offline:  NewOfflineQueue(),
		online:   true,
		hits:     make(map[int64][]time.Time),
	}
}

// Start 订阅连通性事件，离线暂存、上线回放
func (r *Router) Start(parent context.Context) {
	r.ctx, r.cancel = context.WithCancel(parent)
	conn, unsub := r.bus.SubscribeConnectivity()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer unsub()
		for {
			select {
			case <-r.ctx.Done():
				return
			case c, ok := <-conn:
				if !ok {
					return
				}
				r.setOnline(c.Online)
			}
		}
	}()
}

// Stop 停掉延后定时器和订阅
func (r *Router) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Lock()
	if r.drainTimer != nil {
		r.drainTimer.Stop()
		r.drainTimer = nil
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Router) setOnline(online bool) {
	r.mu.Lock()
	was := r.online
	r.online = online
	r.mu.Unlock()

	if online && !was {
		r.offline.Drain(func(channel string, msg *Message) error {
			return r.deliverOne(r.ctx, channel, msg)
		})
	}
}

// OfflineDepth 离线队列深度（监控用）
func (r *Router) OfflineDepth() int {
	return r.offline.Len()
}

// HandleTrigger 提醒触发入口：构造price_alert通知并派发。
// 相关性key取币种，同窗口内同币种的触发会被合并
func (r *Router) HandleTrigger(ctx context.Context, a *entity.Alert, snap *market.Snapshot) error {
	title := triggerTitle(a, snap)
	data, _ := json.Marshal(map[string]interface{}{
		"alert_id":     a.ID,
		"coin_id":      a.CoinID,
		"coin_symbol":  a.CoinSymbol,
		"alert_type":   a.AlertType,
		"target_value": a.TargetValue,
		"price":        snap.Price,
	})
	actions, _ := json.Marshal([]entity.NotificationAction{
		{Label: "查看行情", Target: "/coins/" + a.CoinID},
	})

	n := &entity.Notification{
		ID:          uuid.GenUUID(),
		UserID:      a.UserID,
		Type:        entity.NotificationTypePriceAlert,
		Title:       title,
		Description: fmt.Sprintf("%s 当前价格 %v", a.CoinSymbol, snap.Price),
		Data:        datatypes.JSON(data),
		Actions:     datatypes.JSON(actions),
		Status:      entity.NotificationStatusUnread,
		Priority:    entity.PriorityHigh,
		Timestamp:   time.Now().UnixMilli(),
		GroupKey:    a.CoinID,
		GroupCount:  1,
	}

	var channels []string
	if len(a.Channels) > 0 {
		_ = json.Unmarshal(a.Channels, &channels)
	}
	if len(channels) == 0 {
		channels = []string{consts.ChannelInApp}
	}
	return r.Dispatch(ctx, n, channels)
}

// Dispatch 派发一条通知。先落库，再看限流：
// 窗口满了只延后渠道投递，通知本身立刻可见
func (r *Router) Dispatch(ctx context.Context, n *entity.Notification, channels []string) error {
	prefs, err := r.prefs(ctx, n.UserID)
	if err != nil {
		return err
	}

	if !typeEnabled(prefs, n) {
		logger.Debugf("notification type %s (key=%s) disabled for user %d, drop",
			n.Type, n.GroupKey, n.UserID)
		return nil
	}

	stored, err := r.store(ctx, n, prefs)
	if err != nil {
		return err
	}
	msg := &Message{UserID: stored.UserID, Notification: stored, Prefs: prefs}

	if !r.allow(n.UserID) {
		r.mu.Lock()
		r.deferred = append(r.deferred, deferredDispatch{msg: msg, channels: channels})
		r.mu.Unlock()
		r.armDrain(n.UserID)
		logger.Debugf("user %d rate limited, delivery of %s deferred", n.UserID, stored.ID)
		return nil
	}

	return r.deliver(ctx, msg, channels)
}

// store 合并到窗口内的同组通知，没有就新建
func (r *Router) store(ctx context.Context, n *entity.Notification, prefs *entity.NotificationPreferences) (*entity.Notification, error) {
	if prefs.GroupSimilar && n.GroupKey != "" {
		since := time.Now().Add(-r.cfg.GroupSimilarWindow).UnixMilli()
		candidate, err := r.notifDao.FindGroupCandidate(ctx, n.UserID, n.Type, n.GroupKey, since)
		if err != nil {
			return nil, err
		}
		if candidate != nil {
			mergeInto(candidate, n)
			if err := r.notifDao.Save(ctx, candidate); err != nil {
				return nil, err
			}
			return candidate, nil
		}
	}
	if err := r.notifDao.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// deliver 按渠道投递已落库的通知。
// 离线或临时性失败都进离线队列等回放，渠道不可用只跳过自己
func (r *Router) deliver(ctx context.Context, msg *Message, channels []string) error {
	var errs error
	for _, name := range channels {
		if !channelEnabled(msg.Prefs, name) {
			continue
		}
		r.mu.Lock()
		online := r.online
		r.mu.Unlock()
		if !online {
			r.offline.Enqueue(name, msg)
			continue
		}
		if err := r.deliverOne(ctx, name, msg); err != nil {
			if Temporary(err) {
				logger.Warnf("channel %s transient failure for user %d, queued for replay: %v", name, msg.UserID, err)
				r.offline.Enqueue(name, msg)
				continue
			}
			if PermissionDenied(err) {
				// 渠道不可用只停用自己
				logger.Warnf("channel %s unavailable for user %d: %v", name, msg.UserID, err)
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("channel %s: %w", name, err))
		}
	}
	if errs != nil {
		logger.Errorf("notification %s partially failed: %v", msg.Notification.ID, errs)
	}
	return nil
}

func (r *Router) deliverOne(ctx context.Context, name string, msg *Message) error {
	ch, ok := r.channels[name]
	if !ok {
		logger.Warnf("unknown notification channel %s, skip", name)
		return nil
	}
	return ch.Deliver(ctx, msg)
}

// prefs 取用户偏好，没有就给默认值（全渠道全类型开启、合并开启、立即邮件）
func (r *Router) prefs(ctx context.Context, userID int64) (*entity.NotificationPreferences, error) {
	p, err := r.notifDao.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &entity.NotificationPreferences{
			UserID:         userID,
			GroupSimilar:   true,
			EmailFrequency: entity.EmailFrequencyImmediate,
		}
	}
	return p, nil
}

// --- 限流：滑动窗口 ---

// allow 窗口内未满额则记一次并放行
func (r *Router) allow(userID int64) bool {
	now := time.Now()
	cut := now.Add(-r.cfg.RateLimitWindow)

	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.hits[userID][:0]
	for _, t := range r.hits[userID] {
		if t.After(cut) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= r.cfg.MaxPerWindow {
		r.hits[userID] = kept
		return false
	}
	r.hits[userID] = append(kept, now)
	return true
}

// armDrain 按窗口里最早一次派发的离窗时刻挂定时器，到点补发延后队列
func (r *Router) armDrain(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drainTimer != nil {
		return // 已经有定时器在路上
	}
	wait := r.cfg.RateLimitWindow
	if hits := r.hits[userID]; len(hits) > 0 {
		wait = time.Until(hits[0].Add(r.cfg.RateLimitWindow))
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}
	}
	r.drainTimer = time.AfterFunc(wait, r.drainDeferred)
}

// drainDeferred 把延后的投递按顺序补发，窗口还塞不下的继续等
func (r *Router) drainDeferred() {
	r.mu.Lock()
	r.drainTimer = nil
	pending := r.deferred
	r.deferred = nil
	r.mu.Unlock()

	if len(pending) == 0 {
		return
	}
	if r.ctx != nil && r.ctx.Err() != nil {
		return
	}
	logger.Debugf("draining %d deferred deliveries", len(pending))
	for i, d := range pending {
		if !r.allow(d.msg.UserID) {
			r.mu.Lock()
			r.deferred = append(pending[i:], r.deferred...)
			r.mu.Unlock()
			r.armDrain(d.msg.UserID)
			return
		}
		if err := r.deliver(context.Background(), d.msg, d.channels); err != nil {
			logger.Errorf("deferred delivery of %s failed: %v", d.msg.Notification.ID, err)
		}
	}
}

// --- 过滤与合并 ---

// typeEnabled 类型白名单：空列表全放行；price_alert支持
// price_alert_<coinId>复合key做币种粒度控制
func typeEnabled(prefs *entity.NotificationPreferences, n *entity.Notification) bool {
	if len(prefs.EnabledTypes) == 0 {
		return true
	}
	var types []string
	if err := json.Unmarshal(prefs.EnabledTypes, &types); err != nil || len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == n.Type {
			return true
		}
		if n.Type == entity.NotificationTypePriceAlert && n.GroupKey != "" &&
			t == n.Type+"_"+n.GroupKey {
			return true
		}
	}
	return false
}

// channelEnabled 渠道白名单：空列表只留应用内
func channelEnabled(prefs *entity.NotificationPreferences, name string) bool {
	if len(prefs.EnabledChannels) == 0 {
		return name == consts.ChannelInApp
	}
	var chs []string
	if err := json.Unmarshal(prefs.EnabledChannels, &chs); err != nil {
		return name == consts.ChannelInApp
	}
	for _, c := range chs {
		if c == name {
			return true
		}
	}
	return false
}

// mergeInto 把新通知并进已有通知：计数+1、条目追加、标题改写、时间刷新
func mergeInto(dst *entity.Notification, src *entity.Notification) {
	var items []entity.NotificationGroupItem
	if len(dst.GroupItems) > 0 {
		_ = json.Unmarshal(dst.GroupItems, &items)
	}
	if len(items) == 0 {
		// 第一次合并时把原通知自己也计入条目
		items = append(items, entity.NotificationGroupItem{Title: dst.Title, Timestamp: dst.Timestamp})
	}
	items = append(items, entity.NotificationGroupItem{Title: src.Title, Timestamp: src.Timestamp})

	dst.GroupCount = len(items)
	raw, _ := json.Marshal(items)
	dst.GroupItems = datatypes.JSON(raw)
	dst.Title = fmt.Sprintf("%s 有 %d 条新提醒", dst.GroupKey, dst.GroupCount)
	dst.Description = src.Description
	dst.Timestamp = src.Timestamp
	dst.Status = entity.NotificationStatusUnread
}

func triggerTitle(a *entity.Alert, snap *market.Snapshot) string {
	switch a.AlertType {
	case entity.AlertTypePriceAbove:
		return fmt.Sprintf("%s 涨破 %v", a.CoinSymbol, a.TargetValue)
	case entity.AlertTypePriceBelow:
		return fmt.Sprintf("%s 跌破 %v", a.CoinSymbol, a.TargetValue)
	case entity.AlertTypePercentChange:
		if a.Direction == entity.DirectionUp {
			return fmt.Sprintf("%s 24小时涨幅超过 %v%%", a.CoinSymbol, a.TargetValue)
		}
		return fmt.Sprintf("%s 24小时跌幅超过 %v%%", a.CoinSymbol, a.TargetValue)
	case entity.AlertTypeVolumeSpike:
		return fmt.Sprintf("%s 成交量放大 %v 倍", a.CoinSymbol, a.TargetValue)
	case entity.AlertTypeMarketCap:
		if a.Direction == entity.DirectionAbove {
			return fmt.Sprintf("%s 市值升破 %v", a.CoinSymbol, a.TargetValue)
		}
		return fmt.Sprintf("%s 市值跌破 %v", a.CoinSymbol, a.TargetValue)
	}
	return fmt.Sprintf("%s 提醒触发", a.CoinSymbol)
}
