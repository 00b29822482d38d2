package alerting

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"coinpulse/conf"
	"coinpulse/internal/dao"
	"coinpulse/internal/event"
	"coinpulse/internal/market"
	"coinpulse/internal/model/entity"
	"coinpulse/pkg/logger"
	"coinpulse/utils/uuid"
)

// TriggerHandler 触发后的通知出口，由通知路由器实现。
// 返回错误只记日志，不回滚状态机，触发事实已经成立
type TriggerHandler interface {
	HandleTrigger(ctx context.Context, alert *entity.Alert, snap *market.Snapshot) error
}

// Stats 调度器运行统计
type Stats struct {
	LastRunAt      time.Time `json:"last_run_at"`
	LastRunCoins   int       `json:"last_run_coins"`
	TotalEvaluated int64     `json:"total_evaluated"`
	TotalTriggered int64     `json:"total_triggered"`
	TotalErrors    int64     `json:"total_errors"`
	Paused         bool      `json:"paused"`
}

// Scheduler 提醒调度器：周期批量评估 + 行情推送快速通道。
// 两条路径共用同一套评估和状态落库逻辑，
// 靠单币种in-flight守卫串行化，不会对同一币种并发评估
type Scheduler struct {
	alertDao dao.AlertDAO
	source   market.Source
	baseline *market.VolumeBaseline
	bus      *event.Bus
	handler  TriggerHandler
	idNode   *uuid.SnowNode

	checkInterval time.Duration
	fetchTimeout  time.Duration
	maxHistory    int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	paused   bool
	inflight map[string]bool // coinID -> 正在评估
	// alertID -> 最近一次施加过副作用的快照时间，
	// 防止快慢两条路对同一提醒同一快照重复触发
	applied map[string]time.Time
	// alertID -> HOURLY/DAILY的回活定时器
	timers map[string]*time.Timer
	stats  Stats
}

func NewScheduler(
	alertDao dao.AlertDAO,
	source market.Source,
	baseline *market.VolumeBaseline,
	bus *event.Bus,
	handler TriggerHandler,
	idNode *uuid.SnowNode,
	cfg conf.AlertConfig,
	fetchTimeout time.Duration,
) *Scheduler {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &Scheduler{
		alertDao:      alertDao,
		source:        source,
		baseline:      baseline,
		bus:           bus,
		handler:       handler,
		idNode:        idNode,
		checkInterval: cfg.CheckInterval,
		fetchTimeout:  fetchTimeout,
		maxHistory:    cfg.MaxHistoryItems,
		inflight:      make(map[string]bool),
		applied:       make(map[string]time.Time),
		timers:        make(map[string]*time.Timer),
	}
}

// Start 启动调度循环：先立即跑一轮，再按checkInterval周期跑。
// 同时订阅行情推送（快速通道）和连通性事件（离线暂停）
func (s *Scheduler) Start(parent context.Context) {
	s.ctx, s.cancel = context.WithCancel(parent)

	ticks, unsubTicks := s.bus.SubscribeTicks()
	conn, unsubConn := s.bus.SubscribeConnectivity()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer unsubTicks()
		defer unsubConn()

		logger.Infof("🕐 alert scheduler started, interval=%s", s.checkInterval)
		s.rearmReactivations()
		s.runOnce()

		ticker := time.NewTicker(s.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.runOnce()
			case t, ok := <-ticks:
				if !ok {
					return
				}
				s.onTick(t)
			case c, ok := <-conn:
				if !ok {
					return
				}
				s.onConnectivity(c)
			}
		}
	}()
}

// Stop 停止调度，清掉所有挂起的回活定时器，等在途评估收尾
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
	logger.Info("alert scheduler stopped")
}

// Stats 当前运行统计快照
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// runOnce 周期路径：拉出所有参与评估的提醒，按币种分组，
// 每个币种一次行情请求、一个goroutine，互不拖累
func (s *Scheduler) runOnce() {
	s.mu.Lock()
	if s.paused {
		s.mu.Unlock()
		logger.Debug("scheduler paused, skip periodic run")
		return
	}
	s.mu.Unlock()

	alerts, err := s.alertDao.ListEvaluable(s.ctx)
	if err != nil {
		logger.Errorf("scheduler: list evaluable alerts failed: %v", err)
		s.countError()
		return
	}

	byCoin := make(map[string][]entity.Alert)
	live := make(map[string]struct{}, len(alerts))
	for _, a := range alerts {
		byCoin[a.CoinID] = append(byCoin[a.CoinID], a)
		live[a.ID] = struct{}{}
	}

	s.mu.Lock()
	// 不再参与评估的提醒（终态或已删除）从去重表清掉
	for id := range s.applied {
		if _, ok := live[id]; !ok {
			delete(s.applied, id)
		}
	}
	s.stats.LastRunAt = time.Now()
	s.stats.LastRunCoins = len(byCoin)
	s.mu.Unlock()

	for coinID, group := range byCoin {
		coinID, group := coinID, group
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.evaluateCoin(coinID, group, nil)
		}()
	}
}

// onTick 快速通道：行情源推了某个币种的新快照，只评估这个币种
func (s *Scheduler) onTick(t market.Tick) {
	s.mu.Lock()
	if s.paused {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	alerts, err := s.alertDao.ListEvaluableByCoin(s.ctx, t.CoinID)
	if err != nil {
		logger.Errorf("scheduler: list alerts for %s failed: %v", t.CoinID, err)
		s.countError()
		return
	}
	if len(alerts) == 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.evaluateCoin(t.CoinID, alerts, t.Snapshot)
	}()
}

func (s *Scheduler) onConnectivity(c event.Connectivity) {
	s.mu.Lock()
	s.paused = !c.Online
	s.stats.Paused = s.paused
	s.mu.Unlock()

	if c.Online {
		logger.Info("network back online, resume alert evaluation")
		s.runOnce()
	} else {
		logger.Warn("network offline, alert evaluation paused")
	}
}

// evaluateCoin 对单个币种的一组提醒做一轮评估。
// snap为nil时现场拉取（周期路径），非nil直接用（快速通道）。
// in-flight守卫保证同一币种同时只有一轮在跑，慢的那轮结束前后来的直接放弃
func (s *Scheduler) evaluateCoin(coinID string, alerts []entity.Alert, snap *market.Snapshot) {
	s.mu.Lock()
	if s.inflight[coinID] {
		s.mu.Unlock()
		logger.Debugf("coin %s evaluation in flight, skip", coinID)
		return
	}
	s.inflight[coinID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inflight, coinID)
		s.mu.Unlock()
	}()

	if snap == nil {
		ctx, cancel := context.WithTimeout(s.ctx, s.fetchTimeout)
		var err error
		snap, err = s.source.GetCoinData(ctx, coinID)
		cancel()
		if err != nil {
			// 单币种拉取失败只影响自己，不影响这一轮其他币种
			logger.Warnf("fetch market data for %s failed: %v", coinID, err)
			s.countError()
			return
		}
	}

	if snap.HasVolume && s.baseline != nil {
		s.baseline.Observe(coinID, snap.Volume)
	}

	now := time.Now()
	for i := range alerts {
		s.evaluateOne(&alerts[i], snap, now)
	}
}

// evaluateOne 单条提醒评估与状态落库
func (s *Scheduler) evaluateOne(a *entity.Alert, snap *market.Snapshot, now time.Time) {
	// 过期优先于一切
	if Expired(a, now) {
		if err := s.alertDao.UpdateFields(s.ctx, a.ID, map[string]interface{}{
			"status": entity.AlertStatusExpired,
		}); err != nil {
			logger.Errorf("mark alert %s expired failed: %v", a.ID, err)
			s.countError()
		}
		return
	}

	// VOLUME_SPIKE没有基线时：先落基线，这一轮不触发。
	// 基线取滚动SMA，没有足够观测就用当前成交量
	if a.AlertType == entity.AlertTypeVolumeSpike && (!a.AverageVolume.Valid || a.AverageVolume.Float64 <= 0) {
		if !snap.HasVolume {
			return
		}
		base := snap.Volume
		if s.baseline != nil {
			if avg := s.baseline.Average(a.CoinID); avg > 0 {
				base = avg
			}
		}
		a.AverageVolume = sql.NullFloat64{Float64: base, Valid: true}
		if err := s.alertDao.UpdateFields(s.ctx, a.ID, map[string]interface{}{
			"average_volume": base,
		}); err != nil {
			logger.Errorf("set volume baseline for alert %s failed: %v", a.ID, err)
			s.countError()
		}
		return
	}

	s.mu.Lock()
	s.stats.TotalEvaluated++
	s.mu.Unlock()

	if !Evaluate(a, snap) {
		return
	}

	// 同一提醒同一快照只施加一次副作用
	s.mu.Lock()
	if prev, ok := s.applied[a.ID]; ok && prev.Equal(snap.FetchedAt) {
		s.mu.Unlock()
		return
	}
	s.applied[a.ID] = snap.FetchedAt
	s.mu.Unlock()

	s.applyTrigger(a, snap, now)
}

func (s *Scheduler) applyTrigger(a *entity.Alert, snap *market.Snapshot, now time.Time) {
	ApplyTrigger(a, snap, now)
	if err := s.alertDao.Save(s.ctx, a); err != nil {
		logger.Errorf("persist triggered alert %s failed: %v", a.ID, err)
		s.countError()
		return
	}

	s.mu.Lock()
	s.stats.TotalTriggered++
	s.mu.Unlock()

	h := &entity.AlertHistory{
		ID:          s.idNode.GenSnowID(),
		AlertID:     a.ID,
		UserID:      a.UserID,
		CoinID:      a.CoinID,
		CoinSymbol:  a.CoinSymbol,
		AlertType:   a.AlertType,
		TargetValue: a.TargetValue,
		Direction:   a.Direction,
		TriggeredAt: now.UnixMilli(),
		Price:       snap.Price,
		Volume:      snap.Volume,
		MarketCap:   snap.MarketCap,
	}
	if err := s.alertDao.AppendHistory(s.ctx, h, s.maxHistory); err != nil {
		logger.Errorf("append alert history for %s failed: %v", a.ID, err)
		s.countError()
	}

	logger.Infof("🔔 alert %s triggered: %s %s target=%v price=%v",
		a.ID, a.CoinSymbol, a.AlertType, a.TargetValue, snap.Price)

	if s.handler != nil {
		if err := s.handler.HandleTrigger(s.ctx, a, snap); err != nil {
			logger.Errorf("dispatch trigger notification for alert %s failed: %v", a.ID, err)
			s.countError()
		}
	}

	// HOURLY/DAILY到点拉回ACTIVE
	if delay, ok := ReactivateDelay(a.Repeat); ok {
		s.armReactivate(a.ID, delay)
	}
}

// rearmReactivations 重启后恢复HOURLY/DAILY的回活定时器：
// 冷却剩余时间从库里的triggeredAt算，已经到期的直接拉回ACTIVE
func (s *Scheduler) rearmReactivations() {
	alerts, err := s.alertDao.ListAwaitingReactivation(s.ctx)
	if err != nil {
		logger.Errorf("scheduler: list alerts awaiting reactivation failed: %v", err)
		s.countError()
		return
	}
	now := time.Now()
	for i := range alerts {
		a := &alerts[i]
		delay, ok := ReactivateDelay(a.Repeat)
		if !ok {
			continue
		}
		remaining := delay
		if a.TriggeredAt.Valid {
			remaining = a.TriggeredAt.Time.Add(delay).Sub(now)
		}
		if remaining <= 0 {
			if err := s.alertDao.UpdateFields(s.ctx, a.ID, map[string]interface{}{
				"status": entity.AlertStatusActive,
			}); err != nil {
				logger.Errorf("reactivate overdue alert %s failed: %v", a.ID, err)
				s.countError()
			} else {
				logger.Infof("alert %s cooldown elapsed while down, reactivated", a.ID)
			}
			continue
		}
		s.armReactivate(a.ID, remaining)
	}
	if len(alerts) > 0 {
		logger.Infof("restored reactivation schedule for %d triggered alerts", len(alerts))
	}
}

// armReactivate 给提醒挂回活定时器，同一提醒重复挂会先停掉旧的
func (s *Scheduler) armReactivate(alertID string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.timers[alertID]; ok {
		old.Stop()
	}
	s.timers[alertID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, alertID)
		s.mu.Unlock()

		if s.ctx.Err() != nil {
			return
		}
		a, err := s.alertDao.GetByID(s.ctx, alertID)
		if err != nil || a == nil {
			return
		}
		// 用户中途禁用/删除/过期就不再回活
		if a.Status != entity.AlertStatusTriggered {
			return
		}
		if err := s.alertDao.UpdateFields(s.ctx, alertID, map[string]interface{}{
			"status": entity.AlertStatusActive,
		}); err != nil {
			logger.Errorf("reactivate alert %s failed: %v", alertID, err)
		} else {
			logger.Debugf("alert %s reactivated after %s", alertID, delay)
		}
	})
}

func (s *Scheduler) countError() {
	s.mu.Lock()
	s.stats.TotalErrors++
	s.mu.Unlock()
}
