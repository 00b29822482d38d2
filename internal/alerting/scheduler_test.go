package alerting

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"coinpulse/conf"
	"coinpulse/internal/event"
	"coinpulse/internal/market"
	"coinpulse/internal/model"
	"coinpulse/internal/model/entity"
	"coinpulse/pkg/errors"
	"coinpulse/pkg/errors/ecode"
	"coinpulse/utils/uuid"
)

// --- 测试替身 ---

type fakeAlertDao struct {
	mu      sync.Mutex
	alerts  map[string]*entity.Alert
	history []entity.AlertHistory
}

func newFakeAlertDao(alerts ...*entity.Alert) *fakeAlertDao {
	d := &fakeAlertDao{alerts: make(map[string]*entity.Alert)}
	for _, a := range alerts {
		cp := *a
		d.alerts[a.ID] = &cp
	}
	return d
}

func (d *fakeAlertDao) get(id string) entity.Alert {
	d.mu.Lock()
	defer d.mu.Unlock()
	return *d.alerts[id]
}

func (d *fakeAlertDao) historyCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.history)
}

func (d *fakeAlertDao) Create(ctx context.Context, a *entity.Alert) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *a
	d.alerts[a.ID] = &cp
	return nil
}

func (d *fakeAlertDao) Save(ctx context.Context, a *entity.Alert) error {
	return d.Create(ctx, a)
}

func (d *fakeAlertDao) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.alerts[id]
	if !ok {
		return nil
	}
	if v, ok := fields["status"]; ok {
		a.Status = v.(string)
	}
	if v, ok := fields["average_volume"]; ok {
		a.AverageVolume.Float64 = v.(float64)
		a.AverageVolume.Valid = true
	}
	return nil
}

func (d *fakeAlertDao) Delete(ctx context.Context, id string, userID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.alerts[id]; !ok {
		return false, nil
	}
	delete(d.alerts, id)
	return true, nil
}

func (d *fakeAlertDao) GetByID(ctx context.Context, id string) (*entity.Alert, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.alerts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (d *fakeAlertDao) List(ctx context.Context, userID int64, req model.AlertListReq) ([]entity.Alert, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []entity.Alert
	for _, a := range d.alerts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (d *fakeAlertDao) ListEvaluable(ctx context.Context) ([]entity.Alert, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []entity.Alert
	for _, a := range d.alerts {
		if a.Evaluable() {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (d *fakeAlertDao) ListEvaluableByCoin(ctx context.Context, coinID string) ([]entity.Alert, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []entity.Alert
	for _, a := range d.alerts {
		if a.CoinID == coinID && a.Evaluable() {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (d *fakeAlertDao) ListAwaitingReactivation(ctx context.Context) ([]entity.Alert, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []entity.Alert
	for _, a := range d.alerts {
		if a.Status == entity.AlertStatusTriggered &&
			(a.Repeat == entity.AlertRepeatHourly || a.Repeat == entity.AlertRepeatDaily) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (d *fakeAlertDao) CountByUser(ctx context.Context, userID int64) (int64, error) {
	list, _ := d.List(ctx, userID, model.AlertListReq{})
	return int64(len(list)), nil
}

func (d *fakeAlertDao) Stats(ctx context.Context, userID int64) (model.AlertStatsRes, error) {
	return model.AlertStatsRes{}, nil
}

func (d *fakeAlertDao) DeleteAllByUser(ctx context.Context, userID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, a := range d.alerts {
		if a.UserID == userID {
			delete(d.alerts, id)
		}
	}
	return nil
}

func (d *fakeAlertDao) AppendHistory(ctx context.Context, h *entity.AlertHistory, maxItems int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = append(d.history, *h)
	return nil
}

func (d *fakeAlertDao) ListHistory(ctx context.Context, userID int64, req model.AlertHistoryListReq) ([]entity.AlertHistory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]entity.AlertHistory(nil), d.history...), nil
}

func (d *fakeAlertDao) ClearHistory(ctx context.Context, userID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = nil
	return nil
}

type fakeSource struct {
	mu    sync.Mutex
	snaps map[string]*market.Snapshot
	calls int
}

func (f *fakeSource) GetCoinData(ctx context.Context, coinID string) (*market.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	snap, ok := f.snaps[coinID]
	if !ok {
		return nil, errors.WithCodef(ecode.NetworkErr, "no data for %s", coinID)
	}
	s := *snap
	return &s, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type captureHandler struct {
	mu      sync.Mutex
	handled []string
}

func (c *captureHandler) HandleTrigger(ctx context.Context, a *entity.Alert, s *market.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handled = append(c.handled, a.ID)
	return nil
}

func (c *captureHandler) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handled)
}

func newTestScheduler(dao *fakeAlertDao, src market.Source, h TriggerHandler, bus *event.Bus) *Scheduler {
	return NewScheduler(dao, src, market.NewVolumeBaseline(5), bus, h, uuid.NewNode(1),
		conf.AlertConfig{CheckInterval: time.Hour, MaxHistoryItems: 100}, time.Second)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

// --- 用例 ---

// 启动立即跑一轮：条件满足 -> TRIGGERED，一条历史，一次通知
func TestSchedulerImmediateRunTriggers(t *testing.T) {
	a := &entity.Alert{
		ID: "t1", UserID: 1, CoinID: "bitcoin", CoinSymbol: "BTC",
		AlertType: entity.AlertTypePriceAbove, TargetValue: 50000,
		Status: entity.AlertStatusActive, Repeat: entity.AlertRepeatOnce,
	}
	dao := newFakeAlertDao(a)
	src := &fakeSource{snaps: map[string]*market.Snapshot{
		"bitcoin": {CoinID: "bitcoin", Price: 50500, HasPrice: true, FetchedAt: time.Now()},
	}}
	h := &captureHandler{}
	bus := event.NewBus()
	defer bus.Close()

	s := newTestScheduler(dao, src, h, bus)
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, func() bool { return h.count() == 1 })

	got := dao.get("t1")
	if got.Status != entity.AlertStatusTriggered {
		t.Errorf("status = %s, want TRIGGERED", got.Status)
	}
	if dao.historyCount() != 1 {
		t.Errorf("history count = %d, want 1", dao.historyCount())
	}
}

// 同一币种多条提醒只拉一次行情
func TestSchedulerGroupsByCoin(t *testing.T) {
	mk := func(id string) *entity.Alert {
		return &entity.Alert{
			ID: id, UserID: 1, CoinID: "bitcoin", CoinSymbol: "BTC",
			AlertType: entity.AlertTypePriceAbove, TargetValue: 1e9,
			Status: entity.AlertStatusActive, Repeat: entity.AlertRepeatOnce,
		}
	}
	dao := newFakeAlertDao(mk("g1"), mk("g2"), mk("g3"))
	src := &fakeSource{snaps: map[string]*market.Snapshot{
		"bitcoin": {CoinID: "bitcoin", Price: 100, HasPrice: true, FetchedAt: time.Now()},
	}}
	bus := event.NewBus()
	defer bus.Close()

	s := newTestScheduler(dao, src, &captureHandler{}, bus)
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, func() bool { return s.Stats().TotalEvaluated >= 3 })

	if src.callCount() != 1 {
		t.Errorf("source calls = %d, want 1 (one fetch per coin)", src.callCount())
	}
}

// 快速通道：总线上推一条tick，只评估该币种，不走行情源
func TestSchedulerFastPath(t *testing.T) {
	a := &entity.Alert{
		ID: "f1", UserID: 1, CoinID: "ethereum", CoinSymbol: "ETH",
		AlertType: entity.AlertTypePriceBelow, TargetValue: 3000,
		Status: entity.AlertStatusActive, Repeat: entity.AlertRepeatOnce,
	}
	dao := newFakeAlertDao(a)
	src := &fakeSource{snaps: map[string]*market.Snapshot{}}
	h := &captureHandler{}
	bus := event.NewBus()
	defer bus.Close()

	s := newTestScheduler(dao, src, h, bus)
	s.Start(context.Background())
	defer s.Stop()

	// 等首轮跑完（ethereum不在snaps里，首轮fetch会失败，但不妨碍快速通道）
	waitFor(t, func() bool { return !s.Stats().LastRunAt.IsZero() })

	bus.PublishTick(market.Tick{CoinID: "ethereum", Snapshot: &market.Snapshot{
		CoinID: "ethereum", Price: 2900, HasPrice: true, FetchedAt: time.Now(),
	}})

	waitFor(t, func() bool { return h.count() == 1 })
	if got := dao.get("f1"); got.Status != entity.AlertStatusTriggered {
		t.Errorf("status = %s, want TRIGGERED", got.Status)
	}
}

// 同一提醒同一快照只触发一次
func TestSchedulerAtMostOncePerSnapshot(t *testing.T) {
	a := &entity.Alert{
		ID: "d1", UserID: 1, CoinID: "bitcoin", CoinSymbol: "BTC",
		AlertType: entity.AlertTypePriceAbove, TargetValue: 1,
		Status: entity.AlertStatusActive, Repeat: entity.AlertRepeatAlways,
	}
	dao := newFakeAlertDao(a)
	src := &fakeSource{snaps: map[string]*market.Snapshot{}}
	h := &captureHandler{}
	bus := event.NewBus()
	defer bus.Close()

	s := newTestScheduler(dao, src, h, bus)
	s.Start(context.Background())
	defer s.Stop()
	waitFor(t, func() bool { return !s.Stats().LastRunAt.IsZero() })

	// 同一个FetchedAt的快照推两次（ALWAYS触发后立即回ACTIVE，仍可评估）
	snap := &market.Snapshot{CoinID: "bitcoin", Price: 100, HasPrice: true, FetchedAt: time.Unix(1700000000, 0)}
	bus.PublishTick(market.Tick{CoinID: "bitcoin", Snapshot: snap})
	waitFor(t, func() bool { return h.count() == 1 })
	bus.PublishTick(market.Tick{CoinID: "bitcoin", Snapshot: snap})
	time.Sleep(100 * time.Millisecond)

	if h.count() != 1 {
		t.Errorf("handled = %d, want 1 (same snapshot must not double-trigger)", h.count())
	}
}

// VOLUME_SPIKE没有基线：首轮只落基线不触发，之后才按倍数比较
func TestSchedulerVolumeBaselineFirstRun(t *testing.T) {
	a := &entity.Alert{
		ID: "v1", UserID: 1, CoinID: "bitcoin", CoinSymbol: "BTC",
		AlertType: entity.AlertTypeVolumeSpike, TargetValue: 3,
		Status: entity.AlertStatusActive, Repeat: entity.AlertRepeatOnce,
	}
	dao := newFakeAlertDao(a)
	src := &fakeSource{snaps: map[string]*market.Snapshot{
		"bitcoin": {CoinID: "bitcoin", Volume: 1000, HasVolume: true, FetchedAt: time.Now()},
	}}
	h := &captureHandler{}
	bus := event.NewBus()
	defer bus.Close()

	s := newTestScheduler(dao, src, h, bus)
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, func() bool { return dao.get("v1").AverageVolume.Valid })
	if h.count() != 0 {
		t.Fatal("first evaluation must only record the baseline")
	}
	if got := dao.get("v1").AverageVolume.Float64; got != 1000 {
		t.Errorf("baseline = %v, want 1000", got)
	}

	// 成交量冲到3倍以上才触发
	bus.PublishTick(market.Tick{CoinID: "bitcoin", Snapshot: &market.Snapshot{
		CoinID: "bitcoin", Volume: 3500, HasVolume: true, FetchedAt: time.Now(),
	}})
	waitFor(t, func() bool { return h.count() == 1 })
}

// 重启恢复：冷却已过的TRIGGERED提醒启动时直接回ACTIVE，未过的重新挂定时器
func TestSchedulerRestoresCooldownsOnStart(t *testing.T) {
	overdue := &entity.Alert{
		ID: "r1", UserID: 1, CoinID: "bitcoin", CoinSymbol: "BTC",
		AlertType: entity.AlertTypePriceAbove, TargetValue: 1e9,
		Status: entity.AlertStatusTriggered, Repeat: entity.AlertRepeatHourly,
		TriggeredAt: sql.NullTime{Time: time.Now().Add(-2 * time.Hour), Valid: true},
	}
	cooling := &entity.Alert{
		ID: "r2", UserID: 1, CoinID: "bitcoin", CoinSymbol: "BTC",
		AlertType: entity.AlertTypePriceAbove, TargetValue: 1e9,
		Status: entity.AlertStatusTriggered, Repeat: entity.AlertRepeatDaily,
		TriggeredAt: sql.NullTime{Time: time.Now().Add(-time.Hour), Valid: true},
	}
	dao := newFakeAlertDao(overdue, cooling)
	src := &fakeSource{snaps: map[string]*market.Snapshot{
		"bitcoin": {CoinID: "bitcoin", Price: 100, HasPrice: true, FetchedAt: time.Now()},
	}}
	bus := event.NewBus()
	defer bus.Close()

	s := newTestScheduler(dao, src, &captureHandler{}, bus)
	s.Start(context.Background())
	defer s.Stop()

	// 停机期间冷却走完的，启动即回活
	waitFor(t, func() bool { return dao.get("r1").Status == entity.AlertStatusActive })

	// 还在冷却的保持TRIGGERED，但要有定时器接着算剩余时间
	if got := dao.get("r2").Status; got != entity.AlertStatusTriggered {
		t.Errorf("r2 status = %s, want TRIGGERED (cooldown not elapsed)", got)
	}
	s.mu.Lock()
	_, armed := s.timers["r2"]
	s.mu.Unlock()
	if !armed {
		t.Error("r2 must get a reactivation timer on start")
	}
}

// ONCE提醒触发进终态后，下一轮就从快照去重表清掉
func TestSchedulerPrunesAppliedEntries(t *testing.T) {
	a := &entity.Alert{
		ID: "z1", UserID: 1, CoinID: "bitcoin", CoinSymbol: "BTC",
		AlertType: entity.AlertTypePriceAbove, TargetValue: 1,
		Status: entity.AlertStatusActive, Repeat: entity.AlertRepeatOnce,
	}
	dao := newFakeAlertDao(a)
	src := &fakeSource{snaps: map[string]*market.Snapshot{
		"bitcoin": {CoinID: "bitcoin", Price: 100, HasPrice: true, FetchedAt: time.Now()},
	}}
	h := &captureHandler{}
	bus := event.NewBus()
	defer bus.Close()

	s := newTestScheduler(dao, src, h, bus)
	s.Start(context.Background())
	defer s.Stop()
	waitFor(t, func() bool { return h.count() == 1 })

	s.mu.Lock()
	_, tracked := s.applied["z1"]
	s.mu.Unlock()
	if !tracked {
		t.Fatal("freshly triggered alert must be tracked for snapshot dedup")
	}

	s.runOnce()

	s.mu.Lock()
	_, tracked = s.applied["z1"]
	s.mu.Unlock()
	if tracked {
		t.Error("terminal alert must be pruned from snapshot dedup on the next run")
	}
}

// 离线暂停，上线恢复并立即补跑一轮
func TestSchedulerPauseOnOffline(t *testing.T) {
	a := &entity.Alert{
		ID: "p1", UserID: 1, CoinID: "bitcoin", CoinSymbol: "BTC",
		AlertType: entity.AlertTypePriceAbove, TargetValue: 1,
		Status: entity.AlertStatusActive, Repeat: entity.AlertRepeatOnce,
	}
	dao := newFakeAlertDao(a)
	src := &fakeSource{snaps: map[string]*market.Snapshot{
		"bitcoin": {CoinID: "bitcoin", Price: 100, HasPrice: true, FetchedAt: time.Now()},
	}}
	h := &captureHandler{}
	bus := event.NewBus()
	defer bus.Close()

	s := newTestScheduler(dao, src, h, bus)
	s.Start(context.Background())
	defer s.Stop()
	waitFor(t, func() bool { return h.count() == 1 })

	bus.PublishConnectivity(event.Connectivity{Online: false})
	waitFor(t, func() bool { return s.Stats().Paused })

	// 暂停期间tick被忽略
	bus.PublishTick(market.Tick{CoinID: "bitcoin", Snapshot: &market.Snapshot{
		CoinID: "bitcoin", Price: 200, HasPrice: true, FetchedAt: time.Now(),
	}})
	time.Sleep(50 * time.Millisecond)
	if h.count() != 1 {
		t.Errorf("handled while paused: %d, want 1", h.count())
	}

	bus.PublishConnectivity(event.Connectivity{Online: true})
	waitFor(t, func() bool { return !s.Stats().Paused })
}
