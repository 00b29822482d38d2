package service

import (
	"context"
	"sync"
	"testing"

	"coinpulse/conf"
	"coinpulse/internal/model"
	"coinpulse/internal/model/entity"
	"coinpulse/pkg/errors"
	"coinpulse/pkg/errors/ecode"
)

type memAlertDao struct {
	mu     sync.Mutex
	alerts map[string]*entity.Alert
}

func newMemAlertDao() *memAlertDao {
	return &memAlertDao{alerts: make(map[string]*entity.Alert)}
}

func (d *memAlertDao) Create(ctx context.Context, a *entity.Alert) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *a
	d.alerts[a.ID] = &cp
	return nil
}

func (d *memAlertDao) Save(ctx context.Context, a *entity.Alert) error { return d.Create(ctx, a) }

func (d *memAlertDao) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return nil
}

func (d *memAlertDao) Delete(ctx context.Context, id string, userID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.alerts[id]
	if !ok || a.UserID != userID {
		return false, nil
	}
	delete(d.alerts, id)
	return true, nil
}

func (d *memAlertDao) GetByID(ctx context.Context, id string) (*entity.Alert, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.alerts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (d *memAlertDao) List(ctx context.Context, userID int64, req model.AlertListReq) ([]entity.Alert, error) {
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

func (d *memAlertDao) ListEvaluable(ctx context.Context) ([]entity.Alert, error) { return nil, nil }

func (d *memAlertDao) ListEvaluableByCoin(ctx context.Context, coinID string) ([]entity.Alert, error) {
	return nil, nil
}

func (d *memAlertDao) ListAwaitingReactivation(ctx context.Context) ([]entity.Alert, error) {
	return nil, nil
}

func (d *memAlertDao) CountByUser(ctx context.Context, userID int64) (int64, error) {
	list, _ := d.List(ctx, userID, model.AlertListReq{})
	return int64(len(list)), nil
}

func (d *memAlertDao) Stats(ctx context.Context, userID int64) (model.AlertStatsRes, error) {
	return model.AlertStatsRes{}, nil
}

func (d *memAlertDao) DeleteAllByUser(ctx context.Context, userID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, a := range d.alerts {
		if a.UserID == userID {
			delete(d.alerts, id)
		}
	}
	return nil
}

func (d *memAlertDao) AppendHistory(ctx context.Context, h *entity.AlertHistory, maxItems int) error {
	return nil
}

func (d *memAlertDao) ListHistory(ctx context.Context, userID int64, req model.AlertHistoryListReq) ([]entity.AlertHistory, error) {
	return nil, nil
}

func (d *memAlertDao) ClearHistory(ctx context.Context, userID int64) error { return nil }

func testAlertSvc(max int) (*alertService, *memAlertDao) {
	d := newMemAlertDao()
	return NewAlertService(d, conf.AlertConfig{MaxAlertsPerUser: max, MaxHistoryItems: 100}), d
}

func validReq() model.AlertCreateReq {
	return model.AlertCreateReq{
		CoinID:      "bitcoin",
		CoinSymbol:  "BTC",
		AlertType:   entity.AlertTypePriceAbove,
		TargetValue: 50000,
	}
}

func TestAlertCreateDefaults(t *testing.T) {
	s, _ := testAlertSvc(10)
	res, err := s.AlertCreate(context.Background(), 1, validReq())
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != entity.AlertStatusActive {
		t.Errorf("status = %s, want ACTIVE", res.Status)
	}
	if res.Repeat != entity.AlertRepeatOnce {
		t.Errorf("repeat = %s, want ONCE default", res.Repeat)
	}
	if len(res.Channels) != 1 || res.Channels[0] != "in_app" {
		t.Errorf("channels = %v, want default in_app", res.Channels)
	}
}

func TestAlertCreateValidation(t *testing.T) {
	s, _ := testAlertSvc(10)
	ctx := context.Background()

	bad := []model.AlertCreateReq{
		{CoinSymbol: "BTC", AlertType: entity.AlertTypePriceAbove, TargetValue: 1},          // 缺coinId
		{CoinID: "bitcoin", CoinSymbol: "BTC", AlertType: "BOGUS", TargetValue: 1},          // 非法类型
		{CoinID: "bitcoin", CoinSymbol: "BTC", AlertType: entity.AlertTypePercentChange, TargetValue: 5}, // 缺direction
		{CoinID: "bitcoin", CoinSymbol: "BTC", AlertType: entity.AlertTypeMarketCap, TargetValue: 1, Direction: "up"}, // 方向不匹配
		{CoinID: "bitcoin", CoinSymbol: "BTC", AlertType: entity.AlertTypePriceAbove, TargetValue: 1, Repeat: "SOMETIMES"},
		{CoinID: "bitcoin", CoinSymbol: "BTC", AlertType: entity.AlertTypePriceAbove, TargetValue: 1, Channels: []string{"pigeon"}},
	}
	for i, req := range bad {
		if _, err := s.AlertCreate(ctx, 1, req); !errors.IsCode(err, ecode.ValidateErr) {
			t.Errorf("case %d: err = %v, want ValidateErr", i, err)
		}
	}
}

func TestAlertCreateLimit(t *testing.T) {
	s, _ := testAlertSvc(2)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := s.AlertCreate(ctx, 1, validReq()); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.AlertCreate(ctx, 1, validReq()); !errors.IsCode(err, ecode.LimitExceededErr) {
		t.Errorf("err = %v, want LimitExceededErr", err)
	}
	// 别的用户不受影响
	if _, err := s.AlertCreate(ctx, 2, validReq()); err != nil {
		t.Errorf("other user blocked: %v", err)
	}
}

func TestAlertUpdateNotFound(t *testing.T) {
	s, _ := testAlertSvc(10)
	v := 1.0
	if _, err := s.AlertUpdate(context.Background(), 1, "nope", model.AlertUpdateReq{TargetValue: &v}); !errors.IsCode(err, ecode.NotFoundErr) {
		t.Errorf("err = %v, want NotFoundErr", err)
	}
}

func TestAlertUpdateEnableDisable(t *testing.T) {
	s, _ := testAlertSvc(10)
	ctx := context.Background()
	created, _ := s.AlertCreate(ctx, 1, validReq())

	off := false
	res, err := s.AlertUpdate(ctx, 1, created.ID, model.AlertUpdateReq{Enabled: &off})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != entity.AlertStatusDisabled {
		t.Errorf("status = %s, want DISABLED", res.Status)
	}

	on := true
	res, _ = s.AlertUpdate(ctx, 1, created.ID, model.AlertUpdateReq{Enabled: &on})
	if res.Status != entity.AlertStatusActive {
		t.Errorf("status = %s, want ACTIVE after enable", res.Status)
	}
}

// 部分更新的direction也要按类型校验
func TestAlertUpdateDirectionValidation(t *testing.T) {
	s, _ := testAlertSvc(10)
	ctx := context.Background()
	created, _ := s.AlertCreate(ctx, 1, model.AlertCreateReq{
		CoinID: "bitcoin", CoinSymbol: "BTC",
		AlertType: entity.AlertTypePercentChange, TargetValue: 5,
		Direction: entity.DirectionUp,
	})

	bogus := "sideways"
	if _, err := s.AlertUpdate(ctx, 1, created.ID, model.AlertUpdateReq{Direction: &bogus}); !errors.IsCode(err, ecode.ValidateErr) {
		t.Errorf("err = %v, want ValidateErr", err)
	}
	// 校验失败不落库
	got, _ := s.AlertGet(ctx, 1, created.ID)
	if got.Direction != entity.DirectionUp {
		t.Errorf("direction = %s, want unchanged up", got.Direction)
	}

	down := entity.DirectionDown
	res, err := s.AlertUpdate(ctx, 1, created.ID, model.AlertUpdateReq{Direction: &down})
	if err != nil {
		t.Fatal(err)
	}
	if res.Direction != entity.DirectionDown {
		t.Errorf("direction = %s, want down", res.Direction)
	}
}

func TestAlertDeleteNotFound(t *testing.T) {
	s, _ := testAlertSvc(10)
	if _, err := s.AlertDelete(context.Background(), 1, "missing"); !errors.IsCode(err, ecode.NotFoundErr) {
		t.Errorf("err = %v, want NotFoundErr", err)
	}
}

// 导出再导入（merge=false）完整复现原集合
func TestAlertExportImportRoundTrip(t *testing.T) {
	s, d := testAlertSvc(50)
	ctx := context.Background()

	r1 := validReq()
	r2 := model.AlertCreateReq{
		CoinID: "ethereum", CoinSymbol: "ETH",
		AlertType: entity.AlertTypePercentChange, TargetValue: 5,
		Direction: entity.DirectionDown, Repeat: entity.AlertRepeatDaily,
		Channels: []string{"in_app", "push"},
	}
	a1, _ := s.AlertCreate(ctx, 1, r1)
	a2, _ := s.AlertCreate(ctx, 1, r2)

	snap, err := s.AlertExport(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Alerts) != 2 || snap.Version != "1" {
		t.Fatalf("export: %d alerts version %s", len(snap.Alerts), snap.Version)
	}

	res, err := s.AlertImport(ctx, 1, model.AlertImportReq{Snapshot: snap, Merge: false})
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 2 || res.Invalid != 0 {
		t.Fatalf("import: %+v", res)
	}

	for _, want := range []model.AlertRes{a1, a2} {
		got, err := s.AlertGet(ctx, 1, want.ID)
		if err != nil {
			t.Fatalf("alert %s lost in round trip: %v", want.ID, err)
		}
		if got.CoinID != want.CoinID || got.AlertType != want.AlertType ||
			got.TargetValue != want.TargetValue || got.Repeat != want.Repeat ||
			got.Direction != want.Direction {
			t.Errorf("round trip mismatch: got %+v want %+v", got, want)
		}
	}
	_ = d
}

// 非法条目收集，合法条目照常导入
func TestAlertImportCollectsInvalid(t *testing.T) {
	s, _ := testAlertSvc(50)
	ctx := context.Background()

	snap := model.AlertExportSnapshot{
		Version: "1",
		Alerts: []model.AlertRes{
			{ID: "ok-1", CoinID: "bitcoin", CoinSymbol: "BTC", AlertType: entity.AlertTypePriceAbove, TargetValue: 1, Status: entity.AlertStatusActive, Repeat: entity.AlertRepeatOnce},
			{ID: "bad-1", CoinID: "", CoinSymbol: "ETH", AlertType: entity.AlertTypePriceAbove, TargetValue: 1},
			{ID: "bad-2", CoinID: "doge", CoinSymbol: "DOGE", AlertType: "WHATEVER", TargetValue: 1},
		},
	}
	res, err := s.AlertImport(ctx, 1, model.AlertImportReq{Snapshot: snap, Merge: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 1 || res.Invalid != 2 || len(res.InvalidAlerts) != 2 {
		t.Errorf("import result = %+v", res)
	}
}

func TestAlertImportBadVersion(t *testing.T) {
	s, _ := testAlertSvc(50)
	_, err := s.AlertImport(context.Background(), 1, model.AlertImportReq{
		Snapshot: model.AlertExportSnapshot{Version: "99"},
	})
	if !errors.IsCode(err, ecode.ValidateErr) {
		t.Errorf("err = %v, want ValidateErr", err)
	}
}
