package alerting

import (
	"database/sql"
	"testing"
	"time"

	"coinpulse/internal/market"
	"coinpulse/internal/model/entity"
)

func snap(price, volume, marketCap, change float64) *market.Snapshot {
	return &market.Snapshot{
		CoinID:       "bitcoin",
		Symbol:       "BTC",
		Price:        price,
		Volume:       volume,
		MarketCap:    marketCap,
		Change24h:    change,
		HasPrice:     true,
		HasVolume:    true,
		HasMarketCap: true,
		HasChange:    true,
		FetchedAt:    time.Now(),
	}
}

func TestEvaluatePriceAbove(t *testing.T) {
	a := &entity.Alert{ID: "a1", AlertType: entity.AlertTypePriceAbove, TargetValue: 50000}

	if !Evaluate(a, snap(50500, 0, 0, 0)) {
		t.Error("price 50500 >= 50000 should trigger")
	}
	if !Evaluate(a, snap(50000, 0, 0, 0)) {
		t.Error("price == target should trigger (>=)")
	}
	if Evaluate(a, snap(49999, 0, 0, 0)) {
		t.Error("price below target should not trigger")
	}
}

func TestEvaluatePriceBelow(t *testing.T) {
	a := &entity.Alert{ID: "a2", AlertType: entity.AlertTypePriceBelow, TargetValue: 30000}

	if !Evaluate(a, snap(29000, 0, 0, 0)) {
		t.Error("price 29000 <= 30000 should trigger")
	}
	if Evaluate(a, snap(31000, 0, 0, 0)) {
		t.Error("price above target should not trigger")
	}
}

func TestEvaluatePercentChange(t *testing.T) {
	up := &entity.Alert{ID: "a3", AlertType: entity.AlertTypePercentChange, TargetValue: 5, Direction: entity.DirectionUp}
	down := &entity.Alert{ID: "a4", AlertType: entity.AlertTypePercentChange, TargetValue: 5, Direction: entity.DirectionDown}

	if !Evaluate(up, snap(100, 0, 0, 6.2)) {
		t.Error("change +6.2 with up/5 should trigger")
	}
	if Evaluate(up, snap(100, 0, 0, 4.9)) {
		t.Error("change +4.9 with up/5 should not trigger")
	}
	if !Evaluate(down, snap(100, 0, 0, -5.1)) {
		t.Error("change -5.1 with down/5 should trigger")
	}
	if Evaluate(down, snap(100, 0, 0, -3)) {
		t.Error("change -3 with down/5 should not trigger")
	}
}

func TestEvaluateVolumeSpike(t *testing.T) {
	a := &entity.Alert{
		ID:            "a5",
		AlertType:     entity.AlertTypeVolumeSpike,
		TargetValue:   3, // 3倍基线
		AverageVolume: sql.NullFloat64{Float64: 1000, Valid: true},
	}

	if Evaluate(a, snap(0, 2999, 0, 0)) {
		t.Error("volume below 3x baseline should not trigger")
	}
	if !Evaluate(a, snap(0, 3500, 0, 0)) {
		t.Error("volume 3500 >= 1000*3 should trigger")
	}

	// 基线未建立时不触发，由调度器先落基线
	noBase := &entity.Alert{ID: "a6", AlertType: entity.AlertTypeVolumeSpike, TargetValue: 3}
	if Evaluate(noBase, snap(0, 999999, 0, 0)) {
		t.Error("missing baseline must not trigger")
	}
}

func TestEvaluateMarketCap(t *testing.T) {
	above := &entity.Alert{ID: "a7", AlertType: entity.AlertTypeMarketCap, TargetValue: 1e12, Direction: entity.DirectionAbove}
	below := &entity.Alert{ID: "a8", AlertType: entity.AlertTypeMarketCap, TargetValue: 1e12, Direction: entity.DirectionBelow}

	if !Evaluate(above, snap(0, 0, 1.2e12, 0)) {
		t.Error("market cap above threshold should trigger")
	}
	if Evaluate(above, snap(0, 0, 0.8e12, 0)) {
		t.Error("market cap below threshold should not trigger for above")
	}
	if !Evaluate(below, snap(0, 0, 0.8e12, 0)) {
		t.Error("market cap below threshold should trigger for below")
	}
}

// 缺失字段直接跳过规则，不得当0参与比较
func TestEvaluateMissingFieldsSkip(t *testing.T) {
	s := snap(0, 0, 0, 0)
	s.HasPrice = false
	s.HasVolume = false
	s.HasMarketCap = false
	s.HasChange = false

	cases := []*entity.Alert{
		{ID: "m1", AlertType: entity.AlertTypePriceBelow, TargetValue: 30000}, // 缺价格，0<=30000不能误触发
		{ID: "m2", AlertType: entity.AlertTypePriceAbove, TargetValue: 0},
		{ID: "m3", AlertType: entity.AlertTypePercentChange, TargetValue: 1, Direction: entity.DirectionDown},
		{ID: "m4", AlertType: entity.AlertTypeVolumeSpike, TargetValue: 1, AverageVolume: sql.NullFloat64{Float64: 1, Valid: true}},
		{ID: "m5", AlertType: entity.AlertTypeMarketCap, TargetValue: 1, Direction: entity.DirectionBelow},
	}
	for _, a := range cases {
		if Evaluate(a, s) {
			t.Errorf("alert %s (%s): unavailable field must not trigger", a.ID, a.AlertType)
		}
	}
}

func TestEvaluateUnknownType(t *testing.T) {
	a := &entity.Alert{ID: "u1", AlertType: "SOMETHING_ELSE", TargetValue: 1}
	if Evaluate(a, snap(100, 100, 100, 100)) {
		t.Error("unknown type must not trigger")
	}
}

// 纯函数：同一提醒同一快照重复评估结果一致
func TestEvaluateIdempotent(t *testing.T) {
	a := &entity.Alert{ID: "i1", AlertType: entity.AlertTypePriceAbove, TargetValue: 50000}
	s := snap(50500, 0, 0, 0)

	first := Evaluate(a, s)
	second := Evaluate(a, s)
	if first != second {
		t.Errorf("evaluate not idempotent: %v then %v", first, second)
	}
}
