package alerting

import (
	"database/sql"
	"time"

	"coinpulse/internal/market"
	"coinpulse/internal/model/entity"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"
)

// 状态机：ACTIVE/PENDING -> TRIGGERED，重复策略决定之后怎么走。
// ONCE停在TRIGGERED（终态），ALWAYS立即回ACTIVE，
// HOURLY/DAILY留在TRIGGERED，由调度器定时器到点拉回ACTIVE。

// ReactivateDelay 重复策略对应的回到ACTIVE的延迟。
// 第二个返回值为false表示该策略不需要延迟定时器
func ReactivateDelay(repeat string) (time.Duration, bool) {
	switch repeat {
	case entity.AlertRepeatHourly:
		return time.Hour, true
	case entity.AlertRepeatDaily:
		return 24 * time.Hour, true
	}
	return 0, false
}

// ApplyTrigger 把触发结果写到提醒上：状态、触发时间、触发快照。
// 返回触发后提醒是否仍参与后续评估（ALWAYS立即回ACTIVE时为true）
func ApplyTrigger(a *entity.Alert, s *market.Snapshot, now time.Time) bool {
	data := entity.TriggeredData{
		Price:            s.Price,
		Volume:           s.Volume,
		MarketCap:        s.MarketCap,
		ChangePercentage: s.Change24h,
	}
	raw, _ := json.Marshal(data)

	a.TriggeredAt = sql.NullTime{Time: now, Valid: true}
	a.TriggeredData = datatypes.JSON(raw)

	if a.Repeat == entity.AlertRepeatAlways {
		a.Status = entity.AlertStatusActive
		return true
	}
	a.Status = entity.AlertStatusTriggered
	return false
}

// Expired 判断提醒是否已过期（TTL到了且还在非终态）
func Expired(a *entity.Alert, now time.Time) bool {
	if !a.ExpiresAt.Valid {
		return false
	}
	switch a.Status {
	case entity.AlertStatusExpired, entity.AlertStatusDisabled:
		return false
	}
	return !now.Before(a.ExpiresAt.Time)
}
