package entity

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
	"gorm.io/plugin/soft_delete"
)

// 提醒类型
const (
	AlertTypePriceAbove    = "PRICE_ABOVE"
	AlertTypePriceBelow    = "PRICE_BELOW"
	AlertTypePercentChange = "PERCENT_CHANGE"
	AlertTypeVolumeSpike   = "VOLUME_SPIKE"
	AlertTypeMarketCap     = "MARKET_CAP"
)

// 提醒状态机状态
const (
	AlertStatusActive    = "ACTIVE"
	AlertStatusPending   = "PENDING" // 等待首次评估，评估语义上等同ACTIVE
	AlertStatusTriggered = "TRIGGERED"
	AlertStatusExpired   = "EXPIRED"
	AlertStatusDisabled  = "DISABLED"
)

// 重复策略
const (
	AlertRepeatOnce   = "ONCE"
	AlertRepeatAlways = "ALWAYS"
	AlertRepeatHourly = "HOURLY"
	AlertRepeatDaily  = "DAILY"
)

// 方向（PERCENT_CHANGE取up/down，MARKET_CAP取above/below）
const (
	DirectionUp    = "up"
	DirectionDown  = "down"
	DirectionAbove = "above"
	DirectionBelow = "below"
)

// ValidAlertType 判断提醒类型是否合法
func ValidAlertType(t string) bool {
	switch t {
	case AlertTypePriceAbove, AlertTypePriceBelow, AlertTypePercentChange,
		AlertTypeVolumeSpike, AlertTypeMarketCap:
		return true
	}
	return false
}

// ValidRepeat 判断重复策略是否合法
func ValidRepeat(r string) bool {
	switch r {
	case AlertRepeatOnce, AlertRepeatAlways, AlertRepeatHourly, AlertRepeatDaily:
		return true
	}
	return false
}

// TriggeredData 触发时刻的行情快照，落库为JSON
type TriggeredData struct {
	Price            float64 `json:"price"`
	Volume           float64 `json:"volume"`
	MarketCap        float64 `json:"market_cap"`
	ChangePercentage float64 `json:"change_percentage"`
}

// Alert 提醒定义表结构
type Alert struct {
	ID          string `gorm:"primaryKey;type:varchar(36)" json:"id"`                           // 主键，对外暴露的提醒ID
	UserID      int64  `gorm:"index:idx_user_coin;not null" json:"user_id"`                     // 索引。所属用户
	CoinID      string `gorm:"index:idx_user_coin;index;type:varchar(64);not null" json:"coin_id"` // 币种ID（bitcoin）
	CoinSymbol  string `gorm:"type:varchar(20);not null" json:"coin_symbol"`                    // 币种符号（BTC）
	AlertType   string `gorm:"type:varchar(20);not null" json:"alert_type"`                     // 提醒类型
	TargetValue float64 `gorm:"type:decimal(30,10);not null" json:"target_value"`               // 阈值，语义取决于AlertType
	Direction   string `gorm:"type:varchar(10)" json:"direction"`                               // PERCENT_CHANGE/MARKET_CAP必填

	// VOLUME_SPIKE的基线成交量，未设置时首次评估记录基线且不触发
	AverageVolume sql.NullFloat64 `gorm:"type:decimal(30,10)" json:"average_volume"`

	Status string `gorm:"index;type:varchar(12);not null" json:"status"` // 状态机状态
	Repeat string `gorm:"type:varchar(10);not null" json:"repeat"`       // 重复策略

	TriggeredAt   sql.NullTime   `gorm:"" json:"triggered_at"`                             // 最近触发时间，可空
	TriggeredData datatypes.JSON `gorm:"type:json" json:"triggered_data"`                  // 触发时刻快照
	Channels      datatypes.JSON `gorm:"type:json" json:"notification_channels"`           // 通知渠道标识列表
	ExpiresAt     sql.NullTime   `gorm:"" json:"expires_at"`                               // TTL，超时转EXPIRED，可空

	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
	IsDel     soft_delete.DeletedAt `gorm:"softDelete:flag" json:"-"` // 软删除标记，删除即从后续评估中移除
}

func (Alert) TableName() string {
	return "alert"
}

// Evaluable 当前状态是否参与评估
func (a *Alert) Evaluable() bool {
	return a.Status == AlertStatusActive || a.Status == AlertStatusPending
}

// AlertHistory 触发历史表结构，只追加，超出上限按triggeredAt先进先出淘汰
type AlertHistory struct {
	ID          int64   `gorm:"primaryKey" json:"id"`                                     // 雪花ID
	AlertID     string  `gorm:"index;type:varchar(36);not null" json:"alert_id"`          // 关联的提醒ID
	UserID      int64   `gorm:"index:idx_user_trig;not null" json:"user_id"`              // 所属用户
	CoinID      string  `gorm:"index;type:varchar(64);not null" json:"coin_id"`           // 币种ID
	CoinSymbol  string  `gorm:"type:varchar(20)" json:"coin_symbol"`                      // 币种符号
	AlertType   string  `gorm:"type:varchar(20);not null" json:"alert_type"`              // 触发时的提醒类型
	TargetValue float64 `gorm:"type:decimal(30,10)" json:"target_value"`                  // 触发时的阈值
	Direction   string  `gorm:"type:varchar(10)" json:"direction"`                        // 方向
	TriggeredAt int64   `gorm:"index:idx_user_trig;not null" json:"triggered_at"`         // 触发时间戳（毫秒），用于排序和淘汰
	Price       float64 `gorm:"type:decimal(30,10)" json:"price"`                         // 触发时价格
	Volume      float64 `gorm:"type:decimal(30,10)" json:"volume"`                        // 触发时成交量
	MarketCap   float64 `gorm:"type:decimal(30,10)" json:"market_cap"`                    // 触发时市值

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (AlertHistory) TableName() string {
	return "alert_history"
}
