package entity

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/plugin/soft_delete"
)

// 通知类型
const (
	NotificationTypePriceAlert = "price_alert"
	NotificationTypeNews       = "news"
	NotificationTypeSystem     = "system"
	NotificationTypeSocial     = "social"
	NotificationTypePortfolio  = "portfolio"
	NotificationTypeSecurity   = "security"
)

// 通知状态
const (
	NotificationStatusUnread    = "unread"
	NotificationStatusRead      = "read"
	NotificationStatusDismissed = "dismissed"
	NotificationStatusArchived  = "archived"
)

// 优先级
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// 邮件频率
const (
	EmailFrequencyImmediate = "immediate"
	EmailFrequencyDigest    = "digest"
	EmailFrequencyOff       = "off"
)

// NotificationAction 通知上挂的动作（如"查看币种"）
type NotificationAction struct {
	Label  string `json:"label"`
	Target string `json:"target"`
}

// NotificationGroupItem 合并进一条通知的单条摘要
type NotificationGroupItem struct {
	Title     string `json:"title"`
	Timestamp int64  `json:"timestamp"`
}

// Notification 通知表结构，合并（grouping）在原记录上原地更新而非新建
type Notification struct {
	ID          string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      int64          `gorm:"index:idx_user_ts;not null" json:"user_id"`
	Type        string         `gorm:"index;type:varchar(20);not null" json:"type"`
	Title       string         `gorm:"type:varchar(200)" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Data        datatypes.JSON `gorm:"type:json" json:"data"`    // 载荷：alertId/coinId/price/targetValue等
	Actions     datatypes.JSON `gorm:"type:json" json:"actions"` // NotificationAction列表
	Status      string         `gorm:"index;type:varchar(12);not null" json:"status"`
	Priority    string         `gorm:"type:varchar(8);not null" json:"priority"`
	Timestamp   int64          `gorm:"index:idx_user_ts;not null" json:"timestamp"` // 毫秒时间戳，合并时刷新

	// 合并字段：同窗口内相似通知归并到一条
	GroupKey   string         `gorm:"index;type:varchar(100)" json:"group_key"` // 相关性key：价格提醒取coinId，新闻取来源
	GroupCount int            `gorm:"not null;default:1" json:"group_count"`
	GroupItems datatypes.JSON `gorm:"type:json" json:"group_items"` // NotificationGroupItem列表

	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
	IsDel     soft_delete.DeletedAt `gorm:"softDelete:flag" json:"-"`
}

func (Notification) TableName() string {
	return "notification"
}

// NotificationPreferences 用户通知偏好，一人一条
type NotificationPreferences struct {
	UserID          int64          `gorm:"primaryKey" json:"user_id"`
	EnabledChannels datatypes.JSON `gorm:"type:json" json:"enabled_channels"` // 渠道标识列表
	// 允许的通知类型，支持price_alert_<coinId>形式的细粒度禁用
	EnabledTypes   datatypes.JSON `gorm:"type:json" json:"enabled_types"`
	GroupSimilar   bool           `gorm:"not null;default:true" json:"group_similar"`
	EmailFrequency string         `gorm:"type:varchar(10);not null;default:immediate" json:"email_frequency"`
	Email          string         `gorm:"type:varchar(120)" json:"email"`        // 邮件渠道收件地址
	PhoneNumber    string         `gorm:"type:varchar(32)" json:"phone_number"`  // 短信渠道号码
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (NotificationPreferences) TableName() string {
	return "notification_preferences"
}
