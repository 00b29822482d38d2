package entity

import (
	"time"

	"gorm.io/plugin/soft_delete"
)

// DeviceToken APNs推送的设备标识，推送通道按用户查出全部token逐个下发
type DeviceToken struct {
	Id          int64                 `gorm:"column:id;primary_key;" json:"id"`
	UserId      int64                 `gorm:"column:user_id;index;not null" json:"user_id"`     // 所属用户
	DeviceToken string                `gorm:"column:device_token;not null" json:"device_token"` // 设备标识符
	DeviceUUID  string                `gorm:"column:device_uuid;not null" json:"device_uuid"`   // 设备的UUID
	Platform    string                `gorm:"platform;not null" json:"platform"`                // 设备平台
	CreatedAt   time.Time             `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time             `gorm:"column:updated_at" json:"updated_at"`
	IsDel       soft_delete.DeletedAt `gorm:"softDelete:flag" json:"-"`
}

func (DeviceToken) TableName() string {
	return "device_token"
}
