package notify

import (
	"context"

	"coinpulse/internal/model/entity"
	"coinpulse/pkg/errors"
	"coinpulse/pkg/errors/ecode"
)

// Message 一次渠道投递的上下文：已落库的通知和用户偏好
type Message struct {
	UserID       int64
	Notification *entity.Notification
	Prefs        *entity.NotificationPreferences
}

// Channel 投递渠道。各渠道独立失败，一个渠道挂了不影响其他渠道
type Channel interface {
	Name() string
	Deliver(ctx context.Context, msg *Message) error
}

// Temporary 判断投递错误是否为临时性（网络类），临时错误可重试/回队
func Temporary(err error) bool {
	return errors.IsCode(err, ecode.NetworkErr)
}

// PermissionDenied 渠道不可用（如没有推送token），只停用该渠道不算故障
func PermissionDenied(err error) bool {
	return errors.IsCode(err, ecode.PermissionDeniedErr)
}
