package notify

import (
	"context"

	"coinpulse/internal/consts"
	"coinpulse/internal/dao"
	"coinpulse/pkg/errors"
	"coinpulse/pkg/errors/ecode"
	"coinpulse/pkg/logger"
	"coinpulse/pkg/push/apns"

	"go.uber.org/multierr"
)

// Pusher 抽象APNs客户端，便于测试
type Pusher interface {
	Push(msg *apns.PushMessage, deviceToken string) (*apns.PushResponse, error)
}

// PushChannel APNs推送渠道，按用户查出全部设备token逐个下发
type PushChannel struct {
	deviceDao dao.DeviceDao
	client    Pusher
}

func NewPushChannel(deviceDao dao.DeviceDao, client Pusher) *PushChannel {
	return &PushChannel{deviceDao: deviceDao, client: client}
}

func (c *PushChannel) Name() string {
	return consts.ChannelPush
}

func (c *PushChannel) Deliver(ctx context.Context, msg *Message) error {
	tokens, err := c.deviceDao.UserDeviceTokenListGetByUserId(ctx, msg.UserID)
	if err != nil {
		return errors.Wrap(err, ecode.NetworkErr, "query device tokens failed")
	}
	if len(tokens) == 0 {
		// 没注册过token只停用推送渠道，不是故障
		return errors.WithCodef(ecode.PermissionDeniedErr, "user %d has no device token", msg.UserID)
	}

	n := msg.Notification
	pm := &apns.PushMessage{
		Category: n.Type,
		Title:    n.Title,
		Body:     n.Description,
		Sound:    "default",
		ExtParams: map[string]interface{}{
			"notification_id": n.ID,
			"group":           n.GroupKey,
		},
	}

	var errs error
	for _, t := range tokens {
		if _, err := c.client.Push(pm, t.DeviceToken); err != nil {
			logger.Warnf("APNS push to device %s failed: %v", t.DeviceUUID, err)
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil && len(multierr.Errors(errs)) == len(tokens) {
		// 全部失败按临时错误处理
		return errors.Wrap(errs, ecode.NetworkErr, "all device pushes failed")
	}
	return nil
}
