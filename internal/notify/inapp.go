package notify

import (
	"context"

	"coinpulse/internal/consts"
	"coinpulse/internal/event"

	"github.com/goccy/go-json"
)

// InAppChannel 应用内渠道：通知已由路由器落库，
// 这里只负责把它广播到事件总线，websocket网关推给在线客户端
type InAppChannel struct {
	bus *event.Bus
}

func NewInAppChannel(bus *event.Bus) *InAppChannel {
	return &InAppChannel{bus: bus}
}

func (c *InAppChannel) Name() string {
	return consts.ChannelInApp
}

func (c *InAppChannel) Deliver(ctx context.Context, msg *Message) error {
	res := ToNotificationRes(msg.Notification)
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}
	c.bus.PublishNotification(event.NotificationPushed{
		UserID:  msg.UserID,
		Payload: payload,
	})
	return nil
}
