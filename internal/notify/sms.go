package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"coinpulse/internal/consts"
	"coinpulse/pkg/errors"
	"coinpulse/pkg/errors/ecode"

	"github.com/goccy/go-json"
)

// SmsChannel 短信渠道：POST到外部网关。
// 网关5xx或网络错误算临时故障，4xx算永久失败
type SmsChannel struct {
	gatewayURL string
	client     *http.Client
}

func NewSmsChannel(gatewayURL string) *SmsChannel {
	return &SmsChannel{
		gatewayURL: gatewayURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *SmsChannel) Name() string {
	return consts.ChannelSms
}

type smsPayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func (c *SmsChannel) Deliver(ctx context.Context, msg *Message) error {
	if c.gatewayURL == "" {
		return errors.WithCode(ecode.PermissionDeniedErr, "sms gateway not configured")
	}
	prefs := msg.Prefs
	if prefs == nil || prefs.PhoneNumber == "" {
		return errors.WithCodef(ecode.PermissionDeniedErr, "user %d has no phone number", msg.UserID)
	}

	n := msg.Notification
	body, err := json.Marshal(smsPayload{
		To:      prefs.PhoneNumber,
		Message: fmt.Sprintf("%s %s", n.Title, n.Description),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, ecode.NetworkErr, "sms gateway unreachable")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		return errors.WithCodef(ecode.NetworkErr, "sms gateway returned %d", resp.StatusCode)
	default:
		return errors.WithCodef(ecode.Unknown, "sms gateway rejected request: %d", resp.StatusCode)
	}
}
