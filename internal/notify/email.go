package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"coinpulse/internal/consts"
	"coinpulse/internal/model/entity"
	"coinpulse/pkg/errors"
	"coinpulse/pkg/errors/ecode"
	"coinpulse/pkg/logger"
)

// MailSender 抽象SMTP发送器，便于测试
type MailSender interface {
	Send(to, subject, htmlBody string) error
}

// digestItem 摘要缓冲里的一条
type digestItem struct {
	title string
	body  string
	ts    int64
}

// EmailChannel 邮件渠道。immediate直接发，digest进每用户缓冲，
// 由周期任务合并成一封摘要邮件发出，off跳过
type EmailChannel struct {
	sender   MailSender
	interval time.Duration

	mu     sync.Mutex
	buffer map[string][]digestItem // 收件地址 -> 待发条目

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEmailChannel(sender MailSender, digestInterval time.Duration) *EmailChannel {
	if digestInterval <= 0 {
		digestInterval = time.Hour
	}
	return &EmailChannel{
		sender:   sender,
		interval: digestInterval,
		buffer:   make(map[string][]digestItem),
	}
}

func (c *EmailChannel) Name() string {
	return consts.ChannelEmail
}

func (c *EmailChannel) Deliver(ctx context.Context, msg *Message) error {
	prefs := msg.Prefs
	if prefs == nil || prefs.Email == "" {
		return errors.WithCodef(ecode.PermissionDeniedErr, "user %d has no email address", msg.UserID)
	}

	n := msg.Notification
	switch prefs.EmailFrequency {
	case entity.EmailFrequencyOff:
		return nil
	case entity.EmailFrequencyDigest:
		c.mu.Lock()
		c.buffer[prefs.Email] = append(c.buffer[prefs.Email], digestItem{
			title: n.Title,
			body:  n.Description,
			ts:    n.Timestamp,
		})
		c.mu.Unlock()
		return nil
	default: // immediate
		body := fmt.Sprintf("<h3>%s</h3><p>%s</p>", n.Title, n.Description)
		if err := c.sender.Send(prefs.Email, n.Title, body); err != nil {
			return errors.Wrap(err, ecode.NetworkErr, "send email failed")
		}
		return nil
	}
}

// Start 启动摘要发送任务
func (c *EmailChannel) Start(parent context.Context) {
	c.ctx, c.cancel = context.WithCancel(parent)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.ctx.Done():
				return
			case <-ticker.C:
				c.flush()
			}
		}
	}()
}

// Stop 停止摘要任务，把缓冲里剩下的发完
func (c *EmailChannel) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.flush()
}

// flush 把每个用户的缓冲合并成一封摘要邮件
func (c *EmailChannel) flush() {
	c.mu.Lock()
	pending := c.buffer
	c.buffer = make(map[string][]digestItem)
	c.mu.Unlock()

	for addr, items := range pending {
		if len(items) == 0 {
			continue
		}
		var b strings.Builder
		b.WriteString(fmt.Sprintf("<h3>您有 %d 条新提醒</h3><ul>", len(items)))
		for _, it := range items {
			b.WriteString(fmt.Sprintf("<li><b>%s</b> %s</li>", it.title, it.body))
		}
		b.WriteString("</ul>")

		subject := fmt.Sprintf("提醒摘要（%d条）", len(items))
		if err := c.sender.Send(addr, subject, b.String()); err != nil {
			logger.Warnf("send digest email to %s failed: %v", addr, err)
		}
	}
}
