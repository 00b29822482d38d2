package mail

import (
	"crypto/tls"

	"coinpulse/conf"

	gomail "github.com/go-mail/mail"
)

// Sender SMTP邮件发送器
type Sender struct {
	cfg    conf.EmailConfig
	dialer *gomail.Dialer
}

func NewSender(cfg conf.EmailConfig) *Sender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	return &Sender{cfg: cfg, dialer: d}
}

// Send 发送一封HTML邮件
func (s *Sender) Send(to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.Sender)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)
	return s.dialer.DialAndSend(m)
}
