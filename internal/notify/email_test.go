package notify

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"coinpulse/internal/model/entity"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string // "to|subject"
}

func (f *fakeSender) Send(to, subject, htmlBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to+"|"+subject)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func emailMsg(freq, addr, title string) *Message {
	return &Message{
		UserID: 1,
		Notification: &entity.Notification{
			Title:     title,
			Timestamp: time.Now().UnixMilli(),
		},
		Prefs: &entity.NotificationPreferences{
			UserID:         1,
			Email:          addr,
			EmailFrequency: freq,
		},
	}
}

func TestEmailImmediate(t *testing.T) {
	s := &fakeSender{}
	c := NewEmailChannel(s, time.Hour)

	if err := c.Deliver(context.Background(), emailMsg(entity.EmailFrequencyImmediate, "u@example.com", "BTC 涨破 50000")); err != nil {
		t.Fatal(err)
	}
	if s.count() != 1 {
		t.Errorf("sent = %d, want 1", s.count())
	}
}

func TestEmailOff(t *testing.T) {
	s := &fakeSender{}
	c := NewEmailChannel(s, time.Hour)

	if err := c.Deliver(context.Background(), emailMsg(entity.EmailFrequencyOff, "u@example.com", "x")); err != nil {
		t.Fatal(err)
	}
	if s.count() != 0 {
		t.Errorf("sent = %d, want 0 for off", s.count())
	}
}

// digest模式先进缓冲，flush时合并成一封
func TestEmailDigestBuffersAndFlushes(t *testing.T) {
	s := &fakeSender{}
	c := NewEmailChannel(s, time.Hour)

	ctx := context.Background()
	c.Deliver(ctx, emailMsg(entity.EmailFrequencyDigest, "u@example.com", "a"))
	c.Deliver(ctx, emailMsg(entity.EmailFrequencyDigest, "u@example.com", "b"))
	c.Deliver(ctx, emailMsg(entity.EmailFrequencyDigest, "v@example.com", "c"))

	if s.count() != 0 {
		t.Fatalf("sent before flush = %d, want 0", s.count())
	}

	c.flush()

	if s.count() != 2 {
		t.Fatalf("sent after flush = %d, want 2 (one per address)", s.count())
	}
	var uSubject string
	for _, rec := range s.sent {
		if strings.HasPrefix(rec, "u@example.com|") {
			uSubject = rec
		}
	}
	if !strings.Contains(uSubject, "2") {
		t.Errorf("digest subject %q should mention 2 items", uSubject)
	}
}

func TestEmailMissingAddress(t *testing.T) {
	c := NewEmailChannel(&fakeSender{}, time.Hour)
	err := c.Deliver(context.Background(), &Message{
		UserID:       1,
		Notification: &entity.Notification{Title: "x"},
		Prefs:        &entity.NotificationPreferences{UserID: 1, EmailFrequency: entity.EmailFrequencyImmediate},
	})
	if err == nil || !PermissionDenied(err) {
		t.Errorf("missing address should be PermissionDenied, got %v", err)
	}
}
