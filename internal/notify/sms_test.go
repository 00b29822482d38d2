package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"coinpulse/internal/model/entity"

	"github.com/goccy/go-json"
)

func smsMsg(phone string) *Message {
	return &Message{
		UserID:       1,
		Notification: &entity.Notification{Title: "BTC 涨破 50000", Description: "当前 50500"},
		Prefs:        &entity.NotificationPreferences{UserID: 1, PhoneNumber: phone},
	}
}

func TestSmsDeliver(t *testing.T) {
	var got smsPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewSmsChannel(srv.URL)
	if err := c.Deliver(context.Background(), smsMsg("+8613800000000")); err != nil {
		t.Fatal(err)
	}
	if got.To != "+8613800000000" {
		t.Errorf("to = %s", got.To)
	}
	if got.Message == "" {
		t.Error("message body empty")
	}
}

func TestSmsGatewayErrors(t *testing.T) {
	status := http.StatusBadGateway
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := NewSmsChannel(srv.URL)

	// 5xx是临时错误，可回队重试
	if err := c.Deliver(context.Background(), smsMsg("+86138")); err == nil || !Temporary(err) {
		t.Errorf("5xx should be temporary, got %v", err)
	}

	// 4xx是永久失败
	status = http.StatusBadRequest
	if err := c.Deliver(context.Background(), smsMsg("+86138")); err == nil || Temporary(err) {
		t.Errorf("4xx should be permanent, got %v", err)
	}
}

func TestSmsMissingPhone(t *testing.T) {
	c := NewSmsChannel("http://gateway.invalid")
	err := c.Deliver(context.Background(), smsMsg(""))
	if err == nil || !PermissionDenied(err) {
		t.Errorf("missing phone should be PermissionDenied, got %v", err)
	}
}
