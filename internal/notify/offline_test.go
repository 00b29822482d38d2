package notify

import (
	"testing"

	"coinpulse/internal/model/entity"
	"coinpulse/pkg/errors"
	"coinpulse/pkg/errors/ecode"
)

func qmsg(title string) *Message {
	return &Message{UserID: 1, Notification: &entity.Notification{Title: title}}
}

func TestOfflineQueueFIFO(t *testing.T) {
	q := NewOfflineQueue()
	q.Enqueue("in_app", qmsg("a"))
	q.Enqueue("in_app", qmsg("b"))
	q.Enqueue("push", qmsg("c"))

	var order []string
	q.Drain(func(channel string, msg *Message) error {
		order = append(order, msg.Notification.Title)
		return nil
	})

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("drain order = %v, want [a b c]", order)
	}
	if q.Len() != 0 {
		t.Errorf("len after drain = %d, want 0", q.Len())
	}
}

// 临时失败回到队尾，永久失败丢弃
func TestOfflineQueueRetryClassification(t *testing.T) {
	q := NewOfflineQueue()
	q.Enqueue("sms", qmsg("temp"))
	q.Enqueue("sms", qmsg("perm"))
	q.Enqueue("sms", qmsg("ok"))

	q.Drain(func(channel string, msg *Message) error {
		switch msg.Notification.Title {
		case "temp":
			return errors.WithCode(ecode.NetworkErr, "gateway down")
		case "perm":
			return errors.WithCode(ecode.Unknown, "rejected")
		}
		return nil
	})

	if q.Len() != 1 {
		t.Fatalf("len after drain = %d, want 1 (only the temporary failure)", q.Len())
	}

	var kept []string
	q.Drain(func(channel string, msg *Message) error {
		kept = append(kept, msg.Notification.Title)
		return nil
	})
	if len(kept) != 1 || kept[0] != "temp" {
		t.Errorf("requeued = %v, want [temp]", kept)
	}
}
