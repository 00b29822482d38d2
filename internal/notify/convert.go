package notify

import (
	"coinpulse/internal/model"
	"coinpulse/internal/model/entity"

	"github.com/goccy/go-json"
)

// ToNotificationRes 实体转响应结构，合并信息只在count>1时带出
func ToNotificationRes(n *entity.Notification) model.NotificationRes {
	res := model.NotificationRes{
		ID:          n.ID,
		Type:        n.Type,
		Title:       n.Title,
		Description: n.Description,
		Status:      n.Status,
		Priority:    n.Priority,
		Timestamp:   n.Timestamp,
	}
	if len(n.Data) > 0 {
		_ = json.Unmarshal(n.Data, &res.Data)
	}
	if len(n.Actions) > 0 {
		_ = json.Unmarshal(n.Actions, &res.Actions)
	}
	if n.GroupCount > 1 {
		g := &model.NotificationGroup{Count: n.GroupCount}
		if len(n.GroupItems) > 0 {
			_ = json.Unmarshal(n.GroupItems, &g.Items)
		}
		res.Group = g
	}
	return res
}
