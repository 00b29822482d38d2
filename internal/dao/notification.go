package dao

import (
	"context"

	"coinpulse/internal/model"
	"coinpulse/internal/model/entity"
)

// NotificationDAO 通知及偏好数据访问对象接口
type NotificationDAO interface {
	// Create 持久化一条新通知
	Create(ctx context.Context, n *entity.Notification) error
	// Save 整体更新（合并计数、刷新标题时使用）
	Save(ctx context.Context, n *entity.Notification) error
	// GetByID 按ID查询，不存在返回nil
	GetByID(ctx context.Context, id string) (*entity.Notification, error)
	// FindGroupCandidate 查找可合并的目标：同用户同类型同相关性key，
	// 且时间戳不早于since（毫秒）。找不到返回nil
	FindGroupCandidate(ctx context.Context, userID int64, ntype, groupKey string, since int64) (*entity.Notification, error)
	// List 查询用户通知，按时间倒序
	List(ctx context.Context, userID int64, req model.NotificationListReq) ([]entity.Notification, error)
	// UpdateStatus 修改单条通知状态，返回是否命中
	UpdateStatus(ctx context.Context, id string, userID int64, status string) (bool, error)
	// MarkAllRead 全部标记已读
	MarkAllRead(ctx context.Context, userID int64) error
	// Delete 删除通知，返回是否真的删掉了
	Delete(ctx context.Context, id string, userID int64) (bool, error)
	// CountUnread 未读数
	CountUnread(ctx context.Context, userID int64) (int64, error)

	// 用户偏好

	// GetPreferences 读取偏好，没有记录时返回nil（调用方落默认值）
	GetPreferences(ctx context.Context, userID int64) (*entity.NotificationPreferences, error)
	// SavePreferences 写入偏好（upsert）
	SavePreferences(ctx context.Context, p *entity.NotificationPreferences) error
}
