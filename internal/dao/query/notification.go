package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coinpulse/internal/dao"
	"coinpulse/internal/model"
	"coinpulse/internal/model/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationDAOImpl Gorm 实现
type NotificationDAOImpl struct {
	db *gorm.DB
}

// NewNotificationDAO 创建 DAO 实例
func NewNotificationDAO(db *gorm.DB) dao.NotificationDAO {
	return &NotificationDAOImpl{db: db}
}

// Create 持久化一条新通知
func (d *NotificationDAOImpl) Create(ctx context.Context, n *entity.Notification) error {
	if n.ID == "" {
		return errors.New("notification ID is required")
	}
	if n.Timestamp == 0 {
		n.Timestamp = time.Now().UnixMilli()
	}
	return d.db.WithContext(ctx).Create(n).Error
}

// Save 整体更新（合并计数、刷新标题时使用）
func (d *NotificationDAOImpl) Save(ctx context.Context, n *entity.Notification) error {
	return d.db.WithContext(ctx).Save(n).Error
}

// GetByID 按ID查询，不存在返回nil
func (d *NotificationDAOImpl) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	var n entity.Notification
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

// FindGroupCandidate 查找可合并的目标：同用户同类型同相关性key，
// 且时间戳不早于since（毫秒）。只在未读里找，已读的不再动
func (d *NotificationDAOImpl) FindGroupCandidate(ctx context.Context, userID int64, ntype, groupKey string, since int64) (*entity.Notification, error) {
	var n entity.Notification
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND group_key = ? AND status = ? AND timestamp >= ?",
			userID, ntype, groupKey, entity.NotificationStatusUnread, since).
		Order("timestamp DESC").
		First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

// List 查询用户通知，按时间倒序
func (d *NotificationDAOImpl) List(ctx context.Context, userID int64, req model.NotificationListReq) ([]entity.Notification, error) {
	q := d.db.WithContext(ctx).Where("user_id = ?", userID)
	if req.Status != "" {
		q = q.Where("status = ?", req.Status)
	}
	if req.Type != "" {
		q = q.Where("type = ?", req.Type)
	}
	if req.Limit > 0 {
		q = q.Limit(req.Limit)
	}
	if req.Offset > 0 {
		q = q.Offset(req.Offset)
	}
	var items []entity.Notification
	if err := q.Order("timestamp DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications for user %d: %w", userID, err)
	}
	return items, nil
}

// UpdateStatus 修改单条通知状态，返回是否命中
func (d *NotificationDAOImpl) UpdateStatus(ctx context.Context, id string, userID int64, status string) (bool, error) {
	res := d.db.WithContext(ctx).Model(&entity.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("status", status)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkAllRead 全部标记已读
func (d *NotificationDAOImpl) MarkAllRead(ctx context.Context, userID int64) error {
	return d.db.WithContext(ctx).Model(&entity.Notification{}).
		Where("user_id = ? AND status = ?", userID, entity.NotificationStatusUnread).
		Update("status", entity.NotificationStatusRead).Error
}

// Delete 删除通知，返回是否真的删掉了
func (d *NotificationDAOImpl) Delete(ctx context.Context, id string, userID int64) (bool, error) {
	res := d.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&entity.Notification{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CountUnread 未读数
func (d *NotificationDAOImpl) CountUnread(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&entity.Notification{}).
		Where("user_id = ? AND status = ?", userID, entity.NotificationStatusUnread).
		Count(&count).Error
	return count, err
}

// GetPreferences 读取偏好，没有记录时返回nil
func (d *NotificationDAOImpl) GetPreferences(ctx context.Context, userID int64) (*entity.NotificationPreferences, error) {
	var p entity.NotificationPreferences
	err := d.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// SavePreferences 写入偏好（upsert）
func (d *NotificationDAOImpl) SavePreferences(ctx context.Context, p *entity.NotificationPreferences) error {
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(p).Error
}
