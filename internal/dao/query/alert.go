package query

import (
	"context"
	"errors"
	"fmt"

	"coinpulse/internal/dao"
	"coinpulse/internal/model"
	"coinpulse/internal/model/entity"

	"gorm.io/gorm"
)

// AlertDAOImpl Gorm 实现
type AlertDAOImpl struct {
	db *gorm.DB
}

// NewAlertDAO 创建 DAO 实例
func NewAlertDAO(db *gorm.DB) dao.AlertDAO {
	return &AlertDAOImpl{db: db}
}

// --- 提醒定义管理 ---

// Create 创建新的提醒
func (d *AlertDAOImpl) Create(ctx context.Context, alert *entity.Alert) error {
	if alert.ID == "" {
		return errors.New("alert ID is required")
	}
	return d.db.WithContext(ctx).Create(alert).Error
}

// Save 整体更新提醒
// ⚠️ 注意：GORM 的 Save() 会更新所有字段，调用方需传入完整实体
func (d *AlertDAOImpl) Save(ctx context.Context, alert *entity.Alert) error {
	return d.db.WithContext(ctx).Save(alert).Error
}

// UpdateFields 部分字段更新
func (d *AlertDAOImpl) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return d.db.WithContext(ctx).Model(&entity.Alert{}).Where("id = ?", id).Updates(fields).Error
}

// Delete 软删除提醒，返回是否真的删掉了
func (d *AlertDAOImpl) Delete(ctx context.Context, id string, userID int64) (bool, error) {
	res := d.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&entity.Alert{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetByID 按ID查询，不存在返回nil
func (d *AlertDAOImpl) GetByID(ctx context.Context, id string) (*entity.Alert, error) {
	var alert entity.Alert
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &alert, nil
}

// List 查询用户提醒，支持状态/币种/类型过滤和排序
func (d *AlertDAOImpl) List(ctx context.Context, userID int64, req model.AlertListReq) ([]entity.Alert, error) {
	q := d.db.WithContext(ctx).Where("user_id = ?", userID)
	if req.Status != "" {
		q = q.Where("status = ?", req.Status)
	}
	if req.CoinID != "" {
		q = q.Where("coin_id = ?", req.CoinID)
	}
	if req.Type != "" {
		q = q.Where("alert_type = ?", req.Type)
	}
	// 排序字段白名单，防止注入
	col := "created_at"
	switch req.SortBy {
	case "", "created":
	case "updated":
		col = "updated_at"
	case "coin":
		col = "coin_symbol"
	case "value":
		col = "target_value"
	default:
		return nil, fmt.Errorf("unsupported sort field: %s", req.SortBy)
	}
	order := "DESC"
	if req.Order == "asc" {
		order = "ASC"
	}
	var alerts []entity.Alert
	if err := q.Order(col + " " + order).Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list alerts for user %d: %w", userID, err)
	}
	return alerts, nil
}

// ListEvaluable 查询所有参与评估的提醒（用于周期检查初始化）
func (d *AlertDAOImpl) ListEvaluable(ctx context.Context) ([]entity.Alert, error) {
	var alerts []entity.Alert
	err := d.db.WithContext(ctx).
		Where("status IN ?", []string{entity.AlertStatusActive, entity.AlertStatusPending}).
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluable alerts: %w", err)
	}
	return alerts, nil
}

// ListEvaluableByCoin 查询某币种参与评估的提醒（快速通道）
func (d *AlertDAOImpl) ListEvaluableByCoin(ctx context.Context, coinID string) ([]entity.Alert, error) {
	var alerts []entity.Alert
	err := d.db.WithContext(ctx).
		Where("coin_id = ? AND status IN ?", coinID, []string{entity.AlertStatusActive, entity.AlertStatusPending}).
		Find(&alerts).Error
	return alerts, err
}

// ListAwaitingReactivation 查询已触发且带冷却回活的提醒（重启后恢复定时器用）
func (d *AlertDAOImpl) ListAwaitingReactivation(ctx context.Context) ([]entity.Alert, error) {
	var alerts []entity.Alert
	err := d.db.WithContext(ctx).
		Where("status = ? AND `repeat` IN ?", entity.AlertStatusTriggered,
			[]string{entity.AlertRepeatHourly, entity.AlertRepeatDaily}).
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts awaiting reactivation: %w", err)
	}
	return alerts, nil
}

// CountByUser 用户当前提醒数（配额检查）
func (d *AlertDAOImpl) CountByUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&entity.Alert{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// Stats 用户提醒聚合统计
func (d *AlertDAOImpl) Stats(ctx context.Context, userID int64) (model.AlertStatsRes, error) {
	var rows []struct {
		Status string
		Cnt    int
	}
	var stats model.AlertStatsRes
	err := d.db.WithContext(ctx).Model(&entity.Alert{}).
		Select("status, count(*) as cnt").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return stats, fmt.Errorf("failed to count alert stats for user %d: %w", userID, err)
	}
	for _, r := range rows {
		switch r.Status {
		case entity.AlertStatusActive:
			stats.Active = r.Cnt
		case entity.AlertStatusTriggered:
			stats.Triggered = r.Cnt
		case entity.AlertStatusPending:
			stats.Pending = r.Cnt
		}
		stats.Total += r.Cnt
	}
	return stats, nil
}

// DeleteAllByUser 清空用户提醒（导入覆盖模式）
func (d *AlertDAOImpl) DeleteAllByUser(ctx context.Context, userID int64) error {
	return d.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&entity.Alert{}).Error
}

// --- 触发历史 ---

// AppendHistory 追加触发历史，超出maxItems按triggeredAt淘汰最旧的
func (d *AlertDAOImpl) AppendHistory(ctx context.Context, h *entity.AlertHistory, maxItems int) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(h).Error; err != nil {
			return err
		}
		if maxItems <= 0 {
			return nil
		}
		var count int64
		if err := tx.Model(&entity.AlertHistory{}).Where("user_id = ?", h.UserID).Count(&count).Error; err != nil {
			return err
		}
		if count <= int64(maxItems) {
			return nil
		}
		// 找出超额部分中最旧的ID批量删除
		var ids []int64
		err := tx.Model(&entity.AlertHistory{}).
			Where("user_id = ?", h.UserID).
			Order("triggered_at ASC").
			Limit(int(count) - maxItems).
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Where("id IN ?", ids).Delete(&entity.AlertHistory{}).Error
	})
}

// ListHistory 查询触发历史，按triggeredAt倒序
func (d *AlertDAOImpl) ListHistory(ctx context.Context, userID int64, req model.AlertHistoryListReq) ([]entity.AlertHistory, error) {
	q := d.db.WithContext(ctx).Where("user_id = ?", userID)
	if req.CoinID != "" {
		q = q.Where("coin_id = ?", req.CoinID)
	}
	if req.Type != "" {
		q = q.Where("alert_type = ?", req.Type)
	}
	if req.StartTime > 0 {
		q = q.Where("triggered_at >= ?", req.StartTime)
	}
	if req.EndTime > 0 {
		q = q.Where("triggered_at <= ?", req.EndTime)
	}
	if req.Limit > 0 {
		q = q.Limit(req.Limit)
	}
	if req.Offset > 0 {
		q = q.Offset(req.Offset)
	}
	var items []entity.AlertHistory
	if err := q.Order("triggered_at DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to get alert history for user %d: %w", userID, err)
	}
	return items, nil
}

// ClearHistory 清空用户触发历史
func (d *AlertDAOImpl) ClearHistory(ctx context.Context, userID int64) error {
	return d.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&entity.AlertHistory{}).Error
}
