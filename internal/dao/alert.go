package dao

import (
	"context"

	"coinpulse/internal/model"
	"coinpulse/internal/model/entity"
)

// AlertDAO 提醒数据访问对象接口
type AlertDAO interface {
	// 提醒定义管理 (供 AlertService 增删改查、Scheduler 拉取候选)

	// Create 创建新的提醒
	Create(ctx context.Context, alert *entity.Alert) error
	// Save 整体更新提醒（按主键）
	Save(ctx context.Context, alert *entity.Alert) error
	// UpdateFields 部分字段更新
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	// Delete 删除提醒，返回是否真的删掉了（false表示不存在）
	Delete(ctx context.Context, id string, userID int64) (bool, error)
	// GetByID 按ID查询，不存在返回nil
	GetByID(ctx context.Context, id string) (*entity.Alert, error)
	// List 查询用户提醒，支持状态/币种/类型过滤和排序
	List(ctx context.Context, userID int64, req model.AlertListReq) ([]entity.Alert, error)
	// ListEvaluable 查询所有参与评估的提醒（ACTIVE|PENDING，用于周期检查）
	ListEvaluable(ctx context.Context) ([]entity.Alert, error)
	// ListEvaluableByCoin 查询某币种参与评估的提醒（用于快速通道）
	ListEvaluableByCoin(ctx context.Context, coinID string) ([]entity.Alert, error)
	// ListAwaitingReactivation 查询已触发且带冷却回活的提醒（HOURLY|DAILY，用于重启后恢复定时器）
	ListAwaitingReactivation(ctx context.Context) ([]entity.Alert, error)
	// CountByUser 用户当前提醒数（配额检查）
	CountByUser(ctx context.Context, userID int64) (int64, error)
	// Stats 用户提醒聚合统计
	Stats(ctx context.Context, userID int64) (model.AlertStatsRes, error)
	// DeleteAllByUser 清空用户提醒（导入merge=false时使用）
	DeleteAllByUser(ctx context.Context, userID int64) error

	// 触发历史 (只追加，带环形淘汰)

	// AppendHistory 追加触发历史，超出maxItems按triggeredAt淘汰最旧的
	AppendHistory(ctx context.Context, h *entity.AlertHistory, maxItems int) error
	// ListHistory 查询触发历史，支持币种/类型/时间范围过滤
	ListHistory(ctx context.Context, userID int64, req model.AlertHistoryListReq) ([]entity.AlertHistory, error)
	// ClearHistory 清空用户触发历史
	ClearHistory(ctx context.Context, userID int64) error
}
