package alert

import (
	"coinpulse/internal/alerting"
	"coinpulse/internal/consts"
	"coinpulse/internal/model"
	"coinpulse/internal/service"
	"coinpulse/pkg/errors"
	"coinpulse/pkg/errors/ecode"
	"coinpulse/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

type Handler struct {
	service   service.AlertService
	scheduler *alerting.Scheduler
}

func NewHandler(svc service.AlertService, scheduler *alerting.Scheduler) *Handler {
	return &Handler{service: svc, scheduler: scheduler}
}

// AlertCreate 创建提醒
func (h *Handler) AlertCreate() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req model.AlertCreateReq
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.JSON(ctx, errors.WithCode(ecode.ValidateErr, err.Error()), nil)
			return
		}
		userID := ctx.GetInt64(consts.UserID)
		res, err := h.service.AlertCreate(ctx, userID, req)
		response.JSON(ctx, err, res)
	}
}

// AlertUpdate 修改提醒，body里没给的字段不动
func (h *Handler) AlertUpdate() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req model.AlertUpdateReq
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.JSON(ctx, errors.WithCode(ecode.ValidateErr, err.Error()), nil)
			return
		}
		userID := ctx.GetInt64(consts.UserID)
		res, err := h.service.AlertUpdate(ctx, userID, ctx.Param("id"), req)
		response.JSON(ctx, err, res)
	}
}

// AlertDelete 删除提醒
func (h *Handler) AlertDelete() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.GetInt64(consts.UserID)
		ok, err := h.service.AlertDelete(ctx, userID, ctx.Param("id"))
		response.JSON(ctx, err, gin.H{"deleted": ok})
	}
}

// AlertGet 查询单条提醒
func (h *Handler) AlertGet() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.GetInt64(consts.UserID)
		res, err := h.service.AlertGet(ctx, userID, ctx.Param("id"))
		response.JSON(ctx, err, res)
	}
}

// AlertList 查询提醒列表，支持状态/币种/类型过滤和排序
func (h *Handler) AlertList() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req model.AlertListReq
		if err := ctx.ShouldBindQuery(&req); err != nil {
			response.JSON(ctx, errors.WithCode(ecode.ValidateErr, err.Error()), nil)
			return
		}
		userID := ctx.GetInt64(consts.UserID)
		res, err := h.service.AlertList(ctx, userID, req)
		response.JSON(ctx, err, res)
	}
}

// AlertStats 提醒聚合统计 + 调度器运行状态
func (h *Handler) AlertStats() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.GetInt64(consts.UserID)
		res, err := h.service.AlertStats(ctx, userID)
		if err != nil {
			response.JSON(ctx, err, nil)
			return
		}
		data := gin.H{
			"active":    res.Active,
			"triggered": res.Triggered,
			"pending":   res.Pending,
			"total":     res.Total,
		}
		if h.scheduler != nil {
			data["scheduler"] = h.scheduler.Stats()
		}
		response.JSON(ctx, nil, data)
	}
}

// AlertHistoryList 查询触发历史
func (h *Handler) AlertHistoryList() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		req := model.AlertHistoryListReq{
			CoinID:    ctx.Query("coin_id"),
			Type:      ctx.Query("type"),
			StartTime: cast.ToInt64(ctx.Query("start_time")),
			EndTime:   cast.ToInt64(ctx.Query("end_time")),
			Limit:     cast.ToInt(ctx.Query("limit")),
			Offset:    cast.ToInt(ctx.Query("offset")),
		}
		userID := ctx.GetInt64(consts.UserID)
		res, err := h.service.AlertHistoryList(ctx, userID, req)
		response.JSON(ctx, err, res)
	}
}

// AlertHistoryClear 清空触发历史
func (h *Handler) AlertHistoryClear() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.GetInt64(consts.UserID)
		err := h.service.AlertHistoryClear(ctx, userID)
		response.JSON(ctx, err, nil)
	}
}

// AlertExport 导出提醒快照
func (h *Handler) AlertExport() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.GetInt64(consts.UserID)
		res, err := h.service.AlertExport(ctx, userID)
		response.JSON(ctx, err, res)
	}
}

// AlertImport 导入提醒快照
func (h *Handler) AlertImport() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req model.AlertImportReq
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.JSON(ctx, errors.WithCode(ecode.ValidateErr, err.Error()), nil)
			return
		}
		userID := ctx.GetInt64(consts.UserID)
		res, err := h.service.AlertImport(ctx, userID, req)
		response.JSON(ctx, err, res)
	}
}
