package notification

import (
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
	service service.NotificationService
}

func NewHandler(svc service.NotificationService) *Handler {
	return &Handler{service: svc}
}

// NotificationList 通知列表，附带未读数
func (h *Handler) NotificationList() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		req := model.NotificationListReq{
			Status: ctx.Query("status"),
			Type:   ctx.Query("type"),
			Limit:  cast.ToInt(ctx.Query("limit")),
			Offset: cast.ToInt(ctx.Query("offset")),
		}
		userID := ctx.GetInt64(consts.UserID)
		res, err := h.service.NotificationList(ctx, userID, req)
		response.JSON(ctx, err, res)
	}
}

// MarkRead 标记单条已读
func (h *Handler) MarkRead() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.GetInt64(consts.UserID)
		err := h.service.MarkRead(ctx, userID, ctx.Param("id"))
		h.respondWithUnread(ctx, userID, err)
	}
}

// MarkUnread 标记单条未读
func (h *Handler) MarkUnread() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.GetInt64(consts.UserID)
		err := h.service.MarkUnread(ctx, userID, ctx.Param("id"))
		h.respondWithUnread(ctx, userID, err)
	}
}

// MarkAllRead 全部标记已读
func (h *Handler) MarkAllRead() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.GetInt64(consts.UserID)
		err := h.service.MarkAllRead(ctx, userID)
		h.respondWithUnread(ctx, userID, err)
	}
}

// Dismiss 忽略通知
func (h *Handler) Dismiss() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.GetInt64(consts.UserID)
		err := h.service.Dismiss(ctx, userID, ctx.Param("id"))
		h.respondWithUnread(ctx, userID, err)
	}
}

// NotificationDelete 删除通知
func (h *Handler) NotificationDelete() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.GetInt64(consts.UserID)
		err := h.service.NotificationDelete(ctx, userID, ctx.Param("id"))
		h.respondWithUnread(ctx, userID, err)
	}
}

// 状态变更后把最新未读数带回去，客户端直接刷角标
func (h *Handler) respondWithUnread(ctx *gin.Context, userID int64, err error) {
	if err != nil {
		response.JSON(ctx, err, nil)
		return
	}
	unread, err := h.service.UnreadCount(ctx, userID)
	response.JSON(ctx, err, gin.H{"unread_count": unread})
}

// PreferencesGet 查询通知偏好
func (h *Handler) PreferencesGet() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.GetInt64(consts.UserID)
		res, err := h.service.PreferencesGet(ctx, userID)
		response.JSON(ctx, err, res)
	}
}

// PreferencesUpdate 更新通知偏好
func (h *Handler) PreferencesUpdate() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req model.PreferencesUpdateReq
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.JSON(ctx, errors.WithCode(ecode.ValidateErr, err.Error()), nil)
			return
		}
		userID := ctx.GetInt64(consts.UserID)
		res, err := h.service.PreferencesUpdate(ctx, userID, req)
		response.JSON(ctx, err, res)
	}
}
