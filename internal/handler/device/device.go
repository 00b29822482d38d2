package device

import (
	"coinpulse/internal/consts"
	"coinpulse/internal/model"
	"coinpulse/internal/service"
	"coinpulse/pkg/errors"
	"coinpulse/pkg/errors/ecode"
	"coinpulse/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	ds service.DeviceService
}

func NewHandler(ds service.DeviceService) *Handler {
	return &Handler{ds: ds}
}

// DeviceTokenReport 客户端每次启动时上报 device_token，与 UUID 配对更新
func (h *Handler) DeviceTokenReport() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req model.DeviceTokenReportReq
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.JSON(ctx, errors.WithCode(ecode.ValidateErr, err.Error()), nil)
			return
		}

		if req.Platform != consts.PlatformIOS &&
			req.Platform != consts.PlatformAndroid {
			response.JSON(ctx, errors.WithCode(ecode.ValidateErr, "Platform 不正确"), nil)
			return
		}

		userID := ctx.GetInt64(consts.UserID)
		if err := h.ds.UserDeviceTokenUpdate(ctx, userID, req); err != nil {
			response.JSON(ctx, errors.WithCode(ecode.Unknown, err.Error()), nil)
			return
		}
		response.JSON(ctx, nil, nil)
	}
}

// DeviceTokenList 当前用户的全部设备token
func (h *Handler) DeviceTokenList() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.GetInt64(consts.UserID)
		tokens, err := h.ds.UserGetDeviceTokenList(ctx, userID)
		if err != nil {
			response.JSON(ctx, errors.WithCode(ecode.NotFoundErr, err.Error()), nil)
			return
		}
		response.JSON(ctx, nil, tokens)
	}
}

// DeviceTokenRemove 注销某个设备（登出时调用，停止对它的推送）
func (h *Handler) DeviceTokenRemove() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		deviceUUID := ctx.Param("uuid")
		if deviceUUID == "" {
			response.JSON(ctx, errors.WithCode(ecode.ValidateErr, "缺少 device uuid"), nil)
			return
		}
		userID := ctx.GetInt64(consts.UserID)
		err := h.ds.UserDeviceTokenRemove(ctx, userID, deviceUUID)
		response.JSON(ctx, err, nil)
	}
}
