package router

import (
	"coinpulse/internal/handler/alert"
	"coinpulse/internal/handler/device"
	"coinpulse/internal/handler/notification"
	"coinpulse/internal/handler/ping"
	"coinpulse/internal/middleware"

	"github.com/gin-gonic/gin"
)

type ApiRouter struct {
	alertHandler  *alert.Handler
	notifHandler  *notification.Handler
	deviceHandler *device.Handler
	gateway       *notification.Gateway
}

func NewApiRouter(ah *alert.Handler, nh *notification.Handler, dh *device.Handler, gw *notification.Gateway) *ApiRouter {
	return &ApiRouter{alertHandler: ah, notifHandler: nh, deviceHandler: dh, gateway: gw}
}

func (api *ApiRouter) Load(g *gin.Engine) {

	g.GET("/ping", ping.Ping())

	base := g.Group("/api/v1")

	a := base.Group("/alerts", middleware.AuthToken())
	{
		a.POST("", middleware.AntiDuplicateMiddleware(), api.alertHandler.AlertCreate())
		a.GET("", api.alertHandler.AlertList())
		a.GET("/stats", api.alertHandler.AlertStats())
		a.GET("/export", api.alertHandler.AlertExport())
		a.POST("/import", api.alertHandler.AlertImport())
		a.GET("/:id", api.alertHandler.AlertGet())
		a.PUT("/:id", api.alertHandler.AlertUpdate())
		a.DELETE("/:id", api.alertHandler.AlertDelete())
		a.GET("/:id/history", api.alertHandler.AlertHistoryList())
		a.DELETE("/:id/history", api.alertHandler.AlertHistoryClear())
	}

	n := base.Group("/notifications", middleware.AuthToken())
	{
		n.GET("", api.notifHandler.NotificationList())
		n.POST("/readall", api.notifHandler.MarkAllRead())
		n.GET("/preferences", api.notifHandler.PreferencesGet())
		n.PUT("/preferences", api.notifHandler.PreferencesUpdate())
		n.POST("/:id/read", api.notifHandler.MarkRead())
		n.POST("/:id/unread", api.notifHandler.MarkUnread())
		n.POST("/:id/dismiss", api.notifHandler.Dismiss())
		n.DELETE("/:id", api.notifHandler.NotificationDelete())
		// websocket实时推送
		n.GET("/ws", api.gateway.ServeWS)
	}

	d := base.Group("/device", middleware.AuthToken())
	{
		d.POST("/report/devicetoken", api.deviceHandler.DeviceTokenReport())
		d.GET("/devicetoken/list", api.deviceHandler.DeviceTokenList())
		d.DELETE("/devicetoken/:uuid", api.deviceHandler.DeviceTokenRemove())
	}
}
