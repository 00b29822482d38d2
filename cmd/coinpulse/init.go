package api

import (
	"context"

	"coinpulse/conf"
	"coinpulse/internal/alerting"
	"coinpulse/internal/dao/query"
	"coinpulse/internal/event"
	alerth "coinpulse/internal/handler/alert"
	deviceh "coinpulse/internal/handler/device"
	notifh "coinpulse/internal/handler/notification"
	"coinpulse/internal/market"
	"coinpulse/internal/notify"
	"coinpulse/internal/router"
	"coinpulse/internal/service"
	"coinpulse/pkg/cache"
	"coinpulse/pkg/logger"
	"coinpulse/pkg/mail"
	"coinpulse/pkg/push/apns"
	"coinpulse/utils/uuid"

	"gorm.io/gorm"
)

// InitRouter 组装提醒引擎和通知管线，返回API路由和停止函数
func InitRouter(db *gorm.DB) (Router, func()) {
	appCfg := conf.AppConfig

	ad := query.NewAlertDAO(db)
	nd := query.NewNotificationDAO(db)
	dd := query.NewDeviceDao(db)

	bus := event.NewBus()

	// 行情数据源，按配置选择，外面套一层redis快照缓存
	var src market.Source
	switch appCfg.Market.Provider {
	case "okx":
		src = market.NewOkxSource()
	default:
		src = market.NewCoinGeckoSource(appCfg.Market.CoinGeckoURL, appCfg.Market.FetchTimeout)
	}
	cachedSrc := market.NewCachedSource(src, cache.GetRedisClient(), appCfg.Market.CacheTTL)
	src = cachedSrc

	baseline := market.NewVolumeBaseline(appCfg.Alert.VolumeSMAWindow)

	// 通知渠道，站内信始终开启，其余按配置装配
	channels := []notify.Channel{notify.NewInAppChannel(bus)}
	if appCfg.Apple.Apns.AuthKeyFile != "" {
		channels = append(channels, notify.NewPushChannel(dd, apns.NewTokenApns()))
	}
	var emailCh *notify.EmailChannel
	if appCfg.Email.Host != "" {
		emailCh = notify.NewEmailChannel(mail.NewSender(appCfg.Email), appCfg.Notification.DigestInterval)
		channels = append(channels, emailCh)
	}
	if appCfg.Notification.SmsGatewayURL != "" {
		channels = append(channels, notify.NewSmsChannel(appCfg.Notification.SmsGatewayURL))
	}

	nr := notify.NewRouter(nd, bus, appCfg.Notification, channels...)

	scheduler := alerting.NewScheduler(
		ad, src, baseline, bus, nr,
		uuid.NewNode(1),
		appCfg.Alert,
		appCfg.Market.FetchTimeout,
	)

	ctx := context.Background()

	// 推送行情顶掉同币种的缓存快照
	tickCh, unsubTicks := bus.SubscribeTicks()
	go cachedSrc.ConsumeTicks(ctx, tickCh)

	nr.Start(ctx)
	if emailCh != nil {
		emailCh.Start(ctx)
	}
	scheduler.Start(ctx)

	// OKX源时开一条行情推送通道，价格变化即时驱动评估
	var feed *service.TickerFeed
	if appCfg.Market.Provider == "okx" {
		feed = service.NewTickerFeed(bus)
		if alerts, err := ad.ListEvaluable(ctx); err == nil {
			seen := make(map[string]struct{})
			var symbols []string
			for _, a := range alerts {
				if _, ok := seen[a.CoinID]; !ok {
					seen[a.CoinID] = struct{}{}
					symbols = append(symbols, a.CoinID)
				}
			}
			if err := feed.Start(symbols); err != nil {
				logger.Warnf("行情推送通道启动失败，退回周期检查: %v", err)
				feed = nil
			}
		}
	}

	// websocket 网关
	gateway := notifh.NewGateway(bus)

	as := service.NewAlertService(ad, appCfg.Alert)
	ns := service.NewNotificationService(nd)
	ds := service.NewDeviceService(dd)

	ah := alerth.NewHandler(as, scheduler)
	nh := notifh.NewHandler(ns)
	dh := deviceh.NewHandler(ds)

	apiRouter := router.NewApiRouter(ah, nh, dh, gateway)

	stop := func() {
		if feed != nil {
			_ = feed.Close()
		}
		scheduler.Stop()
		nr.Stop()
		if emailCh != nil {
			emailCh.Stop()
		}
		gateway.Shutdown()
		unsubTicks()
		bus.Close()
	}
	return apiRouter, stop
}
