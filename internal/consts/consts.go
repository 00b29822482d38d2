package consts

import "time"

const (
	// RequestId 请求id名称
	RequestId   = "request_id"
	UserID      = "user_id"
	JWTTokenCtx = "token_ctx"

	// 行情快照缓存前缀
	MarketSnapshotPrefix = "Market_Snapshot:"
	// 设备token缓存前缀
	UserDeviceInfoPrefix = "User_Device_info:"

	// 默认redis过期时间
	RedisExrDefault = time.Hour * 24 * 5
)

const (
	LanguageId    = "T-Language-Id"
	PlatformType  = "T-Platform-Type"
	ClientId      = "T-App-Id"
	ClientVersion = "T-App-Version"
	DeviceId      = "T-D-Id"

	DateLayout   = "2006-01-02"
	TimeLayout   = "2006-01-02 15:04:05"
	TimeLayoutMs = "2006-01-02 15:04:05.000"
)

const (
	PlatformIOS     = "iOS"
	PlatformAndroid = "android"
	PlatformWeb     = "web"
)

// 通知渠道标识
const (
	ChannelInApp = "in_app"
	ChannelPush  = "push"
	ChannelEmail = "email"
	ChannelSms   = "sms"
)
