package conf

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// 配置加载（数据源、推送渠道等）

type Db struct {
	DbName   string `yaml:"dbname"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	FileName   string `yaml:"file-name"`
	TimeFormat string `yaml:"time-format"`
	MaxSize    int    `yaml:"max-size"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAge     int    `yaml:"max-age"`
	Compress   bool   `yaml:"compress"`
	LocalTime  bool   `yaml:"local-time"`
	Console    bool   `yaml:"console"`
}

// RedisConfig is used to configure redis
type RedisConfig struct {
	Addr         string `yaml:"address"`
	Password     string `yaml:"password"`
	Db           int    `yaml:"db"`
	PoolSize     int    `yaml:"pool-size"`
	MinIdleConns int    `yaml:"min-idle-conns"`
	IdleTimeout  int    `yaml:"idle-timeout"`
}

type JwtConfig struct {
	Secret                  string `yaml:"secret"`
	JwtTtl                  int64  `yaml:"ttl"`              // token 有效期（秒）
	JwtBlacklistGracePeriod int64  `yaml:"blacklistperiod" ` // 黑名单宽限时间（秒）
}

type EmailConfig struct {
	Host     string `yaml:"smtp_host"`
	Port     int    `yaml:"smtp_port"`
	Username string `yaml:"smtp_user"`
	Password string `yaml:"smtp_password"`
	Sender   string `yaml:"smtp_sender"`
	PreCheck bool   `yaml:"precheck"` // 开启后启用邮箱通道前先做 SMTP 校验
}

type AppleConfig struct {
	Apns Apns `yaml:"apns"`
}

type Apns struct {
	Topic          string `yaml:"topic"`
	KeyID          string `yaml:"key_id"`
	TeamID         string `yaml:"team_id"`
	AuthKeyFile    string `yaml:"auth_key_file"` // p8 私钥文件路径
	PayloadMaximum int    `yaml:"payload_maximum"`
	IsProd         bool   `yaml:"is_prod"`
}

// MarketConfig 行情数据源配置
type MarketConfig struct {
	Provider     string        `yaml:"provider"`      // coingecko 或 okx
	CoinGeckoURL string        `yaml:"coingecko_url"` // CoinGecko API 根地址
	FetchTimeout time.Duration `yaml:"fetch-timeout"` // 单次行情请求超时，默认 30s
	CacheTTL     time.Duration `yaml:"cache-ttl"`     // 快照缓存有效期，默认 5m
}

// AlertConfig 提醒引擎配置
type AlertConfig struct {
	CheckInterval    time.Duration `yaml:"check-interval"`      // 周期检查间隔，默认 60s
	MaxAlertsPerUser int           `yaml:"max-alerts-per-user"` // 单用户提醒上限
	MaxHistoryItems  int           `yaml:"max-history-items"`   // 触发历史保留条数（环形淘汰）
	VolumeSMAWindow  int           `yaml:"volume-sma-window"`   // 成交量基线 SMA 窗口
}

// NotificationConfig 通知路由配置
type NotificationConfig struct {
	RateLimitWindow    time.Duration `yaml:"rate-limit-window"`    // 限流滑动窗口，默认 60s
	MaxPerWindow       int           `yaml:"max-per-window"`       // 窗口内最大下发数，默认 5
	GroupSimilarWindow time.Duration `yaml:"group-similar-window"` // 相似通知合并窗口，默认 5m
	DigestInterval     time.Duration `yaml:"digest-interval"`      // 邮件摘要发送间隔
	SmsGatewayURL      string        `yaml:"sms_gateway_url"`      // 外部短信网关地址
}

type Config struct {
	AppName      string `yaml:"app_name"`
	Listen       string `yaml:"listen"`
	Mode         string `yaml:"mode"`
	Language     string `yaml:"language"`
	MaxPingCount int    `yaml:"max-ping-count"`

	Db           `yaml:"database"`
	Log          LogConfig          `yaml:"log"`
	Jwt          JwtConfig          `yaml:"jwt"`
	Redis        RedisConfig        `yaml:"redis"`
	Email        EmailConfig        `yaml:"email"`
	Apple        AppleConfig        `yaml:"apple"`
	Market       MarketConfig       `yaml:"market"`
	Alert        AlertConfig        `yaml:"alert"`
	Notification NotificationConfig `yaml:"notification"`
}

var AppConfig Config

func LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("Read config file error %w", err)
	}
	if err := yaml.Unmarshal(data, &AppConfig); err != nil {
		return fmt.Errorf("Unmarshal config yaml error: %w", err)
	}
	AppConfig.FillDefaults()
	return nil
}

// FillDefaults 未配置项使用默认值，保证提醒引擎与通知路由能直接工作
func (c *Config) FillDefaults() {
	if c.Market.FetchTimeout <= 0 {
		c.Market.FetchTimeout = 30 * time.Second
	}
	if c.Market.CacheTTL <= 0 {
		c.Market.CacheTTL = 5 * time.Minute
	}
	if c.Market.CoinGeckoURL == "" {
		c.Market.CoinGeckoURL = "https://api.coingecko.com/api/v3"
	}
	if c.Alert.CheckInterval <= 0 {
		c.Alert.CheckInterval = time.Minute
	}
	if c.Alert.MaxAlertsPerUser <= 0 {
		c.Alert.MaxAlertsPerUser = 50
	}
	if c.Alert.MaxHistoryItems <= 0 {
		c.Alert.MaxHistoryItems = 100
	}
	if c.Alert.VolumeSMAWindow <= 0 {
		c.Alert.VolumeSMAWindow = 20
	}
	if c.Notification.RateLimitWindow <= 0 {
		c.Notification.RateLimitWindow = time.Minute
	}
	if c.Notification.MaxPerWindow <= 0 {
		c.Notification.MaxPerWindow = 5
	}
	if c.Notification.GroupSimilarWindow <= 0 {
		c.Notification.GroupSimilarWindow = 5 * time.Minute
	}
	if c.Notification.DigestInterval <= 0 {
		c.Notification.DigestInterval = time.Hour
	}
}
