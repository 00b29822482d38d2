package model

// AlertCreateReq 创建提醒的请求体
type AlertCreateReq struct {
	CoinID      string   `json:"coin_id" binding:"required"`
	CoinSymbol  string   `json:"coin_symbol" binding:"required"`
	AlertType   string   `json:"alert_type" binding:"required"` // PRICE_ABOVE等
	TargetValue float64  `json:"target_value"`
	Direction   string   `json:"direction,omitempty"`      // PERCENT_CHANGE/MARKET_CAP必填
	Repeat      string   `json:"repeat,omitempty"`         // 默认ONCE
	Channels    []string `json:"channels,omitempty"`       // 默认in_app
	AverageVolume float64 `json:"average_volume,omitempty"` // VOLUME_SPIKE基线，可省略
	Deferred    bool     `json:"deferred,omitempty"`       // true则初始为PENDING
	ExpiresAt   int64    `json:"expires_at,omitempty"`     // 过期时间戳（秒），0表示不过期
}

// AlertUpdateReq 修改提醒的请求体，指针字段为空表示不更新
type AlertUpdateReq struct {
	TargetValue *float64  `json:"target_value,omitempty"`
	Direction   *string   `json:"direction,omitempty"`
	Repeat      *string   `json:"repeat,omitempty"`
	Channels    *[]string `json:"channels,omitempty"`
	Enabled     *bool     `json:"enabled,omitempty"` // false转DISABLED，true转ACTIVE
}

// AlertListReq 查询提醒列表，支持过滤和排序
type AlertListReq struct {
	Status string `form:"status"`
	CoinID string `form:"coin_id"`
	Type   string `form:"type"`
	SortBy string `form:"sort_by"` // created/updated/coin/value
	Order  string `form:"order"`   // asc/desc
}

// AlertHistoryListReq 查询触发历史
type AlertHistoryListReq struct {
	CoinID    string `form:"coin_id"`
	Type      string `form:"type"`
	StartTime int64  `form:"start_time"` // 毫秒时间戳，0不限
	EndTime   int64  `form:"end_time"`
	Limit     int    `form:"limit"`
	Offset    int    `form:"offset"`
}

// AlertRes 提醒的响应结构
type AlertRes struct {
	ID            string   `json:"id"`
	CoinID        string   `json:"coin_id"`
	CoinSymbol    string   `json:"coin_symbol"`
	AlertType     string   `json:"alert_type"`
	TargetValue   float64  `json:"target_value"`
	Direction     string   `json:"direction,omitempty"`
	AverageVolume float64  `json:"average_volume,omitempty"`
	Status        string   `json:"status"`
	Repeat        string   `json:"repeat"`
	Channels      []string `json:"channels"`
	TriggeredAt   int64    `json:"triggered_at,omitempty"` // 毫秒时间戳
	TriggeredData *AlertTriggeredData `json:"triggered_data,omitempty"`
	CreatedAt     int64    `json:"created_at"`
	UpdatedAt     int64    `json:"updated_at"`
}

type AlertTriggeredData struct {
	Price            float64 `json:"price"`
	Volume           float64 `json:"volume"`
	MarketCap        float64 `json:"market_cap"`
	ChangePercentage float64 `json:"change_percentage"`
}

// AlertHistoryRes 触发历史的响应结构
type AlertHistoryRes struct {
	ID          string  `json:"id"`
	AlertID     string  `json:"alert_id"`
	CoinID      string  `json:"coin_id"`
	CoinSymbol  string  `json:"coin_symbol"`
	AlertType   string  `json:"alert_type"`
	TargetValue float64 `json:"target_value"`
	Direction   string  `json:"direction,omitempty"`
	TriggeredAt int64   `json:"triggered_at"`
	Price       float64 `json:"price"`
	Volume      float64 `json:"volume"`
	MarketCap   float64 `json:"market_cap"`
}

// AlertStatsRes 提醒聚合统计
type AlertStatsRes struct {
	Active    int `json:"active"`
	Triggered int `json:"triggered"`
	Pending   int `json:"pending"`
	Total     int `json:"total"`
}

// AlertExportSnapshot 导出快照，可直接再导入
type AlertExportSnapshot struct {
	Version    string     `json:"version"`
	ExportDate int64      `json:"export_date"` // 毫秒时间戳
	Alerts     []AlertRes `json:"alerts"`
}

// AlertImportReq 导入请求
type AlertImportReq struct {
	Snapshot AlertExportSnapshot `json:"snapshot" binding:"required"`
	Merge    bool                `json:"merge"` // false时先清空再导入
}

// AlertImportRes 导入结果，非法条目收集后整体返回
type AlertImportRes struct {
	Imported      int      `json:"imported"`
	Invalid       int      `json:"invalid"`
	InvalidAlerts []string `json:"invalid_alerts,omitempty"` // 非法条目的id或原因
}
