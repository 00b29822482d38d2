package market

import (
	"context"
	"time"
)

// 行情数据源的统一抽象：不同来源（CoinGecko/OKX）字段各异，
// 全部映射到Snapshot这一个归一化结构，缺失字段用显式标记表达，
// 不允许用0充当缺失值参与比较。

// Snapshot 单个币种在某一时刻的行情快照
type Snapshot struct {
	CoinID    string  `json:"coin_id"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
	MarketCap float64 `json:"market_cap"`
	Change24h float64 `json:"change_24h"` // 24小时涨跌幅（%）

	// 字段可用性标记，数据源缺失某个字段时对应标记为false
	HasPrice     bool `json:"has_price"`
	HasVolume    bool `json:"has_volume"`
	HasMarketCap bool `json:"has_market_cap"`
	HasChange    bool `json:"has_change"`

	FetchedAt time.Time `json:"fetched_at"`
}

// Source 行情数据源接口
type Source interface {
	// GetCoinData 获取币种当前行情，上游失败返回NetworkErr（临时）或NotFoundErr
	GetCoinData(ctx context.Context, coinID string) (*Snapshot, error)
}

// Tick 数据源主动推送的行情事件，驱动提醒引擎的快速通道
type Tick struct {
	CoinID   string
	Snapshot *Snapshot
}
