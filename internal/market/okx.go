package market

import (
	"context"
	"strings"
	"time"

	"coinpulse/pkg/errors"
	"coinpulse/pkg/errors/ecode"
	goexv2 "github.com/nntaoli-project/goex/v2"
	"github.com/nntaoli-project/goex/v2/model"
)

// OKX现货行情数据源，走goex的公共接口，不需要apikey。
// OKX不提供市值，对应字段标记为不可用，由评估器决定跳过。

type OkxSource struct {
	pub goexv2.IPubRest
}

func NewOkxSource() *OkxSource {
	return &OkxSource{pub: goexv2.OKx.Spot}
}

// symbol 格式转换: "BTC/USDT" 或 "BTC-USDT" -> goex 需要的 CurrencyPair
func (s *OkxSource) toCurrencyPair(symbol string) (model.CurrencyPair, error) {
	parts := strings.Split(symbol, "/")
	if len(parts) == 1 {
		parts = strings.Split(symbol, "-")
	}
	if len(parts) < 2 {
		// 裸symbol默认对USDT
		parts = []string{parts[0], "USDT"}
	}
	return s.pub.NewCurrencyPair(parts[0], parts[1])
}

// GetCoinData coinID在OKX源下就是交易对symbol（如BTC-USDT）
func (s *OkxSource) GetCoinData(ctx context.Context, coinID string) (*Snapshot, error) {
	pair, err := s.toCurrencyPair(coinID)
	if err != nil {
		return nil, errors.Wrap(err, ecode.NotFoundErr, "invalid symbol "+coinID)
	}

	ticker, _, err := s.pub.GetTicker(pair)
	if err != nil {
		return nil, errors.Wrap(err, ecode.NetworkErr, "okx get ticker failed")
	}
	if ticker == nil {
		return nil, errors.WithCode(ecode.NetworkErr, "okx ticker empty")
	}

	return &Snapshot{
		CoinID:    coinID,
		Symbol:    strings.Split(coinID, "-")[0],
		Price:     ticker.Last,
		Volume:    ticker.Vol,
		Change24h: ticker.Percent,
		HasPrice:  true,
		HasVolume: true,
		HasChange: true,
		// OKX没有市值数据
		HasMarketCap: false,
		FetchedAt:    time.Now(),
	}, nil
}
