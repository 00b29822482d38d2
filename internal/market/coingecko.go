package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"coinpulse/pkg/errors"
	"coinpulse/pkg/errors/ecode"
	"coinpulse/pkg/logger"
)

// CoinGecko的simple price接口，不需要apikey

type CoinGeckoSource struct {
	httpClient *http.Client
	baseURL    string
}

func NewCoinGeckoSource(baseURL string, timeout time.Duration) *CoinGeckoSource {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	return &CoinGeckoSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

const maxRetries = 3

// coinGeckoRow simple/price接口单个币种的原始返回
// 字段用指针区分"缺失"和"0"
type coinGeckoRow struct {
	Usd          *float64 `json:"usd"`
	UsdMarketCap *float64 `json:"usd_market_cap"`
	Usd24hVol    *float64 `json:"usd_24h_vol"`
	Usd24hChange *float64 `json:"usd_24h_change"`
}

// GetCoinData 获取币种行情，带重试和指数退避
func (c *CoinGeckoSource) GetCoinData(ctx context.Context, coinID string) (*Snapshot, error) {
	reqURL := fmt.Sprintf(
		"%s/simple/price?ids=%s&vs_currencies=usd&include_market_cap=true&include_24hr_vol=true&include_24hr_change=true",
		c.baseURL, coinID,
	)

	backoffTime := 2 * time.Second
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), ecode.NetworkErr, "market fetch cancelled")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, errors.Wrap(err, ecode.Unknown, "build coingecko request failed")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// 网络错误，重试
			lastErr = errors.Wrap(err, ecode.NetworkErr, "coingecko request failed")
			goto Retry
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if err != nil {
				return nil, errors.Wrap(err, ecode.NetworkErr, "read coingecko response failed")
			}
			return c.parse(coinID, body)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			// 限流或服务端错误，退避后重试
			_ = resp.Body.Close()
			lastErr = errors.WithCodef(ecode.NetworkErr, "coingecko status %d", resp.StatusCode)
			goto Retry
		default:
			_ = resp.Body.Close()
			return nil, errors.WithCodef(ecode.NetworkErr, "coingecko status %d", resp.StatusCode)
		}

	Retry:
		logger.Warnf("CoinGecko 获取 %s 行情失败（第%d次）: %v，%v后重试", coinID, attempt+1, lastErr, backoffTime)
		if attempt == maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), ecode.NetworkErr, "market fetch cancelled")
		case <-time.After(backoffTime):
		}
		backoffTime *= 2
	}
	return nil, lastErr
}

func (c *CoinGeckoSource) parse(coinID string, body []byte) (*Snapshot, error) {
	var payload map[string]coinGeckoRow
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.Wrap(err, ecode.Unknown, "decode coingecko response failed")
	}

	row, ok := payload[coinID]
	if !ok {
		// 返回体里没有该币种，视为不存在
		return nil, errors.WithCodef(ecode.NotFoundErr, "coin %s not found", coinID)
	}

	snap := &Snapshot{
		CoinID:    coinID,
		FetchedAt: time.Now(),
	}
	if row.Usd != nil {
		snap.Price = *row.Usd
		snap.HasPrice = true
	}
	if row.Usd24hVol != nil {
		snap.Volume = *row.Usd24hVol
		snap.HasVolume = true
	}
	if row.UsdMarketCap != nil {
		snap.MarketCap = *row.UsdMarketCap
		snap.HasMarketCap = true
	}
	if row.Usd24hChange != nil {
		snap.Change24h = *row.Usd24hChange
		snap.HasChange = true
	}
	return snap, nil
}
