package market

import (
	"context"
	"time"

	"coinpulse/internal/consts"
	"coinpulse/pkg/logger"
	"github.com/go-redis/redis/v8"
	json "github.com/goccy/go-json"
)

// CachedSource 给任意Source加一层redis快照缓存。
// 上游本身有限流，缓存期内的重复请求直接走redis，容忍约一个TTL的陈旧度。

type CachedSource struct {
	inner Source
	rdb   *redis.Client
	ttl   time.Duration
}

func NewCachedSource(inner Source, rdb *redis.Client, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedSource{inner: inner, rdb: rdb, ttl: ttl}
}

func (c *CachedSource) cacheKey(coinID string) string {
	return consts.MarketSnapshotPrefix + coinID
}

func (c *CachedSource) GetCoinData(ctx context.Context, coinID string) (*Snapshot, error) {
	key := c.cacheKey(coinID)

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err == nil {
			return &snap, nil
		}
		// 缓存内容损坏，当作miss处理
		logger.Warnf("行情缓存解析失败 coin=%s，回源", coinID)
	} else if err != redis.Nil {
		// redis故障不阻断获取数据，直接回源
		logger.Warnf("行情缓存读取失败 coin=%s: %v", coinID, err)
	}

	snap, err := c.inner.GetCoinData(ctx, coinID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(snap); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			logger.Warnf("行情缓存写入失败 coin=%s: %v", coinID, err)
		}
	}
	return snap, nil
}

// Invalidate 清除某币种的缓存快照，下一次读回源拿新数据
func (c *CachedSource) Invalidate(ctx context.Context, coinID string) {
	if err := c.rdb.Del(ctx, c.cacheKey(coinID)).Err(); err != nil {
		logger.Warnf("行情缓存清除失败 coin=%s: %v", coinID, err)
	}
}

// ConsumeTicks 消费推送行情：推来新快照就把该币种的缓存顶掉，
// 周期路径不会再吃到比推送还旧的数据。通道关闭或ctx取消时退出
func (c *CachedSource) ConsumeTicks(ctx context.Context, ticks <-chan Tick) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-ticks:
			if !ok {
				return
			}
			c.Invalidate(ctx, t.CoinID)
		}
	}
}
