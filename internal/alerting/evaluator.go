package alerting

import (
	"coinpulse/internal/market"
	"coinpulse/internal/model/entity"
	"coinpulse/pkg/logger"
)

// Evaluate 纯函数：判断提醒在给定行情快照下是否触发。
// 无副作用，同一提醒同一快照重复调用结果一致。
// 快照里不可用的字段直接跳过该条规则（返回不触发），
// 绝不把缺失值当0参与比较，否则缺价格时PRICE_BELOW会误触发。
func Evaluate(a *entity.Alert, s *market.Snapshot) bool {
	if a == nil || s == nil {
		return false
	}

	switch a.AlertType {
	case entity.AlertTypePriceAbove:
		if !s.HasPrice {
			logger.Debugf("alert %s: snapshot %s missing price, skip", a.ID, a.CoinID)
			return false
		}
		return s.Price >= a.TargetValue

	case entity.AlertTypePriceBelow:
		if !s.HasPrice {
			logger.Debugf("alert %s: snapshot %s missing price, skip", a.ID, a.CoinID)
			return false
		}
		return s.Price <= a.TargetValue

	case entity.AlertTypePercentChange:
		if !s.HasChange {
			logger.Debugf("alert %s: snapshot %s missing change24h, skip", a.ID, a.CoinID)
			return false
		}
		if a.Direction == entity.DirectionUp {
			return s.Change24h >= a.TargetValue
		}
		return s.Change24h <= -a.TargetValue

	case entity.AlertTypeVolumeSpike:
		if !s.HasVolume {
			logger.Debugf("alert %s: snapshot %s missing volume, skip", a.ID, a.CoinID)
			return false
		}
		// 基线未建立时不触发，由调度器先落基线
		if !a.AverageVolume.Valid || a.AverageVolume.Float64 <= 0 {
			return false
		}
		// targetValue是倍数，如3表示3倍于基线
		return s.Volume >= a.AverageVolume.Float64*a.TargetValue

	case entity.AlertTypeMarketCap:
		if !s.HasMarketCap {
			logger.Debugf("alert %s: snapshot %s missing market cap, skip", a.ID, a.CoinID)
			return false
		}
		if a.Direction == entity.DirectionAbove {
			return s.MarketCap >= a.TargetValue
		}
		return s.MarketCap <= a.TargetValue

	default:
		// 未知类型不触发，但要记下来，这通常意味着脏数据
		logger.Warnf("⚠️ alert %s: unknown alert type %s", a.ID, a.AlertType)
		return false
	}
}
