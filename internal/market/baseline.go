package market

import (
	"sync"

	talib "github.com/markcheno/go-talib"
)

// VolumeBaseline 维护每个币种最近N次观测的成交量，
// 用SMA平滑后作为VOLUME_SPIKE的基线，避免单点毛刺把基线带偏。

type VolumeBaseline struct {
	mu     sync.Mutex
	window int
	// coinID -> 最近的成交量观测（最多window个）
	samples map[string][]float64
}

func NewVolumeBaseline(window int) *VolumeBaseline {
	if window < 2 {
		window = 20
	}
	return &VolumeBaseline{
		window:  window,
		samples: make(map[string][]float64),
	}
}

// Observe 记录一次成交量观测
func (b *VolumeBaseline) Observe(coinID string, volume float64) {
	if volume <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	s := append(b.samples[coinID], volume)
	if len(s) > b.window {
		s = s[len(s)-b.window:]
	}
	b.samples[coinID] = s
}

// Average 返回当前基线（观测值的SMA）。观测不足时返回已有观测的均值，
// 没有任何观测返回0，调用方把0当作"基线未建立"。
func (b *VolumeBaseline) Average(coinID string) float64 {
	b.mu.Lock()
	s := append([]float64(nil), b.samples[coinID]...)
	b.mu.Unlock()

	if len(s) == 0 {
		return 0
	}
	if len(s) == 1 {
		return s[0]
	}

	period := b.window
	if len(s) < period {
		period = len(s)
	}
	// talib的Sma输出与输入等长，最后一个元素就是最近period个观测的均值
	out := talib.Sma(s, period)
	return out[len(out)-1]
}
