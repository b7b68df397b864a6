package marketdata

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"gold-signal-bot/internal/types"
)

const defaultMockBase = 100.0

// MockSource produces synthetic prices and candles when the upstream is
// unavailable. Each symbol has its own generator seeded from its name, so
// a fresh MockSource always replays the same sequence.
type MockSource struct {
	mu    sync.Mutex
	bases map[string]float64
	rngs  map[string]*rand.Rand
	now   func() time.Time
}

func NewMockSource(bases map[string]float64) *MockSource {
	b := make(map[string]float64, len(bases))
	for k, v := range bases {
		b[k] = v
	}
	return &MockSource{
		bases: b,
		rngs:  make(map[string]*rand.Rand),
		now:   time.Now,
	}
}

func (m *MockSource) rng(symbol string) *rand.Rand {
	r, ok := m.rngs[symbol]
	if !ok {
		h := fnv.New64a()
		h.Write([]byte(symbol))
		seed := h.Sum64()
		r = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		m.rngs[symbol] = r
	}
	return r
}

func (m *MockSource) base(symbol string) float64 {
	if b, ok := m.bases[symbol]; ok && b > 0 {
		return b
	}
	return defaultMockBase
}

// Price returns the base price jittered by up to ±0.05%.
func (m *MockSource) Price(symbol string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.price(symbol)
}

func (m *MockSource) price(symbol string) float64 {
	base := m.base(symbol)
	return base + (m.rng(symbol).Float64()-0.5)*base*0.001
}

// Candles walks count bars of width step ending at the current step
// boundary, oldest first. Each bar moves by up to ±0.1% of the price.
func (m *MockSource) Candles(symbol string, count int, step time.Duration) []types.Candle {
	if count <= 0 {
		return nil
	}
	if step <= 0 {
		step = time.Hour
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.rng(symbol)
	price := m.price(symbol)
	end := m.now().Truncate(step)
	out := make([]types.Candle, 0, count)

	for i := count - 1; i >= 0; i-- {
		change := (r.Float64() - 0.5) * price * 0.002
		open := price
		closePx := price + change
		high := math.Max(open, closePx) + r.Float64()*math.Abs(change)
		low := math.Min(open, closePx) - r.Float64()*math.Abs(change)
		vol := float64(r.IntN(10000))

		out = append(out, types.Candle{
			Ts:    end.Add(-time.Duration(i) * step).Unix(),
			Open:  open,
			High:  high,
			Low:   low,
			Close: closePx,
			Vol:   &vol,
		})
		price = closePx
	}
	return out
}
