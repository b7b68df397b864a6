package marketdata

import (
	"github.com/samber/lo"

	"gold-signal-bot/internal/metrics"
	"gold-signal-bot/internal/store"
)

// NewFromConfig builds a Provider with its own limiter from the loaded
// configuration.
func NewFromConfig(cfg *store.Config, m *metrics.Metrics) *Provider {
	bases := lo.SliceToMap(cfg.Instruments, func(in store.Instrument) (string, float64) {
		return in.Symbol, in.MockBasePrice
	})

	limiter := NewRateLimiter(cfg.MarketData.RateLimit, cfg.RateWindow())
	return NewProvider(Config{
		BaseURL:     cfg.MarketData.BaseURL,
		APIKey:      cfg.MarketData.APIKey,
		Interval:    cfg.MarketData.Interval,
		OutputSize:  cfg.MarketData.OutputSize,
		PriceTTL:    cfg.PriceTTL(),
		HTTPTimeout: cfg.HTTPTimeout(),
		MockBases:   bases,
	}, limiter, m)
}
