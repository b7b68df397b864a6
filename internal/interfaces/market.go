package interfaces

import (
	"context"

	"gold-signal-bot/internal/types"
)

// MarketData never fails on upstream trouble; the only error is the
// caller's context ending while waiting for a rate-limit slot.
type MarketData interface {
	Candles(ctx context.Context, symbol, interval string, count int) (types.Series, error)
	CurrentPrice(ctx context.Context, symbol string) (types.Quote, error)
	GetMarketData(ctx context.Context, symbol string) (types.MarketData, error)
}

// PriceSource is the slice of MarketData the tracker needs.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (types.Quote, error)
}
