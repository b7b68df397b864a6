package marketobs

import (
	"context"
	"time"

	"gold-signal-bot/internal/interfaces"
	"gold-signal-bot/internal/logger"
	"gold-signal-bot/internal/trace"
	"gold-signal-bot/internal/types"
)

// observableMarket wraps a MarketData with logging and tracing
type observableMarket struct {
	md interfaces.MarketData
}

var _ interfaces.MarketData = (*observableMarket)(nil)

func Wrap(md interfaces.MarketData) interfaces.MarketData {
	return &observableMarket{md: md}
}

func (om *observableMarket) Candles(ctx context.Context, symbol, interval string, count int) (types.Series, error) {
	ctx, span := trace.StartSpan(ctx, "marketdata.Candles")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching candles", "symbol", symbol, "interval", interval, "count", count)

	start := time.Now()
	s, err := om.md.Candles(ctx, symbol, interval, count)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Candle fetch aborted", err, "symbol", symbol)
		return s, err
	}

	logger.DebugSkip(ctx, 1, "Candles fetched",
		"symbol", symbol,
		"count", len(s.Candles),
		"source", s.Source,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return s, nil
}

func (om *observableMarket) CurrentPrice(ctx context.Context, symbol string) (types.Quote, error) {
	ctx, span := trace.StartSpan(ctx, "marketdata.CurrentPrice")
	defer span.End()

	q, err := om.md.CurrentPrice(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Price fetch aborted", err, "symbol", symbol)
		return q, err
	}

	logger.DebugSkip(ctx, 1, "Price fetched", "symbol", symbol, "price", q.Price, "source", q.Source)
	return q, nil
}

func (om *observableMarket) GetMarketData(ctx context.Context, symbol string) (types.MarketData, error) {
	ctx, span := trace.StartSpan(ctx, "marketdata.GetMarketData")
	defer span.End()

	start := time.Now()
	md, err := om.md.GetMarketData(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Market data aborted", err, "symbol", symbol)
		return md, err
	}

	logger.InfoSkip(ctx, 1, "Market data ready",
		"symbol", symbol,
		"candles", len(md.Candles),
		"price", md.CurrentPrice,
		"candle_source", md.CandleSource,
		"price_source", md.PriceSource,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return md, nil
}
