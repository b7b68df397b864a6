package tracker

import (
	"context"
	"math"
	"time"

	"gold-signal-bot/internal/interfaces"
	"gold-signal-bot/internal/logger"
	"gold-signal-bot/internal/metrics"
	"gold-signal-bot/internal/store"
	"gold-signal-bot/internal/tradelog"
	"gold-signal-bot/internal/types"
)

// Level labels carried on TrackResult.
const (
	LevelSL     = "SL"
	LevelTP1    = "TP1"
	LevelTP2    = "TP2"
	LevelTP3    = "TP3"
	LevelExpiry = "EXPIRY"
)

type Tracker struct {
	cfg     *store.Config
	prices  interfaces.PriceSource
	store   interfaces.SignalStore
	journal *tradelog.Journal
	metrics *metrics.Metrics
	now     func() time.Time
}

var _ interfaces.Tracker = (*Tracker)(nil)

func New(cfg *store.Config, prices interfaces.PriceSource, st interfaces.SignalStore, j *tradelog.Journal, m *metrics.Metrics) *Tracker {
	return &Tracker{cfg: cfg, prices: prices, store: st, journal: j, metrics: m, now: time.Now}
}

// CheckLevels applies the hit rules to one price. Stop-loss is tested
// first, then the take-profits from the farthest tier down, so a tick that
// touches several levels records the loss, or else the best tier reached.
// Comparisons are inclusive.
func CheckLevels(sig types.CachedSignal, price float64) (types.Status, string, bool) {
	// reached reports whether price is at or beyond level in the
	// favourable direction.
	reached := func(level float64) bool {
		if sig.Direction == types.Buy {
			return price >= level
		}
		return price <= level
	}
	stopped := price <= sig.StopLoss
	if sig.Direction == types.Sell {
		stopped = price >= sig.StopLoss
	}

	switch {
	case stopped:
		return types.StatusLossSL, LevelSL, true
	case sig.TakeProfit3 != nil && reached(*sig.TakeProfit3):
		return types.StatusWinTP3, LevelTP3, true
	case sig.TakeProfit2 != nil && reached(*sig.TakeProfit2):
		return types.StatusWinTP2, LevelTP2, true
	case reached(sig.TakeProfit1):
		return types.StatusWinTP1, LevelTP1, true
	}
	return "", "", false
}

// Pips is the move from entry in the signal's favour, in pips, to 1 dp.
func Pips(sig types.CachedSignal, price, pipSize float64) float64 {
	if pipSize <= 0 {
		pipSize = 1
	}
	diff := price - sig.EntryPrice
	if sig.Direction == types.Sell {
		diff = -diff
	}
	return math.Round(diff/pipSize*10) / 10
}

// CheckSignal closes sig if the current price has hit one of its levels.
// It returns nil when nothing was hit.
func (t *Tracker) CheckSignal(ctx context.Context, sig types.CachedSignal) (*types.TrackResult, error) {
	q, err := t.prices.CurrentPrice(ctx, sig.Symbol)
	if err != nil {
		return nil, err
	}

	status, level, hit := CheckLevels(sig, q.Price)
	if !hit {
		logger.Debug(ctx, "No level hit", "signal_id", sig.ID, "price", q.Price)
		return nil, nil
	}
	return t.close(ctx, sig, status, level, q.Price)
}

// CheckAll checks every ACTIVE signal in cache order. A failure on one
// signal is logged and does not stop the batch.
func (t *Tracker) CheckAll(ctx context.Context) []types.TrackResult {
	active := t.store.GetActive()
	if len(active) == 0 {
		logger.Debug(ctx, "No active signals to check")
		return nil
	}

	var results []types.TrackResult
	for _, sig := range active {
		if ctx.Err() != nil {
			break
		}
		res, err := t.CheckSignal(ctx, sig)
		if err != nil {
			logger.ErrorWithErr(ctx, "Signal check failed", err, "signal_id", sig.ID, "symbol", sig.Symbol)
			continue
		}
		if res != nil {
			results = append(results, *res)
		}
	}
	return results
}

// ReviewExpired marks ACTIVE signals past their expiry as EXPIRED, with
// pips marked to the current price.
func (t *Tracker) ReviewExpired(ctx context.Context) []types.TrackResult {
	expired := t.store.GetExpired()
	if len(expired) == 0 {
		logger.Debug(ctx, "No expired signals to review")
		return nil
	}

	var results []types.TrackResult
	for _, sig := range expired {
		if ctx.Err() != nil {
			break
		}
		q, err := t.prices.CurrentPrice(ctx, sig.Symbol)
		if err != nil {
			logger.ErrorWithErr(ctx, "Expiry review failed", err, "signal_id", sig.ID, "symbol", sig.Symbol)
			continue
		}
		res, err := t.close(ctx, sig, types.StatusExpired, LevelExpiry, q.Price)
		if err != nil {
			logger.ErrorWithErr(ctx, "Expiry review failed", err, "signal_id", sig.ID)
			continue
		}
		if res != nil {
			results = append(results, *res)
		}
	}
	return results
}

func (t *Tracker) close(ctx context.Context, sig types.CachedSignal, status types.Status, level string, price float64) (*types.TrackResult, error) {
	pips := Pips(sig, price, t.cfg.Instrument(sig.Symbol).PipSize)
	closedAt := t.now()

	if !t.store.Update(sig.ID, types.SignalUpdate{
		Status:      types.StatusPtr(status),
		ClosedAt:    &closedAt,
		ClosedPrice: types.Float(price),
		PnLPips:     types.Float(pips),
	}) {
		logger.Warn(ctx, "Signal already closed, skipping", "signal_id", sig.ID)
		return nil, nil
	}

	closed, ok := t.store.Get(sig.ID)
	if !ok {
		closed = sig
	}
	res := &types.TrackResult{
		Signal:   closed,
		Previous: sig.Status,
		Status:   status,
		Price:    price,
		Pips:     pips,
		Level:    level,
		Held:     closedAt.Sub(sig.CreatedAt),
	}

	logger.Outcome(ctx, sig.ID, sig.Symbol, string(status), price, pips, "level", level)
	t.metrics.Outcome(string(status))
	if err := t.journal.Closed(*res); err != nil {
		logger.ErrorWithErr(ctx, "Failed to journal closed signal", err, "signal_id", sig.ID)
	}
	return res, nil
}
