package trackerobs

import (
	"context"
	"time"

	"gold-signal-bot/internal/interfaces"
	"gold-signal-bot/internal/logger"
	"gold-signal-bot/internal/trace"
	"gold-signal-bot/internal/types"
)

type observableTracker struct {
	tracker interfaces.Tracker
}

var _ interfaces.Tracker = (*observableTracker)(nil)

func Wrap(t interfaces.Tracker) interfaces.Tracker {
	return &observableTracker{tracker: t}
}

func (ot *observableTracker) CheckSignal(ctx context.Context, sig types.CachedSignal) (*types.TrackResult, error) {
	ctx, span := trace.StartSpan(ctx, "tracker.CheckSignal")
	defer span.End()

	res, err := ot.tracker.CheckSignal(ctx, sig)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Signal check failed", err, "signal_id", sig.ID)
		return nil, err
	}
	if res != nil {
		logger.InfoSkip(ctx, 1, "Signal closed", "signal_id", sig.ID, "status", res.Status, "pips", res.Pips)
	}
	return res, nil
}

func (ot *observableTracker) CheckAll(ctx context.Context) []types.TrackResult {
	ctx, span := trace.StartSpan(ctx, "tracker.CheckAll")
	defer span.End()

	start := time.Now()
	results := ot.tracker.CheckAll(ctx)

	logger.InfoSkip(ctx, 1, "Tracker pass completed",
		"closed", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return results
}

func (ot *observableTracker) ReviewExpired(ctx context.Context) []types.TrackResult {
	ctx, span := trace.StartSpan(ctx, "tracker.ReviewExpired")
	defer span.End()

	start := time.Now()
	results := ot.tracker.ReviewExpired(ctx)

	logger.InfoSkip(ctx, 1, "Expiry review completed",
		"expired", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return results
}
