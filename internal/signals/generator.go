package signals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"gold-signal-bot/internal/interfaces"
	"gold-signal-bot/internal/logger"
	"gold-signal-bot/internal/metrics"
	"gold-signal-bot/internal/store"
	"gold-signal-bot/internal/ta"
	"gold-signal-bot/internal/types"
)

type Generator struct {
	cfg     *store.Config
	md      interfaces.MarketData
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

var _ interfaces.SignalGenerator = (*Generator)(nil)

func New(cfg *store.Config, md interfaces.MarketData, m *metrics.Metrics) *Generator {
	return &Generator{
		cfg:     cfg,
		md:      md,
		metrics: m,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Analyze scores candles and reports what a signal would be, without
// pricing levels.
func Analyze(symbol string, candles []types.Candle, minConfidence int) (types.Analysis, types.Direction, bool) {
	ind := ta.Analyze(candles)
	bull, bear, reasons := Score(ind)
	dir, confidence, ok := Decide(bull, bear, minConfidence)
	return types.Analysis{
		Symbol:     symbol,
		Indicators: ind,
		BullScore:  bull,
		BearScore:  bear,
		Confidence: confidence,
		Reasons:    reasons,
	}, dir, ok
}

// Generate returns a new ACTIVE signal for symbol, or nil when there is not
// enough edge. The analysis is returned in both cases.
func (g *Generator) Generate(ctx context.Context, symbol string) (*types.GeneratedSignal, types.Analysis, error) {
	md, err := g.md.GetMarketData(ctx, symbol)
	if err != nil {
		return nil, types.Analysis{}, err
	}

	analysis, dir, ok := Analyze(symbol, md.Candles, g.cfg.Signals.MinConfidence)
	analysis.Price = md.CurrentPrice
	analysis.CandleSource = md.CandleSource
	analysis.PriceSource = md.PriceSource

	if !ok {
		logger.Info(ctx, "No clear signal",
			"symbol", symbol,
			"confidence", analysis.Confidence,
			"bull", analysis.BullScore,
			"bear", analysis.BearScore,
		)
		g.metrics.SignalSkipped()
		return nil, analysis, nil
	}

	in := g.cfg.Instrument(symbol)
	lv, err := ComputeLevels(md.CurrentPrice, dir, in, g.cfg.Signals.RiskReward)
	if err != nil {
		return nil, analysis, err
	}

	created := g.now()
	sig := types.CachedSignal{
		ID:          g.newID(),
		Symbol:      symbol,
		Direction:   dir,
		EntryPrice:  lv.Entry,
		StopLoss:    lv.StopLoss,
		TakeProfit1: lv.TakeProfits[0],
		TakeProfit2: types.Float(lv.TakeProfits[1]),
		TakeProfit3: types.Float(lv.TakeProfits[2]),
		Confidence:  analysis.Confidence,
		CreatedAt:   created,
		ExpiresAt:   created.Add(g.cfg.Expiry()),
		Status:      types.StatusActive,
	}

	logger.Signal(ctx, sig.ID, symbol, string(dir), sig.EntryPrice, sig.Confidence,
		"stop_loss", sig.StopLoss,
		"tp1", sig.TakeProfit1,
		"reasons", analysis.Reasons,
		"candle_source", md.CandleSource,
	)
	g.metrics.SignalGenerated(string(dir))
	return &types.GeneratedSignal{Signal: sig, Analysis: analysis}, analysis, nil
}

// GenerateAll runs Generate for every configured instrument in order. A
// failure on one symbol is logged and skipped; only cancellation stops the
// loop.
func (g *Generator) GenerateAll(ctx context.Context) ([]types.GeneratedSignal, error) {
	var out []types.GeneratedSignal
	for _, symbol := range g.cfg.Symbols() {
		gen, _, err := g.Generate(ctx, symbol)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return out, err
			}
			logger.ErrorWithErr(ctx, "Signal generation failed", err, "symbol", symbol)
			continue
		}
		if gen != nil {
			out = append(out, *gen)
		}
	}
	return out, nil
}
