package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"gold-signal-bot/internal/eod"
	"gold-signal-bot/internal/eod/eodobs"
	"gold-signal-bot/internal/interfaces"
	"gold-signal-bot/internal/logger"
	"gold-signal-bot/internal/marketdata"
	"gold-signal-bot/internal/marketdata/marketobs"
	"gold-signal-bot/internal/metrics"
	"gold-signal-bot/internal/notify"
	"gold-signal-bot/internal/scheduler"
	"gold-signal-bot/internal/signalcache"
	"gold-signal-bot/internal/signals"
	"gold-signal-bot/internal/store"
	"gold-signal-bot/internal/tracker"
	"gold-signal-bot/internal/tracker/trackerobs"
	"gold-signal-bot/internal/tradelog"
)

// App is the fully wired signal engine shared by the bot and signalctl.
type App struct {
	Config    *store.Config
	Metrics   *metrics.Metrics
	Health    *metrics.Health
	Provider  *marketdata.Provider
	Market    interfaces.MarketData
	Cache     *signalcache.Cache
	Journal   *tradelog.Journal
	EOD       interfaces.EodSummarizer
	Generator interfaces.SignalGenerator
	Tracker   interfaces.Tracker
	Notifier  interfaces.Notifier
	Scheduler *scheduler.Scheduler
}

type Options struct {
	// Registerer receives the collectors. Nil means no registration.
	Registerer prometheus.Registerer
	// ForceDryRun sends every message to the log whatever the config says.
	ForceDryRun bool
}

func New(ctx context.Context, cfg *store.Config, opts Options) (*App, error) {
	m := metrics.New(opts.Registerer)

	provider := marketdata.NewFromConfig(cfg, m)
	if provider.MockMode() {
		logger.Warn(ctx, "TWELVE_DATA_API_KEY not set - running on deterministic mock prices")
	} else {
		logger.Info(ctx, "Using live market data", "base_url", cfg.MarketData.BaseURL, "rate_limit", cfg.MarketData.RateLimit)
	}
	market := marketobs.Wrap(provider)

	cache, err := signalcache.Open(ctx, signalcache.Options{
		Path:       cfg.Cache.Path,
		MaxHistory: cfg.Cache.MaxHistory,
		Debounce:   cfg.SaveDebounce(),
		Metrics:    m,
	})
	if err != nil {
		return nil, fmt.Errorf("open signal cache: %w", err)
	}

	journal := tradelog.New(cfg.Journal.Dir)
	if cfg.Journal.RetentionDays > 0 {
		if err := journal.CompressOlder(cfg.Journal.RetentionDays); err != nil {
			logger.Warn(ctx, "Failed to compress old journal files", "error", err)
		}
	}

	a := &App{
		Config:    cfg,
		Metrics:   m,
		Health:    metrics.NewHealth(provider.MockMode()),
		Provider:  provider,
		Market:    market,
		Cache:     cache,
		Journal:   journal,
		EOD:       eodobs.Wrap(eod.NewSummarizer(journal)),
		Generator: signals.New(cfg, market, m),
		Tracker:   trackerobs.Wrap(tracker.New(cfg, market, cache, journal, m)),
		Notifier:  newNotifier(ctx, cfg, opts.ForceDryRun),
	}
	a.Scheduler = scheduler.New(scheduler.Deps{
		Config:    cfg,
		Generator: a.Generator,
		Tracker:   a.Tracker,
		Store:     a.Cache,
		Notifier:  a.Notifier,
		Journal:   a.Journal,
		EOD:       a.EOD,
		Metrics:   a.Metrics,
		Health:    a.Health,
	})
	return a, nil
}

func newNotifier(ctx context.Context, cfg *store.Config, forceDryRun bool) interfaces.Notifier {
	if forceDryRun || cfg.Delivery.DryRun {
		logger.Warn(ctx, "Running in DRY_RUN mode - messages are logged, not sent")
		return notify.LogNotifier{}
	}
	return notify.NewTelegramNotifier(cfg.Delivery.BotToken, cfg.Delivery.ChannelID)
}

// Close writes any pending cache state.
func (a *App) Close(ctx context.Context) error {
	if err := a.Cache.Flush(); err != nil {
		logger.ErrorWithErr(ctx, "Failed to flush signal cache", err)
		return err
	}
	return nil
}
