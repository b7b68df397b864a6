package main

import (
	"context"
	"fmt"
	"os"

	"gold-signal-bot/internal/app"
	"gold-signal-bot/internal/logger"
	"gold-signal-bot/internal/metrics"
	"gold-signal-bot/internal/store"
	"gold-signal-bot/internal/trace"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

type metricsServer interface {
	Shutdown(ctx context.Context) error
}

// initializeSystem loads .env and sets up the logger and tracer
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(version); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// startMetricsServer serves /metrics and /healthz unless metrics.addr is "off"
func startMetricsServer(ctx context.Context, cfg *store.Config, a *app.App) metricsServer {
	if !cfg.MetricsEnabled() {
		logger.Info(ctx, "Metrics server disabled")
		return nil
	}

	srv := metrics.NewServer(cfg.Metrics.Addr, prometheus.DefaultGatherer, a.Health)
	srv.Start(func(err error) {
		logger.ErrorWithErr(context.Background(), "Metrics server failed", err, "addr", cfg.Metrics.Addr)
	})
	logger.Info(ctx, "Metrics server listening", "addr", cfg.Metrics.Addr)
	return srv
}
