package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gold-signal-bot/internal/app"
	"gold-signal-bot/internal/logger"
	"gold-signal-bot/internal/trace"

	"github.com/prometheus/client_golang/prometheus"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := initializeSystem(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, *configPath)
	if err != nil {
		os.Exit(1)
	}

	a, err := app.New(ctx, cfg, app.Options{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to start signal engine", err)
		os.Exit(1)
	}

	srv := startMetricsServer(ctx, cfg, a)

	logger.Info(ctx, "Bot started",
		"version", version,
		"symbols", cfg.Symbols(),
		"mock_mode", a.Provider.MockMode(),
		"dry_run", cfg.Delivery.DryRun,
	)

	if err := a.Scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorWithErr(ctx, "Scheduler stopped", err)
	}

	logger.Info(context.Background(), "Shutting down...")
	shutdown(a, srv)
}

// shutdown flushes the cache, then stops the metrics server and the tracer.
func shutdown(a *app.App, srv metricsServer) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = a.Close(ctx)
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn(ctx, "Metrics server shutdown failed", "error", err)
		}
	}
	if err := trace.Shutdown(ctx); err != nil {
		logger.Warn(ctx, "Tracer shutdown failed", "error", err)
	}
}
