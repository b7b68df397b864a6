package trace

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "gold-signal-bot"

var (
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
	enabled        bool
)

// Config controls span export. Spans go to Output as JSON, or to a file
// when LOG_TRACE_FILE is set.
type Config struct {
	Enabled     bool
	SampleRatio float64
	Version     string
	Output      io.Writer
	Pretty      bool
}

// LoadConfigFromEnv reads LOG_TRACING_ENABLED, LOG_TRACE_SAMPLE_RATIO and
// LOG_TRACE_FILE.
func LoadConfigFromEnv(version string) (Config, error) {
	cfg := Config{
		Enabled:     getEnv("LOG_TRACING_ENABLED", "false") == "true",
		SampleRatio: 1,
		Version:     version,
		Output:      os.Stdout,
		Pretty:      true,
	}
	if v := os.Getenv("LOG_TRACE_SAMPLE_RATIO"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r < 0 || r > 1 {
			return cfg, fmt.Errorf("LOG_TRACE_SAMPLE_RATIO must be between 0 and 1, got %q", v)
		}
		cfg.SampleRatio = r
	}
	if p := os.Getenv("LOG_TRACE_FILE"); p != "" && cfg.Enabled {
		f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return cfg, fmt.Errorf("open trace file: %w", err)
		}
		cfg.Output = f
		cfg.Pretty = false
	}
	return cfg, nil
}

// Init configures tracing from the environment.
func Init(version string) error {
	cfg, err := LoadConfigFromEnv(version)
	if err != nil {
		return err
	}
	return InitWithConfig(cfg)
}

func InitWithConfig(cfg Config) error {
	enabled = cfg.Enabled
	if !enabled {
		return nil
	}

	opts := []stdouttrace.Option{stdouttrace.WithWriter(cfg.Output)}
	if cfg.Pretty {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		enabled = false
		return err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(cfg.Version),
		),
	)
	if err != nil {
		enabled = false
		return err
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = otel.Tracer(serviceName)
	return nil
}

// Shutdown flushes buffered spans and disables tracing.
func Shutdown(ctx context.Context) error {
	if tracerProvider == nil {
		return nil
	}
	err := tracerProvider.Shutdown(ctx)
	tracerProvider = nil
	tracer = nil
	enabled = false
	return err
}

// StartSpan returns the parent span unchanged when tracing is off.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !enabled || tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, opts...)
}

func Enabled() bool {
	return enabled
}

func GetTraceFields(ctx context.Context) (traceID, spanID string, ok bool) {
	if !enabled {
		return "", "", false
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
