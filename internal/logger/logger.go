package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"gold-signal-bot/internal/trace"
)

var (
	globalLogger    = slog.New(slog.NewTextHandler(os.Stdout, nil))
	detailedLogging bool
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level           string // DEBUG, INFO, WARN, ERROR
	Format          string // json or text
	DetailedLogging bool   // Enable debug logs with caller source
	Output          io.Writer
}

// Init initializes the global logger from environment variables
func Init() error {
	return InitWithConfig(LoadConfigFromEnv())
}

// LoadConfigFromEnv loads logging configuration from environment variables
func LoadConfigFromEnv() LogConfig {
	return LogConfig{
		Level:           getEnvOrDefault("LOG_LEVEL", "INFO"),
		Format:          getEnvOrDefault("LOG_FORMAT", "json"),
		DetailedLogging: getEnvOrDefault("LOG_DETAILED", "false") == "true",
	}
}

// InitWithConfig initializes the logger with specific configuration
func InitWithConfig(config LogConfig) error {
	detailedLogging = config.DetailedLogging

	out := config.Output
	if out == nil {
		out = os.Stdout
	}
	level := parseLogLevel(config.Level)
	if detailedLogging && level > slog.LevelDebug {
		level = slog.LevelDebug
	}
	// source is added by logWithTrace so the caller frame is right
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(config.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func Debug(ctx context.Context, msg string, args ...any) {
	if !detailedLogging {
		return
	}
	logWithTrace(ctx, slog.LevelDebug, msg, 2, args...)
}

func Info(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelInfo, msg, 2, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelWarn, msg, 2, args...)
}

func Error(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelError, msg, 2, args...)
}

// ErrorWithErr logs err and records it on the active span.
func ErrorWithErr(ctx context.Context, msg string, err error, args ...any) {
	errorWithErr(ctx, msg, err, 3, args...)
}

// DebugSkip, InfoSkip and ErrorWithErrSkip are used by decorators that want
// the caller of the wrapped method reported as source.
func DebugSkip(ctx context.Context, skip int, msg string, args ...any) {
	if !detailedLogging {
		return
	}
	logWithTrace(ctx, slog.LevelDebug, msg, 2+skip, args...)
}

func InfoSkip(ctx context.Context, skip int, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelInfo, msg, 2+skip, args...)
}

func ErrorWithErrSkip(ctx context.Context, skip int, msg string, err error, args ...any) {
	errorWithErr(ctx, msg, err, 3+skip, args...)
}

func errorWithErr(ctx context.Context, msg string, err error, skip int, args ...any) {
	if trace.Enabled() {
		span := oteltrace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	logWithTrace(ctx, slog.LevelError, msg, skip, append([]any{"error", err}, args...)...)
}

// logWithTrace prefixes trace/span ids and, in detailed mode, the caller
// frame found skip levels up.
func logWithTrace(ctx context.Context, level slog.Level, msg string, skip int, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if traceID, spanID, ok := trace.GetTraceFields(ctx); ok {
		args = append([]any{"trace_id", traceID, "span_id", spanID}, args...)
	}

	if detailedLogging {
		if pc, file, line, ok := runtime.Caller(skip); ok {
			if fn := runtime.FuncForPC(pc); fn != nil {
				args = append(args, "source", slog.GroupValue(
					slog.String("function", fn.Name()),
					slog.String("file", file),
					slog.Int("line", line),
				))
			}
		}
	}

	globalLogger.Log(ctx, level, msg, args...)
}

// OperationTimer measures one scheduled task or upstream call.
type OperationTimer struct {
	ctx    context.Context
	span   oteltrace.Span
	start  time.Time
	fields []any
}

func StartOperation(ctx context.Context, operation string, fields ...any) *OperationTimer {
	ctx, span := trace.StartSpan(ctx, operation)
	span.SetAttributes(toAttributes(fields)...)

	Debug(ctx, "Operation started", append([]any{"operation", operation}, fields...)...)

	return &OperationTimer{ctx: ctx, span: span, start: time.Now(), fields: fields}
}

func (ot *OperationTimer) End(additionalFields ...any) {
	d := time.Since(ot.start)
	ot.span.SetAttributes(attribute.Int64("duration_ms", d.Milliseconds()))
	ot.span.SetAttributes(toAttributes(additionalFields)...)
	ot.span.SetStatus(codes.Ok, "completed")
	ot.span.End()

	if detailedLogging {
		fields := append(append([]any{}, ot.fields...), "duration_ms", d.Milliseconds())
		Debug(ot.ctx, "Operation completed", append(fields, additionalFields...)...)
	}
}

func (ot *OperationTimer) EndWithError(err error, additionalFields ...any) {
	d := time.Since(ot.start)
	ot.span.SetAttributes(attribute.Int64("duration_ms", d.Milliseconds()))
	ot.span.RecordError(err)
	ot.span.SetStatus(codes.Error, err.Error())
	ot.span.End()

	fields := append(append([]any{}, ot.fields...), "duration_ms", d.Milliseconds(), "error", err)
	Error(ot.ctx, "Operation failed", append(fields, additionalFields...)...)
}

// GetContext returns the context carrying the operation span.
func (ot *OperationTimer) GetContext() context.Context {
	return ot.ctx
}

func toAttributes(fields []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		switch v := fields[i+1].(type) {
		case string:
			attrs = append(attrs, attribute.String(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		}
	}
	return attrs
}

// Signal logs an emitted signal. Always logged regardless of level.
func Signal(ctx context.Context, id, symbol, direction string, entry float64, confidence int, fields ...any) {
	oteltrace.SpanFromContext(ctx).AddEvent("signal_emitted", oteltrace.WithAttributes(
		attribute.String("signal_id", id),
		attribute.String("symbol", symbol),
		attribute.String("direction", direction),
		attribute.Float64("entry", entry),
		attribute.Int("confidence", confidence),
	))

	allFields := append([]any{
		"type", "SIGNAL",
		"signal_id", id,
		"symbol", symbol,
		"direction", direction,
		"entry", entry,
		"confidence", confidence,
	}, fields...)
	logWithTrace(ctx, slog.LevelInfo, "Signal emitted", 2, allFields...)
}

// Outcome logs a signal leaving ACTIVE.
func Outcome(ctx context.Context, id, symbol, status string, price, pips float64, fields ...any) {
	oteltrace.SpanFromContext(ctx).AddEvent("signal_closed", oteltrace.WithAttributes(
		attribute.String("signal_id", id),
		attribute.String("symbol", symbol),
		attribute.String("status", status),
		attribute.Float64("price", price),
		attribute.Float64("pips", pips),
	))

	allFields := append([]any{
		"type", "OUTCOME",
		"signal_id", id,
		"symbol", symbol,
		"status", status,
		"price", price,
		"pips", pips,
	}, fields...)
	logWithTrace(ctx, slog.LevelInfo, "Signal closed", 2, allFields...)
}

func IsDebugEnabled() bool {
	return detailedLogging
}
