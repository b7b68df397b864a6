package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func capture(t *testing.T, cfg LogConfig) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	cfg.Output = &buf
	if err := InitWithConfig(cfg); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	t.Cleanup(func() { InitWithConfig(LogConfig{Level: "INFO", Format: "text"}) })
	return &buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("Expected JSON log line, got %q", buf.String())
	}
	return m
}

func TestSignalFields(t *testing.T) {
	buf := capture(t, LogConfig{Level: "INFO", Format: "json"})

	Signal(context.Background(), "id-1", "XAU/USD", "BUY", 2650.5, 80, "stop_loss", 2649.0)

	m := lastLine(t, buf)
	if m["type"] != "SIGNAL" || m["signal_id"] != "id-1" || m["direction"] != "BUY" {
		t.Errorf("Expected signal fields, got %v", m)
	}
	if m["confidence"] != float64(80) || m["stop_loss"] != 2649.0 {
		t.Errorf("Expected confidence and extra fields, got %v", m)
	}
}

func TestOutcomeFields(t *testing.T) {
	buf := capture(t, LogConfig{Level: "INFO", Format: "json"})

	Outcome(context.Background(), "id-1", "XAU/USD", "WIN_TP1", 2651.9, 140, "level", "TP1")

	m := lastLine(t, buf)
	if m["type"] != "OUTCOME" || m["status"] != "WIN_TP1" || m["pips"] != float64(140) {
		t.Errorf("Expected outcome fields, got %v", m)
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, LogConfig{Level: "WARN", Format: "json"})

	Info(context.Background(), "hidden")
	Debug(context.Background(), "hidden too")
	if buf.Len() != 0 {
		t.Errorf("Expected nothing below WARN, got %q", buf.String())
	}

	ErrorWithErr(context.Background(), "save failed", errors.New("disk full"), "path", "x")
	m := lastLine(t, buf)
	if m["error"] != "disk full" || m["level"] != "ERROR" {
		t.Errorf("Expected error entry, got %v", m)
	}
}

func TestDetailedAddsSource(t *testing.T) {
	buf := capture(t, LogConfig{Level: "INFO", Format: "json", DetailedLogging: true})

	Debug(context.Background(), "with source")

	m := lastLine(t, buf)
	src, ok := m["source"].(map[string]any)
	if !ok || !strings.HasSuffix(src["file"].(string), "logger_test.go") {
		t.Errorf("Expected caller in logger_test.go, got %v", m["source"])
	}
	if !IsDebugEnabled() {
		t.Error("Expected debug enabled in detailed mode")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_DETAILED", "true")

	cfg := LoadConfigFromEnv()
	if cfg.Level != "debug" || cfg.Format != "text" || !cfg.DetailedLogging {
		t.Errorf("Expected env values, got %+v", cfg)
	}
	if parseLogLevel(cfg.Level).String() != "DEBUG" {
		t.Errorf("Expected DEBUG level, got %v", parseLogLevel(cfg.Level))
	}
}
