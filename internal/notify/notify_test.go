package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gold-signal-bot/internal/store"
	"gold-signal-bot/internal/types"
)

var gold = store.Instrument{Symbol: "XAU/USD", Name: "GOLD (XAUUSD)", PipSize: 0.01, PriceDecimals: 3}

func testSignal() types.CachedSignal {
	created := time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC)
	return types.CachedSignal{
		ID: "s1", Symbol: "XAU/USD", Direction: types.Buy,
		EntryPrice: 2650, StopLoss: 2648.5, TakeProfit1: 2651.875,
		TakeProfit2: types.Float(2653.75), Confidence: 65,
		CreatedAt: created, ExpiresAt: created.Add(4 * time.Hour), Status: types.StatusActive,
	}
}

func TestFormatSignal(t *testing.T) {
	msg := FormatSignal(testSignal(), gold)
	for _, want := range []string{
		"BUY SIGNAL: GOLD (XAUUSD)",
		"Entry: 2650.000",
		"Stop Loss: 2648.500",
		"Take Profit 1: 2651.875",
		"Take Profit 2: 2653.750",
		"Confidence: 65%",
		"Valid until: 2025-01-02 12:00 UTC",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected %q in message:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "Take Profit 3") {
		t.Errorf("Expected absent TP3 to be omitted:\n%s", msg)
	}
}

func TestFormatOutcome(t *testing.T) {
	win := FormatOutcome(types.TrackResult{
		Signal: testSignal(), Status: types.StatusWinTP2, Level: "TP2", Price: 2653.8, Pips: 380, Held: 150 * time.Minute,
	}, gold)
	if !strings.Contains(win, "TP2 HIT") || !strings.Contains(win, "+380.0 pips") || !strings.Contains(win, "2h 30m") {
		t.Errorf("Unexpected win message:\n%s", win)
	}

	loss := FormatOutcome(types.TrackResult{
		Signal: testSignal(), Status: types.StatusLossSL, Level: "SL", Price: 2648.5, Pips: -150, Held: 20 * time.Minute,
	}, gold)
	if !strings.Contains(loss, "STOP LOSS HIT") || !strings.Contains(loss, "-150.0 pips") || !strings.Contains(loss, "Duration: 20m") {
		t.Errorf("Unexpected loss message:\n%s", loss)
	}
}

func TestFormatExpired(t *testing.T) {
	msg := FormatExpired(types.TrackResult{Signal: testSignal(), Status: types.StatusExpired, Price: 2650.4, Pips: 40}, gold)
	if !strings.Contains(msg, "Unrealized: +40.0 pips") || !strings.Contains(msg, "within 4h 0m") {
		t.Errorf("Unexpected expiry message:\n%s", msg)
	}
}

func TestFormatRecap(t *testing.T) {
	empty := FormatRecap(types.SignalStats{Active: 2}, "")
	if !strings.Contains(empty, "No closed signals yet. Active: 2") {
		t.Errorf("Unexpected empty recap:\n%s", empty)
	}
	msg := FormatRecap(types.SignalStats{Wins: 3, Losses: 1, WinRate: 75, TotalPips: 412.5}, "DAILY RECAP")
	for _, want := range []string{"DAILY RECAP", "Wins: 3", "Losses: 1", "Win rate: 75.0%", "Net: +412.5 pips"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected %q in recap:\n%s", want, msg)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		0:                            "0m",
		45 * time.Minute:             "45m",
		time.Hour:                    "1h 0m",
		3*time.Hour + 59*time.Minute: "3h 59m",
		-time.Minute:                 "0m",
	}
	for d, want := range tests {
		if got := FormatDuration(d); got != want {
			t.Errorf("FormatDuration(%v): expected %q, got %q", d, want, got)
		}
	}
}

func TestTelegramSend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("Expected sendMessage path, got %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "@channel")
	n.apiBase = srv.URL
	if err := n.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got["chat_id"] != "@channel" || got["text"] != "hello" {
		t.Errorf("Expected chat_id and text in body, got %v", got)
	}
}

func TestTelegramSendPhoto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Expected multipart body, got %v", err)
			return
		}
		if r.FormValue("caption") != "chart" || r.FormValue("chat_id") != "42" {
			t.Errorf("Expected caption and chat_id fields, got %v", r.MultipartForm.Value)
		}
		f, _, err := r.FormFile("photo")
		if err != nil {
			t.Errorf("Expected photo part, got %v", err)
			return
		}
		b, _ := io.ReadAll(f)
		if string(b) != "PNG" {
			t.Errorf("Expected photo bytes, got %q", b)
		}
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42")
	n.apiBase = srv.URL
	if err := n.SendPhoto(context.Background(), []byte("PNG"), "chart"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
}

func TestTelegramErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"ok":false,"description":"bot was kicked"}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42")
	n.apiBase = srv.URL
	err := n.Send(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("Expected 403 error, got %v", err)
	}
}

func TestTelegramTransportErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	n := NewTelegramNotifier("123456:SECRET-TOKEN", "@channel")
	n.apiBase = base
	for name, send := range map[string]func() error{
		"sendMessage": func() error { return n.Send(context.Background(), "hello") },
		"sendPhoto":   func() error { return n.SendPhoto(context.Background(), []byte("png"), "cap") },
	} {
		err := send()
		if err == nil {
			t.Fatalf("%s: expected error from closed server", name)
		}
		if strings.Contains(err.Error(), "SECRET-TOKEN") {
			t.Errorf("%s: expected token stripped, got %q", name, err.Error())
		}
		if !strings.Contains(err.Error(), name) {
			t.Errorf("%s: expected method in error, got %q", name, err.Error())
		}
	}
}
