package tradelog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gold-signal-bot/internal/types"
)

func TestOpenedAndClosed(t *testing.T) {
	day := time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)
	j := New(t.TempDir())
	j.now = func() time.Time { return day }

	sig := types.CachedSignal{
		ID: "s1", Symbol: "XAU/USD", Direction: types.Buy, EntryPrice: 2650,
		StopLoss: 2648.5, TakeProfit1: 2651.875, TakeProfit2: types.Float(2653.75), Confidence: 65,
	}
	if err := j.Opened(sig, types.Analysis{Reasons: []string{"RSI oversold (<=30)"}, PriceSource: types.SourceLive}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := j.Closed(types.TrackResult{Signal: sig, Status: types.StatusWinTP1, Level: "TP1", Price: 2652, Pips: 200, Held: 90 * time.Minute}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	entries, err := j.Read(day)
	if err != nil {
		t.Fatalf("Expected no error reading journal, got %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Event != EventOpened || len(entries[0].TakeProfit) != 2 {
		t.Errorf("Expected OPENED with 2 TPs, got %+v", entries[0])
	}
	if entries[1].Event != EventClosed || entries[1].Pips == nil || *entries[1].Pips != 200 || entries[1].HeldMins != 90 {
		t.Errorf("Expected CLOSED with 200 pips after 90m, got %+v", entries[1])
	}
}

func TestNilJournal(t *testing.T) {
	var j *Journal
	if err := j.Closed(types.TrackResult{}); err != nil {
		t.Errorf("Expected nil journal to discard, got %v", err)
	}
	if err := j.CompressOlder(1); err != nil {
		t.Errorf("Expected nil journal compress to be a no-op, got %v", err)
	}
}

func TestCompressOlder(t *testing.T) {
	day := time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)
	j := New(t.TempDir())
	j.now = func() time.Time { return day }
	j.Opened(types.CachedSignal{ID: "s1", Symbol: "XAU/USD", Direction: types.Sell}, types.Analysis{})

	p := j.dayFile(day)
	old := time.Now().AddDate(0, 0, -10)
	if err := os.Chtimes(p, old, old); err != nil {
		t.Fatal(err)
	}

	if err := j.CompressOlder(7); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Errorf("Expected original day file to be removed, got %v", err)
	}
	if _, err := os.Stat(p + ".gz"); err != nil {
		t.Errorf("Expected gz file, got %v", err)
	}

	entries, err := j.Read(day)
	if err != nil || len(entries) != 1 || entries[0].SignalID != "s1" {
		t.Errorf("Expected compressed day to stay readable, got %+v err=%v", entries, err)
	}
	if filepath.Dir(p) != filepath.Join(j.Dir(), "signals") {
		t.Errorf("Expected day files under signals/, got %s", p)
	}
}
