package eod

import (
	"os"
	"strings"
	"testing"
	"time"

	"gold-signal-bot/internal/tradelog"
	"gold-signal-bot/internal/types"
)

func TestSummarizeDay(t *testing.T) {
	j := tradelog.New(t.TempDir())
	now := time.Now().UTC()

	gold := types.CachedSignal{ID: "a", Symbol: "XAU/USD", Direction: types.Buy, EntryPrice: 2650, CreatedAt: now}
	silver := types.CachedSignal{ID: "b", Symbol: "XAG/USD", Direction: types.Sell, EntryPrice: 31, CreatedAt: now}
	for _, s := range []types.CachedSignal{gold, silver} {
		if err := j.Opened(s, types.Analysis{}); err != nil {
			t.Fatal(err)
		}
	}
	if err := j.Closed(types.TrackResult{Signal: gold, Status: types.StatusWinTP2, Pips: 375, Level: "TP2"}); err != nil {
		t.Fatal(err)
	}
	if err := j.Closed(types.TrackResult{Signal: silver, Status: types.StatusLossSL, Pips: -150, Level: "SL"}); err != nil {
		t.Fatal(err)
	}

	path, err := NewSummarizer(j).SummarizeDay(now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if path != CSVPath(j.Dir(), now) {
		t.Errorf("Expected %s, got %s", CSVPath(j.Dir(), now), path)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected CSV file, got %v", err)
	}
	want := "symbol,opened,wins,losses,expired,net_pips\n" +
		"XAG/USD,1,0,1,0,-150.0\n" +
		"XAU/USD,1,1,0,0,375.0\n" +
		"TOTAL,2,1,1,0,225.0\n"
	if string(b) != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, string(b))
	}
}

func TestSummarizeDayWithoutJournal(t *testing.T) {
	j := tradelog.New(t.TempDir())
	path, err := NewSummarizer(j).SummarizeDay(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Expected no error for missing day, got %v", err)
	}
	if path != "" {
		t.Errorf("Expected empty path, got %s", path)
	}
}

func TestCSVPathUsesUTCDay(t *testing.T) {
	ist := time.FixedZone("IST", 19800)
	day := time.Date(2025, 3, 2, 2, 0, 0, 0, ist) // 2025-03-01 20:30 UTC
	if p := CSVPath("logs", day); !strings.HasSuffix(p, "2025-03-01.csv") {
		t.Errorf("Expected UTC day in path, got %s", p)
	}
}
