package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"gold-signal-bot/internal/eod"
	"gold-signal-bot/internal/metrics"
	"gold-signal-bot/internal/signalcache"
	"gold-signal-bot/internal/store"
	"gold-signal-bot/internal/tradelog"
	"gold-signal-bot/internal/types"
)

type fakeGenerator struct {
	out   []types.GeneratedSignal
	err   error
	panic bool
	calls int
	onRun func()
}

func (f *fakeGenerator) Generate(ctx context.Context, symbol string) (*types.GeneratedSignal, types.Analysis, error) {
	return nil, types.Analysis{}, nil
}

func (f *fakeGenerator) GenerateAll(ctx context.Context) ([]types.GeneratedSignal, error) {
	f.calls++
	if f.onRun != nil {
		f.onRun()
	}
	if f.panic {
		panic("boom")
	}
	return f.out, f.err
}

type fakeTracker struct {
	closed  []types.TrackResult
	expired []types.TrackResult
}

func (f *fakeTracker) CheckSignal(ctx context.Context, sig types.CachedSignal) (*types.TrackResult, error) {
	return nil, nil
}

func (f *fakeTracker) CheckAll(ctx context.Context) []types.TrackResult {
	return f.closed
}

func (f *fakeTracker) ReviewExpired(ctx context.Context) []types.TrackResult {
	return f.expired
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeNotifier) Send(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return f.err
}

func (f *fakeNotifier) SendPhoto(ctx context.Context, image []byte, caption string) error {
	return f.Send(ctx, caption)
}

func (f *fakeNotifier) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func testConfig() *store.Config {
	cfg := &store.Config{}
	cfg.Instruments = []store.Instrument{{Symbol: "XAU/USD", Name: "GOLD", PipSize: 0.01, StopLossPips: 150, PriceDecimals: 2}}
	cfg.Intervals.GenerationMinutes = 240
	cfg.Intervals.TrackerMinutes = 15
	cfg.Intervals.ReviewMinutes = 240
	cfg.Intervals.RecapMinutes = 1440
	return cfg
}

func testSignal(id string) types.CachedSignal {
	now := time.Now().UTC()
	return types.CachedSignal{
		ID:          id,
		Symbol:      "XAU/USD",
		Direction:   types.Buy,
		EntryPrice:  2650,
		StopLoss:    2648.5,
		TakeProfit1: 2651.875,
		TakeProfit2: types.Float(2653.75),
		TakeProfit3: types.Float(2655.625),
		Confidence:  80,
		CreatedAt:   now,
		ExpiresAt:   now.Add(4 * time.Hour),
		Status:      types.StatusActive,
	}
}

type harness struct {
	sched    *Scheduler
	gen      *fakeGenerator
	tracker  *fakeTracker
	notifier *fakeNotifier
	cache    *signalcache.Cache
	journal  *tradelog.Journal
	metrics  *metrics.Metrics
	health   *metrics.Health
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	c, err := signalcache.Open(context.Background(), signalcache.Options{Path: filepath.Join(dir, "signals.json")})
	if err != nil {
		t.Fatalf("Expected cache to open, got %v", err)
	}
	t.Cleanup(func() { c.Flush() })

	h := &harness{
		gen:      &fakeGenerator{},
		tracker:  &fakeTracker{},
		notifier: &fakeNotifier{},
		cache:    c,
		journal:  tradelog.New(filepath.Join(dir, "logs")),
		metrics:  metrics.New(prometheus.NewRegistry()),
		health:   metrics.NewHealth(true),
	}
	h.sched = New(Deps{
		Config:    testConfig(),
		Generator: h.gen,
		Tracker:   h.tracker,
		Store:     h.cache,
		Notifier:  h.notifier,
		Journal:   h.journal,
		EOD:       eod.NewSummarizer(h.journal),
		Metrics:   h.metrics,
		Health:    h.health,
	})
	return h
}

func TestParseTask(t *testing.T) {
	for _, name := range []string{"generate", "track", "review", "recap"} {
		task, err := ParseTask(name)
		if err != nil || string(task) != name {
			t.Errorf("Expected %s, got %q (%v)", name, task, err)
		}
	}
	if _, err := ParseTask("trade"); err == nil {
		t.Error("Expected error for unknown task")
	}
}

func TestRunOnceGenerate(t *testing.T) {
	h := newHarness(t)
	sig := testSignal("a")
	h.gen.out = []types.GeneratedSignal{{Signal: sig, Analysis: types.Analysis{Reasons: []string{"RSI oversold"}}}}

	if err := h.sched.RunOnce(context.Background(), TaskGenerate); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, ok := h.cache.Get("a"); !ok {
		t.Error("Expected signal to be stored")
	}
	msgs := h.notifier.messages()
	if len(msgs) != 1 || !strings.HasPrefix(msgs[0], "BUY SIGNAL: GOLD") {
		t.Errorf("Expected one BUY announcement, got %q", msgs)
	}

	entries, err := h.journal.Read(time.Now().UTC())
	if err != nil {
		t.Fatalf("Expected journal read, got %v", err)
	}
	if len(entries) != 1 || entries[0].Event != tradelog.EventOpened || entries[0].SignalID != "a" {
		t.Errorf("Expected one OPENED entry for a, got %+v", entries)
	}

	if got := testutil.ToFloat64(h.metrics.TaskRuns.WithLabelValues("generate", "ok")); got != 1 {
		t.Errorf("Expected 1 ok generate run, got %v", got)
	}
}

func TestRunOnceGenerateNothing(t *testing.T) {
	h := newHarness(t)
	if err := h.sched.RunOnce(context.Background(), TaskGenerate); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if n := len(h.notifier.messages()); n != 0 {
		t.Errorf("Expected no messages, got %d", n)
	}
	if h.cache.Count() != 0 {
		t.Errorf("Expected empty cache, got %d", h.cache.Count())
	}
}

func TestNotifyFailureDoesNotFailTask(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errors.New("telegram down")
	h.gen.out = []types.GeneratedSignal{{Signal: testSignal("a")}, {Signal: testSignal("b")}}

	if err := h.sched.RunOnce(context.Background(), TaskGenerate); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if h.cache.Count() != 2 {
		t.Errorf("Expected both signals stored, got %d", h.cache.Count())
	}
	if n := len(h.notifier.messages()); n != 2 {
		t.Errorf("Expected one attempt per signal, got %d", n)
	}
}

func TestRunOnceRecoversPanic(t *testing.T) {
	h := newHarness(t)
	h.gen.panic = true

	err := h.sched.RunOnce(context.Background(), TaskGenerate)
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("Expected panic error, got %v", err)
	}
	if got := testutil.ToFloat64(h.metrics.TaskRuns.WithLabelValues("generate", "error")); got != 1 {
		t.Errorf("Expected 1 error run, got %v", got)
	}
}

func TestRunOnceTrack(t *testing.T) {
	h := newHarness(t)
	sig := testSignal("a")
	sig.Status = types.StatusWinTP1
	h.tracker.closed = []types.TrackResult{{
		Signal: sig, Previous: types.StatusActive, Status: types.StatusWinTP1,
		Price: 2651.9, Pips: 190, Level: "TP1", Held: 90 * time.Minute,
	}}

	if err := h.sched.RunOnce(context.Background(), TaskTrack); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	msgs := h.notifier.messages()
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 outcome message, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0], "+190.0") {
		t.Errorf("Expected pips in outcome, got %q", msgs[0])
	}
}

func TestRunOnceReview(t *testing.T) {
	h := newHarness(t)
	sig := testSignal("a")
	sig.Status = types.StatusExpired
	h.tracker.expired = []types.TrackResult{{
		Signal: sig, Previous: types.StatusActive, Status: types.StatusExpired,
		Price: 2650.5, Pips: 50, Level: "EXPIRY",
	}}

	if err := h.sched.RunOnce(context.Background(), TaskReview); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	msgs := h.notifier.messages()
	if len(msgs) != 1 || !strings.HasPrefix(msgs[0], "SIGNAL EXPIRED") {
		t.Errorf("Expected one expiry message, got %q", msgs)
	}
}

func TestRunOnceRecap(t *testing.T) {
	h := newHarness(t)
	if err := h.sched.RunOnce(context.Background(), TaskRecap); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	msgs := h.notifier.messages()
	if len(msgs) != 1 || !strings.HasPrefix(msgs[0], "DAILY RECAP") {
		t.Errorf("Expected recap message, got %q", msgs)
	}

	h.notifier.err = errors.New("down")
	if err := h.sched.RunOnce(context.Background(), TaskRecap); err == nil {
		t.Error("Expected recap delivery error to be returned")
	}
}

func TestRecapWritesEODSummary(t *testing.T) {
	h := newHarness(t)
	h.gen.out = []types.GeneratedSignal{{Signal: testSignal("a")}}
	if err := h.sched.RunOnce(context.Background(), TaskGenerate); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := h.sched.RunOnce(context.Background(), TaskRecap); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	p := eod.CSVPath(h.journal.Dir(), time.Now())
	if _, err := os.Stat(p); err != nil {
		t.Errorf("Expected EOD CSV at %s, got %v", p, err)
	}
}

func TestRunOnceUnknownTask(t *testing.T) {
	h := newHarness(t)
	if err := h.sched.RunOnce(context.Background(), Task("trade")); err == nil {
		t.Error("Expected error for unknown task")
	}
}

func TestRunOnStartThenStop(t *testing.T) {
	h := newHarness(t)
	h.sched.runOnStart = true

	ctx, cancel := context.WithCancel(context.Background())
	h.gen.onRun = cancel

	done := make(chan error, 1)
	go func() { done <- h.sched.Run(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Run to return after cancel")
	}
	if h.gen.calls != 1 {
		t.Errorf("Expected one generation on start, got %d", h.gen.calls)
	}
}

func TestRecapDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Intervals.RecapMinutes = -1
	s := New(Deps{Config: cfg})
	if s.intervals.Recap > 0 {
		t.Errorf("Expected recap disabled, got %v", s.intervals.Recap)
	}
}
