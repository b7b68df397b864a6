package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the signal lifecycle.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SignalsGenerated *prometheus.CounterVec // labels: direction
	SignalsSkipped   prometheus.Counter
	Outcomes         *prometheus.CounterVec // labels: status
	UpstreamCalls    *prometheus.CounterVec // labels: endpoint, source
	RateLimitWait    prometheus.Histogram
	CacheSize        prometheus.Gauge
	CacheSaveErrors  prometheus.Counter
	TaskRuns         *prometheus.CounterVec // labels: task, result
}

// New builds the collectors and registers them with reg. Tests pass a fresh
// prometheus.NewRegistry(); the binary passes prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SignalsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_signals_generated_total",
			Help: "Signals emitted by the generator",
		}, []string{"direction"}),
		SignalsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_signals_skipped_total",
			Help: "Generation runs that found no edge",
		}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_signal_outcomes_total",
			Help: "Signals closed by the tracker or the expiry review",
		}, []string{"status"}),
		UpstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_marketdata_calls_total",
			Help: "Market data lookups by endpoint and the path that served them",
		}, []string{"endpoint", "source"}),
		RateLimitWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalbot_ratelimit_wait_seconds",
			Help:    "Time spent blocked on the market data rate limiter",
			Buckets: []float64{0.001, 0.01, 0.1, 1, 5, 15, 30, 60},
		}),
		CacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_cache_signals",
			Help: "Signals currently held by the cache",
		}),
		CacheSaveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_cache_save_errors_total",
			Help: "Failed cache file writes",
		}),
		TaskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_scheduler_task_runs_total",
			Help: "Scheduled task executions by outcome",
		}, []string{"task", "result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.SignalsGenerated,
			m.SignalsSkipped,
			m.Outcomes,
			m.UpstreamCalls,
			m.RateLimitWait,
			m.CacheSize,
			m.CacheSaveErrors,
			m.TaskRuns,
		)
	}
	return m
}

func (m *Metrics) SignalGenerated(direction string) {
	if m == nil {
		return
	}
	m.SignalsGenerated.WithLabelValues(direction).Inc()
}

func (m *Metrics) SignalSkipped() {
	if m == nil {
		return
	}
	m.SignalsSkipped.Inc()
}

func (m *Metrics) Outcome(status string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(status).Inc()
}

func (m *Metrics) Upstream(endpoint, source string) {
	if m == nil {
		return
	}
	m.UpstreamCalls.WithLabelValues(endpoint, source).Inc()
}

func (m *Metrics) RateLimited(d time.Duration) {
	if m == nil {
		return
	}
	m.RateLimitWait.Observe(d.Seconds())
}

func (m *Metrics) SetCacheSize(n int) {
	if m == nil {
		return
	}
	m.CacheSize.Set(float64(n))
}

func (m *Metrics) SaveFailed() {
	if m == nil {
		return
	}
	m.CacheSaveErrors.Inc()
}

func (m *Metrics) TaskRun(task string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.TaskRuns.WithLabelValues(task, result).Inc()
}

// Health is the /healthz payload: last run time per scheduled task.
type Health struct {
	mu        sync.RWMutex
	startedAt time.Time
	lastRun   map[string]time.Time
	mockMode  bool
}

func NewHealth(mockMode bool) *Health {
	return &Health{startedAt: time.Now(), lastRun: make(map[string]time.Time), mockMode: mockMode}
}

func (h *Health) MarkRun(task string, at time.Time) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.lastRun[task] = at
	h.mu.Unlock()
}

func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	runs := make(map[string]string, len(h.lastRun))
	for task, at := range h.lastRun {
		runs[task] = at.Format(time.RFC3339)
	}
	status := struct {
		Status   string            `json:"status"`
		Uptime   string            `json:"uptime"`
		MockMode bool              `json:"mock_mode"`
		LastRun  map[string]string `json:"last_run"`
	}{
		Status:   "healthy",
		Uptime:   time.Since(h.startedAt).Round(time.Second).String(),
		MockMode: h.mockMode,
		LastRun:  runs,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// Server exposes /metrics and /healthz.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, gatherer prometheus.Gatherer, health *Health) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves in the background. Listen errors are passed to onErr.
func (s *Server) Start(onErr func(error)) {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			onErr(err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler returns the mux, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
