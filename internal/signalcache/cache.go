package signalcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gold-signal-bot/internal/interfaces"
	"gold-signal-bot/internal/logger"
	"gold-signal-bot/internal/metrics"
	"gold-signal-bot/internal/types"
)

const (
	DefaultMaxHistory = 100
	DefaultDebounce   = 100 * time.Millisecond

	// maxRetryDelay caps the backoff between failed debounced saves.
	maxRetryDelay = 30 * time.Second
)

type Options struct {
	Path       string
	MaxHistory int
	Debounce   time.Duration
	Metrics    *metrics.Metrics
}

// Cache owns every signal record and mirrors them to a single JSON file.
// Mutations schedule a debounced save; Flush saves synchronously. Callers
// only ever receive copies.
type Cache struct {
	path       string
	maxHistory int
	debounce   time.Duration
	metrics    *metrics.Metrics

	mu      sync.Mutex
	signals map[string]types.CachedSignal
	dirty   bool
	timer   *time.Timer
	gen     uint64
	retry   time.Duration

	// saveMu orders writes; always taken before mu.
	saveMu sync.Mutex

	now func() time.Time
}

var _ interfaces.SignalStore = (*Cache)(nil)

// Open creates the data directory and loads the file if present. A missing
// file gives an empty cache. A corrupt file is logged and ignored.
func Open(ctx context.Context, opts Options) (*Cache, error) {
	if opts.Path == "" {
		return nil, errors.New("signal cache path is required")
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = DefaultMaxHistory
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	c := &Cache{
		path:       opts.Path,
		maxHistory: opts.MaxHistory,
		debounce:   opts.Debounce,
		metrics:    opts.Metrics,
		signals:    make(map[string]types.CachedSignal),
		now:        time.Now,
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) load(ctx context.Context) error {
	b, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info(ctx, "No signal cache file, starting empty", "path", c.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read signal cache: %w", err)
	}

	var list []types.CachedSignal
	if err := json.Unmarshal(b, &list); err != nil {
		logger.ErrorWithErr(ctx, "Signal cache file is corrupt, starting empty", err, "path", c.path)
		return nil
	}

	c.mu.Lock()
	for _, s := range list {
		c.signals[s.ID] = s
	}
	pruned := c.pruneLocked()
	n := len(c.signals)
	c.mu.Unlock()

	logger.Info(ctx, "Signal cache loaded", "path", c.path, "count", n, "pruned", pruned)
	return nil
}

// Add inserts or replaces sig by id and prunes if over capacity.
func (c *Cache) Add(sig types.CachedSignal) {
	c.mu.Lock()
	c.signals[sig.ID] = sig.Clone()
	c.scheduleSaveLocked()
	c.pruneLocked()
	c.mu.Unlock()
}

func (c *Cache) Get(id string) (types.CachedSignal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.signals[id]
	if !ok {
		return types.CachedSignal{}, false
	}
	return s.Clone(), true
}

// GetAll returns every record, oldest first.
func (c *Cache) GetAll() []types.CachedSignal {
	return c.filter(func(types.CachedSignal) bool { return true })
}

func (c *Cache) GetActive() []types.CachedSignal {
	return c.filter(func(s types.CachedSignal) bool { return s.Status == types.StatusActive })
}

// GetExpired returns ACTIVE records whose expiry has passed. Their status
// is not changed here.
func (c *Cache) GetExpired() []types.CachedSignal {
	now := c.now()
	return c.filter(func(s types.CachedSignal) bool {
		return s.Status == types.StatusActive && now.After(s.ExpiresAt)
	})
}

func (c *Cache) filter(keep func(types.CachedSignal) bool) []types.CachedSignal {
	c.mu.Lock()
	out := make([]types.CachedSignal, 0, len(c.signals))
	for _, s := range c.signals {
		if keep(s) {
			out = append(out, s.Clone())
		}
	}
	c.mu.Unlock()

	sortByCreated(out, false)
	return out
}

// Update merges the non-nil fields of upd. It returns false when id is
// unknown or the record is already closed; closed records never change.
func (c *Cache) Update(id string, upd types.SignalUpdate) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.signals[id]
	if !ok || s.Status.Closed() {
		return false
	}
	if upd.Status != nil {
		s.Status = *upd.Status
	}
	if upd.ClosedAt != nil {
		t := *upd.ClosedAt
		s.ClosedAt = &t
	}
	if upd.ClosedPrice != nil {
		s.ClosedPrice = types.Float(*upd.ClosedPrice)
	}
	if upd.PnLPips != nil {
		s.PnLPips = types.Float(*upd.PnLPips)
	}
	c.signals[id] = s
	c.scheduleSaveLocked()
	return true
}

func (c *Cache) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.signals[id]; !ok {
		return false
	}
	delete(c.signals, id)
	c.scheduleSaveLocked()
	return true
}

func (c *Cache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.signals)
}

// Counts returns the number of records per status.
func (c *Cache) Counts() map[types.Status]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[types.Status]int)
	for _, s := range c.signals {
		out[s.Status]++
	}
	return out
}

// GetStats derives win/loss figures from the full set. Win rate is over
// closed wins and losses only; expired signals do not count against it.
func (c *Cache) GetStats() types.SignalStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var st types.SignalStats
	pips := 0.0
	for _, s := range c.signals {
		switch {
		case s.Status.IsWin():
			st.Wins++
		case s.Status == types.StatusLossSL:
			st.Losses++
		case s.Status == types.StatusExpired:
			st.Expired++
		case s.Status == types.StatusActive:
			st.Active++
		}
		if s.PnLPips != nil {
			pips += *s.PnLPips
		}
	}
	st.Total = len(c.signals)
	if done := st.Wins + st.Losses; done > 0 {
		st.WinRate = round1(float64(st.Wins) / float64(done) * 100)
	}
	st.TotalPips = round1(pips)
	return st
}

// Prune drops the oldest records beyond the history cap and returns how
// many were removed.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pruneLocked()
}

func (c *Cache) pruneLocked() int {
	if len(c.signals) <= c.maxHistory {
		c.metrics.SetCacheSize(len(c.signals))
		return 0
	}

	all := make([]types.CachedSignal, 0, len(c.signals))
	for _, s := range c.signals {
		all = append(all, s)
	}
	sortByCreated(all, true)
	for _, s := range all[c.maxHistory:] {
		delete(c.signals, s.ID)
	}
	removed := len(all) - c.maxHistory

	c.scheduleSaveLocked()
	c.metrics.SetCacheSize(len(c.signals))
	logger.Debug(context.Background(), "Pruned old signals", "removed", removed)
	return removed
}

// scheduleSaveLocked marks the cache dirty and arms the single debounce
// timer if none is pending.
func (c *Cache) scheduleSaveLocked() {
	c.dirty = true
	if c.timer != nil {
		return
	}
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(c.debounce, func() { c.fire(gen) })
}

func (c *Cache) fire(gen uint64) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	if gen != c.gen || c.timer == nil {
		// superseded by Flush
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if !c.dirty {
		c.mu.Unlock()
		return
	}
	data, err := c.snapshotLocked()
	c.mu.Unlock()

	if err == nil {
		err = writeAtomic(c.path, data)
	}
	if err != nil {
		delay := c.retryLater()
		c.metrics.SaveFailed()
		logger.ErrorWithErr(context.Background(), "Debounced signal cache save failed", err, "path", c.path, "retry_in", delay.String())
		return
	}
	c.mu.Lock()
	c.retry = 0
	c.mu.Unlock()
}

// retryLater marks the cache dirty and re-arms the timer with a doubling
// delay, capped at maxRetryDelay. A timer armed by a newer mutation is kept.
func (c *Cache) retryLater() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = true
	if c.retry == 0 {
		c.retry = c.debounce
	} else {
		c.retry = min(2*c.retry, maxRetryDelay)
	}
	if c.timer == nil {
		c.gen++
		gen := c.gen
		c.timer = time.AfterFunc(c.retry, func() { c.fire(gen) })
	}
	return c.retry
}

// Flush cancels any pending debounced save and writes the current state
// now. Write errors are returned.
func (c *Cache) Flush() error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	data, err := c.snapshotLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if err := writeAtomic(c.path, data); err != nil {
		c.markDirty()
		c.metrics.SaveFailed()
		return fmt.Errorf("save signal cache: %w", err)
	}
	c.mu.Lock()
	c.retry = 0
	c.mu.Unlock()
	return nil
}

func (c *Cache) markDirty() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}

// snapshotLocked serializes all records oldest first and clears dirty.
func (c *Cache) snapshotLocked() ([]byte, error) {
	list := make([]types.CachedSignal, 0, len(c.signals))
	for _, s := range c.signals {
		list = append(list, s)
	}
	sortByCreated(list, false)
	c.dirty = false
	return json.MarshalIndent(list, "", "  ")
}

// writeAtomic writes data to a temp file beside path, syncs it and renames
// it over path. The temp file is removed on any failure.
func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func sortByCreated(list []types.CachedSignal, desc bool) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if desc {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
