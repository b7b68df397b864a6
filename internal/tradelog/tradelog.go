package tradelog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gold-signal-bot/internal/types"
)

// Journal events.
const (
	EventOpened = "OPENED"
	EventClosed = "CLOSED"
)

type Entry struct {
	Time       string          `json:"time"`
	Event      string          `json:"event"`
	SignalID   string          `json:"signalId"`
	Symbol     string          `json:"symbol"`
	Direction  types.Direction `json:"direction"`
	Price      float64         `json:"price"`
	Confidence int             `json:"confidence,omitempty"`
	StopLoss   float64         `json:"stopLoss,omitempty"`
	TakeProfit []float64       `json:"takeProfit,omitempty"`
	Status     types.Status    `json:"status,omitempty"`
	Level      string          `json:"level,omitempty"`
	Pips       *float64        `json:"pips,omitempty"`
	HeldMins   int             `json:"heldMinutes,omitempty"`
	Reasons    []string        `json:"reasons,omitempty"`
	Source     types.Source    `json:"source,omitempty"`
}

// Journal appends one JSON line per signal event to a day file under dir.
// A nil *Journal discards everything.
type Journal struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func New(dir string) *Journal {
	if dir == "" {
		dir = "logs"
	}
	return &Journal{dir: dir, now: func() time.Time { return time.Now().UTC() }}
}

func (j *Journal) Dir() string {
	return j.dir
}

func (j *Journal) dayFile(t time.Time) string {
	return filepath.Join(j.dir, "signals", t.Format("2006-01-02")+".txt")
}

func (j *Journal) append(e Entry) error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	e.Time = now.Format(time.RFC3339)
	p := j.dayFile(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// Opened records a newly generated signal.
func (j *Journal) Opened(sig types.CachedSignal, a types.Analysis) error {
	tps := []float64{sig.TakeProfit1}
	for _, tp := range []*float64{sig.TakeProfit2, sig.TakeProfit3} {
		if tp != nil {
			tps = append(tps, *tp)
		}
	}
	return j.append(Entry{
		Event:      EventOpened,
		SignalID:   sig.ID,
		Symbol:     sig.Symbol,
		Direction:  sig.Direction,
		Price:      sig.EntryPrice,
		Confidence: sig.Confidence,
		StopLoss:   sig.StopLoss,
		TakeProfit: tps,
		Reasons:    a.Reasons,
		Source:     a.PriceSource,
	})
}

// Closed records a signal leaving ACTIVE.
func (j *Journal) Closed(r types.TrackResult) error {
	pips := r.Pips
	return j.append(Entry{
		Event:     EventClosed,
		SignalID:  r.Signal.ID,
		Symbol:    r.Signal.Symbol,
		Direction: r.Signal.Direction,
		Price:     r.Price,
		Status:    r.Status,
		Level:     r.Level,
		Pips:      &pips,
		HeldMins:  int(r.Held.Minutes()),
	})
}

// Read returns the entries for day, reading the .gz copy if the plain file
// was compressed.
func (j *Journal) Read(day time.Time) ([]Entry, error) {
	p := j.dayFile(day)
	var r io.Reader
	f, err := os.Open(p)
	if os.IsNotExist(err) {
		f, err = os.Open(p + ".gz")
		if err != nil {
			return nil, err
		}
		defer f.Close()
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	} else if err != nil {
		return nil, err
	} else {
		defer f.Close()
		r = f
	}

	var out []Entry
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return out, fmt.Errorf("parse %s: %w", p, err)
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

// CompressOlder gzips day files last modified more than retentionDays ago
// and removes the originals.
func (j *Journal) CompressOlder(retentionDays int) error {
	if j == nil || retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(j.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			_ = os.Remove(gz)
			return nil
		}
		_ = os.Remove(p)
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		out.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
