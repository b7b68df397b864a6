package eod

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gold-signal-bot/internal/interfaces"
	"gold-signal-bot/internal/tradelog"
	"gold-signal-bot/internal/types"
)

type aggRow struct {
	Symbol  string
	Opened  int
	Wins    int
	Losses  int
	Expired int
	NetPips float64
}

type eodSummarizer struct {
	journal *tradelog.Journal
}

var _ interfaces.EodSummarizer = (*eodSummarizer)(nil)

func NewSummarizer(j *tradelog.Journal) interfaces.EodSummarizer {
	return &eodSummarizer{journal: j}
}

// CSVPath is where the report for day is written.
func CSVPath(dir string, day time.Time) string {
	return filepath.Join(dir, "eod", day.UTC().Format("2006-01-02")+".csv")
}

func (s *eodSummarizer) SummarizeDay(day time.Time) (string, error) {
	entries, err := s.journal.Read(day.UTC())
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	aggs := aggregate(entries)
	if len(aggs) == 0 {
		return "", nil
	}

	outPath := CSVPath(s.journal.Dir(), day)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if err := writeCSV(out, aggs); err != nil {
		return "", err
	}
	return outPath, out.Close()
}

func aggregate(entries []tradelog.Entry) []*aggRow {
	bySymbol := map[string]*aggRow{}
	for _, e := range entries {
		row := bySymbol[e.Symbol]
		if row == nil {
			row = &aggRow{Symbol: e.Symbol}
			bySymbol[e.Symbol] = row
		}
		switch e.Event {
		case tradelog.EventOpened:
			row.Opened++
		case tradelog.EventClosed:
			switch {
			case e.Status.IsWin():
				row.Wins++
			case e.Status == types.StatusLossSL:
				row.Losses++
			case e.Status == types.StatusExpired:
				row.Expired++
			}
			if e.Pips != nil {
				row.NetPips += *e.Pips
			}
		}
	}

	rows := make([]*aggRow, 0, len(bySymbol))
	for _, r := range bySymbol {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	return rows
}

func writeCSV(f *os.File, rows []*aggRow) error {
	w := csv.NewWriter(f)
	if err := w.Write([]string{"symbol", "opened", "wins", "losses", "expired", "net_pips"}); err != nil {
		return err
	}
	var total aggRow
	for _, r := range rows {
		if err := w.Write(record(r.Symbol, *r)); err != nil {
			return err
		}
		total.Opened += r.Opened
		total.Wins += r.Wins
		total.Losses += r.Losses
		total.Expired += r.Expired
		total.NetPips += r.NetPips
	}
	if err := w.Write(record("TOTAL", total)); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func record(label string, r aggRow) []string {
	return []string{
		label,
		strconv.Itoa(r.Opened),
		strconv.Itoa(r.Wins),
		strconv.Itoa(r.Losses),
		strconv.Itoa(r.Expired),
		fmt.Sprintf("%.1f", r.NetPips),
	}
}
