package interfaces

import "time"

// EodSummarizer turns one journal day into a per-symbol CSV report.
type EodSummarizer interface {
	// SummarizeDay returns the CSV path, or "" when the day has no entries.
	SummarizeDay(day time.Time) (csvPath string, err error)
}
