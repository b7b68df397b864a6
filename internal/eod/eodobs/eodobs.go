package eodobs

import (
	"context"
	"time"

	"gold-signal-bot/internal/interfaces"
	"gold-signal-bot/internal/logger"
	"gold-signal-bot/internal/trace"
)

type observableEodSummarizer struct {
	summarizer interfaces.EodSummarizer
}

var _ interfaces.EodSummarizer = (*observableEodSummarizer)(nil)

func Wrap(summarizer interfaces.EodSummarizer) interfaces.EodSummarizer {
	return &observableEodSummarizer{summarizer: summarizer}
}

func (oes *observableEodSummarizer) SummarizeDay(day time.Time) (string, error) {
	ctx, span := trace.StartSpan(context.Background(), "eod.SummarizeDay")
	defer span.End()

	date := day.UTC().Format("2006-01-02")
	csvPath, err := oes.summarizer.SummarizeDay(day)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "EOD summary generation failed", err, "date", date)
		return "", err
	}
	if csvPath == "" {
		logger.InfoSkip(ctx, 1, "No journal entries for EOD summary", "date", date)
		return "", nil
	}

	logger.InfoSkip(ctx, 1, "EOD summary generated", "date", date, "csv_path", csvPath)
	return csvPath, nil
}
