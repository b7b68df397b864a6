package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"gold-signal-bot/internal/interfaces"
	"gold-signal-bot/internal/logger"
	"gold-signal-bot/internal/metrics"
	"gold-signal-bot/internal/notify"
	"gold-signal-bot/internal/store"
	"gold-signal-bot/internal/tradelog"
)

// Task names a unit of scheduled work.
type Task string

const (
	TaskGenerate Task = "generate"
	TaskTrack    Task = "track"
	TaskReview   Task = "review"
	TaskRecap    Task = "recap"
)

var allTasks = []Task{TaskGenerate, TaskTrack, TaskReview, TaskRecap}

// ParseTask maps a name to a Task.
func ParseTask(name string) (Task, error) {
	for _, t := range allTasks {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown task %q", name)
}

// Intervals between runs. A zero or negative Recap disables the recap.
type Intervals struct {
	Generate time.Duration
	Track    time.Duration
	Review   time.Duration
	Recap    time.Duration
}

type Deps struct {
	Config    *store.Config
	Generator interfaces.SignalGenerator
	Tracker   interfaces.Tracker
	Store     interfaces.SignalStore
	Notifier  interfaces.Notifier
	Journal   *tradelog.Journal
	EOD       interfaces.EodSummarizer
	Metrics   *metrics.Metrics
	Health    *metrics.Health
}

// Scheduler runs every task from one goroutine, so tasks never overlap.
type Scheduler struct {
	Deps
	intervals  Intervals
	runOnStart bool
	now        func() time.Time
}

func New(d Deps) *Scheduler {
	cfg := d.Config
	return &Scheduler{
		Deps: d,
		intervals: Intervals{
			Generate: minutes(cfg.Intervals.GenerationMinutes),
			Track:    minutes(cfg.Intervals.TrackerMinutes),
			Review:   minutes(cfg.Intervals.ReviewMinutes),
			Recap:    minutes(cfg.Intervals.RecapMinutes),
		},
		runOnStart: cfg.Scheduler.RunOnStart,
		now:        time.Now,
	}
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	logger.Info(ctx, "Scheduler started",
		"generate_every", s.intervals.Generate.String(),
		"track_every", s.intervals.Track.String(),
		"review_every", s.intervals.Review.String(),
		"recap_every", s.intervals.Recap.String(),
	)

	genTick := time.NewTicker(s.intervals.Generate)
	defer genTick.Stop()
	trackTick := time.NewTicker(s.intervals.Track)
	defer trackTick.Stop()
	reviewTick := time.NewTicker(s.intervals.Review)
	defer reviewTick.Stop()

	// nil channel blocks forever, which disables the case
	var recapC <-chan time.Time
	if s.intervals.Recap > 0 {
		recapTick := time.NewTicker(s.intervals.Recap)
		defer recapTick.Stop()
		recapC = recapTick.C
	}

	if s.runOnStart {
		s.RunOnce(ctx, TaskGenerate)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Scheduler stopping")
			return ctx.Err()
		case <-genTick.C:
			s.RunOnce(ctx, TaskGenerate)
		case <-trackTick.C:
			s.RunOnce(ctx, TaskTrack)
		case <-reviewTick.C:
			s.RunOnce(ctx, TaskReview)
		case <-recapC:
			s.RunOnce(ctx, TaskRecap)
		}
	}
}

// RunOnce runs task synchronously. A panic inside the task is recovered and
// reported as an error.
func (s *Scheduler) RunOnce(ctx context.Context, task Task) (err error) {
	op := logger.StartOperation(ctx, "scheduler."+string(task), "task", string(task))
	ctx = op.GetContext()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", task, r)
			logger.Error(ctx, "Task panicked", "task", string(task), "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
		s.Metrics.TaskRun(string(task), err)
		s.Health.MarkRun(string(task), s.now())
		if err != nil {
			op.EndWithError(err)
			return
		}
		op.End()
	}()

	switch task {
	case TaskGenerate:
		return s.generate(ctx)
	case TaskTrack:
		return s.track(ctx)
	case TaskReview:
		return s.review(ctx)
	case TaskRecap:
		return s.recap(ctx)
	default:
		return fmt.Errorf("unknown task %q", task)
	}
}

func (s *Scheduler) generate(ctx context.Context) error {
	gens, err := s.Generator.GenerateAll(ctx)
	for _, g := range gens {
		s.Store.Add(g.Signal)
		if jerr := s.Journal.Opened(g.Signal, g.Analysis); jerr != nil {
			logger.Warn(ctx, "Failed to journal signal", "signal_id", g.Signal.ID, "error", jerr)
		}
		in := s.Config.Instrument(g.Signal.Symbol)
		s.send(ctx, notify.FormatSignal(g.Signal, in), "signal_id", g.Signal.ID)
	}
	logger.Info(ctx, "Generation finished", "signals", len(gens))
	return err
}

func (s *Scheduler) track(ctx context.Context) error {
	results := s.Tracker.CheckAll(ctx)
	for _, r := range results {
		in := s.Config.Instrument(r.Signal.Symbol)
		s.send(ctx, notify.FormatOutcome(r, in), "signal_id", r.Signal.ID)
	}
	if len(results) > 0 {
		logger.Info(ctx, "Tracking finished", "closed", len(results))
	}
	return ctx.Err()
}

func (s *Scheduler) review(ctx context.Context) error {
	results := s.Tracker.ReviewExpired(ctx)
	for _, r := range results {
		in := s.Config.Instrument(r.Signal.Symbol)
		s.send(ctx, notify.FormatExpired(r, in), "signal_id", r.Signal.ID)
	}
	logger.Info(ctx, "Expiry review finished", "expired", len(results))
	return ctx.Err()
}

// recap sends the running stats and writes the journal CSV for the
// current UTC day.
func (s *Scheduler) recap(ctx context.Context) error {
	if s.EOD != nil {
		if _, err := s.EOD.SummarizeDay(s.now()); err != nil {
			logger.Warn(ctx, "EOD summary failed", "error", err)
		}
	}

	st := s.Store.GetStats()
	if err := s.Notifier.Send(ctx, notify.FormatRecap(st, "DAILY RECAP")); err != nil {
		return fmt.Errorf("send recap: %w", err)
	}
	return nil
}

// send delivers text once. Failures are logged and otherwise ignored.
func (s *Scheduler) send(ctx context.Context, text string, fields ...any) {
	if err := s.Notifier.Send(ctx, text); err != nil {
		logger.ErrorWithErr(ctx, "Notification failed", err, fields...)
	}
}
