package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"gold-signal-bot/internal/app"
	"gold-signal-bot/internal/logger"
	"gold-signal-bot/internal/notify"
	"gold-signal-bot/internal/scheduler"
	"gold-signal-bot/internal/store"
	"gold-signal-bot/internal/types"

	"github.com/joho/godotenv"
)

const usage = `Usage: signalctl [flags] <command>

Commands:
  stats              print win/loss statistics
  active             list ACTIVE signals
  list               list every cached signal
  generate           run one generation pass
  track              run one tracking pass
  review             run one expiry review
  recap              send the statistics recap
  prune              drop signals beyond cache.max_history
  journal            print journal entries for -day
  eod                write the per-symbol CSV summary for -day

Flags:
`

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	send := flag.Bool("send", false, "deliver messages through the configured notifier instead of logging them")
	asJSON := flag.Bool("json", false, "print JSON instead of a table")
	day := flag.String("day", "", "journal day (YYYY-MM-DD, default today UTC)")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	cmd := flag.Arg(0)

	_ = godotenv.Load()
	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath, !*send)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{ForceDryRun: !*send})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting: %v\n", err)
		os.Exit(1)
	}

	err = run(ctx, a, cmd, *asJSON, *day)
	if cerr := a.Close(ctx); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the file and, for local runs, forces dry-run so a missing
// Telegram token does not refuse startup.
func loadConfig(path string, dryRun bool) (*store.Config, error) {
	if dryRun {
		return store.LoadConfigWith(path, func(c *store.Config) { c.Delivery.DryRun = true })
	}
	return store.LoadConfig(path)
}

func run(ctx context.Context, a *app.App, cmd string, asJSON bool, day string) error {
	switch cmd {
	case "stats":
		st := a.Cache.GetStats()
		if asJSON {
			return printJSON(st)
		}
		fmt.Println(notify.FormatRecap(st, "SIGNAL STATS"))
		calls, limit := a.Provider.Usage()
		fmt.Printf("\nMarket data calls in window: %d/%d (mock mode: %v)\n", calls, limit, a.Provider.MockMode())
		return nil
	case "active":
		return printSignals(a.Cache.GetActive(), asJSON)
	case "list":
		return printSignals(a.Cache.GetAll(), asJSON)
	case "prune":
		n := a.Cache.Prune()
		fmt.Printf("Pruned %d signals, %d remain\n", n, a.Cache.Count())
		return nil
	case "journal":
		return printJournal(a, day, asJSON)
	case "eod":
		d, err := parseDay(day)
		if err != nil {
			return err
		}
		p, err := a.EOD.SummarizeDay(d)
		if err != nil {
			return err
		}
		if p == "" {
			fmt.Println("No journal entries for", d.Format("2006-01-02"))
			return nil
		}
		fmt.Println("EOD CSV written:", p)
		return nil
	default:
		task, err := scheduler.ParseTask(cmd)
		if err != nil {
			flag.Usage()
			return err
		}
		return a.Scheduler.RunOnce(ctx, task)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSignals(list []types.CachedSignal, asJSON bool) error {
	if asJSON {
		return printJSON(list)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSYMBOL\tDIR\tENTRY\tSL\tTP1\tCONF\tSTATUS\tCREATED\tPIPS")
	for _, s := range list {
		pips := "-"
		if s.PnLPips != nil {
			pips = fmt.Sprintf("%+.1f", *s.PnLPips)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%g\t%g\t%d%%\t%s\t%s\t%s\n",
			shortID(s.ID), s.Symbol, s.Direction, s.EntryPrice, s.StopLoss, s.TakeProfit1,
			s.Confidence, s.Status, s.CreatedAt.UTC().Format("2006-01-02 15:04"), pips)
	}
	return w.Flush()
}

func parseDay(day string) (time.Time, error) {
	if day == "" {
		return time.Now().UTC(), nil
	}
	d, err := time.Parse("2006-01-02", day)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -day %q: %w", day, err)
	}
	return d, nil
}

func printJournal(a *app.App, day string, asJSON bool) error {
	d, err := parseDay(day)
	if err != nil {
		return err
	}
	entries, err := a.Journal.Read(d)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(entries)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tEVENT\tID\tSYMBOL\tDIR\tPRICE\tSTATUS\tLEVEL")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%g\t%s\t%s\n",
			e.Time, e.Event, shortID(e.SignalID), e.Symbol, e.Direction, e.Price, e.Status, e.Level)
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
