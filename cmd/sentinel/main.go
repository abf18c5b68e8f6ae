package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"OptionSentinel/internal/api"
	"OptionSentinel/internal/collector"
	"OptionSentinel/internal/config"
	"OptionSentinel/internal/export"
	"OptionSentinel/internal/logger"
	"OptionSentinel/internal/metrics"
	"OptionSentinel/internal/notifier"
	"OptionSentinel/internal/recorder"
	"OptionSentinel/internal/scheduler"
	"OptionSentinel/internal/strategy"
	"OptionSentinel/internal/tracker"
)

// newTracker is replaced in tests.
var newTracker = tracker.New

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "option sentinel: %v\n", err)
		os.Exit(1)
	}
}

// run owns every deferred cleanup so that a failed -once run still flushes
// the tracker, closes the recorder and syncs the logger before exit.
func run(args []string) error {
	fs := flag.NewFlagSet("sentinel", flag.ContinueOnError)
	runOnce := fs.Bool("once", false, "ingest and screen once, then exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	logger.Infof("OptionSentinel starting (env %s)", cfg.App.Env)

	tr, err := newTracker(cfg.Sentry.DSN, cfg.Sentry.Environment)
	if err != nil {
		logger.Warnf("init sentry failed, errors will only be logged: %v", err)
		tr = tracker.Noop{}
	}
	defer tr.Flush(2 * time.Second)
	logger.SetErrorTracker(tr)
	metrics.Init()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	col := collector.NewCollector(newFetcher(cfg), collector.Options{
		Expirations:       cfg.Provider.Expirations,
		HistoryDays:       cfg.Provider.HistoryDays,
		RequestsPerSecond: cfg.Provider.RequestsPerSecond,
		Location:          loc,
	})
	logger.Infof("data source: %s", col.Fetcher.Name())

	rec, err := newRecorder(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init recorder: %w", err)
	}
	defer rec.Close()

	sides, _ := cfg.ScreenSides()
	policy, _ := strategy.ParseMissingSnapshotPolicy(cfg.Screen.MissingSnapshot)
	sched := scheduler.NewScheduler(ctx, scheduler.Config{
		WatchlistPath:   cfg.Watchlist.PutPath,
		HoldingsPath:    cfg.Watchlist.HoldingsPath,
		Sides:           sides,
		MissingSnapshot: policy,
		IngestCron:      cfg.Schedule.IngestCron,
		ScreenCron:      cfg.Schedule.ScreenCron,
	}, col, rec)
	sched.Tracker = tr
	sched.Exporter = &export.Exporter{Dir: cfg.Export.Dir}

	var tg *notifier.Telegram
	if cfg.Telegram.BotToken != "" {
		tg, err = notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		if err != nil {
			logger.Warnf("init telegram failed, reports disabled: %v", err)
		} else {
			sched.Notifier = tg
		}
	}

	if *runOnce {
		if err := sched.RunNow(ctx); err != nil {
			return fmt.Errorf("run: %w", err)
		}
		return nil
	}

	if err := sched.RegisterAll(); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	var wg sync.WaitGroup
	if tg != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tg.StartPolling(ctx, sched.HandleCommand)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := api.NewServer(rec).ListenAndServe(ctx, cfg.API.Addr); err != nil {
			logger.Errorf("read api: %v", err)
			cancel()
		}
	}()

	if os.Getenv("RUN_ON_START") == "true" {
		logger.Infof("RUN_ON_START enabled, running ingest and screen now")
		go func() { _ = sched.RunNow(ctx) }()
	}

	logger.Infof("OptionSentinel is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	logger.Infof("shutdown signal received, stopping...")
	wg.Wait()
	logger.Infof("OptionSentinel stopped")
	return nil
}

func newFetcher(cfg *config.Config) collector.Fetcher {
	switch cfg.Provider.Kind {
	case "rest":
		return collector.NewRESTFetcher(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Proxy)
	case "mock":
		return &collector.MockFetcher{Price: cfg.Provider.MockPrice}
	default:
		return collector.NewYahooFetcher(cfg.Provider.BaseURL, cfg.Proxy)
	}
}

func newRecorder(ctx context.Context, cfg *config.Config) (recorder.Recorder, error) {
	if cfg.Database.Driver == "memory" {
		logger.Warnf("using in-memory recorder, results are lost on restart")
		return recorder.NewMemoryRecorder(), nil
	}
	if cfg.Database.Driver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	rec, err := recorder.NewSQLRecorder(ctx, cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	return rec, nil
}
