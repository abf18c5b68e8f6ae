package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"OptionSentinel/internal/collector"
	"OptionSentinel/internal/logger"
	"OptionSentinel/internal/metrics"
	"OptionSentinel/internal/model"
	"OptionSentinel/internal/notifier"
	"OptionSentinel/internal/recorder"
	"OptionSentinel/internal/strategy"
	"OptionSentinel/internal/tracker"
)

const (
	jobIngest = "ingest"
	jobScreen = "screen"
)

// Notifier delivers reports to the operator.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Exporter publishes a finished run outside the database.
type Exporter interface {
	Export(res *model.ScreenResult) (string, error)
}

// Config is the scheduling and universe part of the app config.
type Config struct {
	WatchlistPath   string
	HoldingsPath    string
	Sides           []model.Side
	MissingSnapshot strategy.MissingSnapshotPolicy
	IngestCron      string
	ScreenCron      string
}

// Scheduler runs the ingest and screen jobs on cron and on demand.
type Scheduler struct {
	Cron      *cron.Cron
	Collector *collector.Collector
	Recorder  recorder.Recorder
	// Notifier and Exporter are optional.
	Notifier Notifier
	Exporter Exporter
	Tracker  tracker.Tracker
	Ctx      context.Context

	cfg Config
	// mu serializes jobs so a manual run never overlaps a scheduled one.
	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, cfg Config, col *collector.Collector, rec recorder.Recorder) *Scheduler {
	if len(cfg.Sides) == 0 {
		cfg.Sides = []model.Side{model.SidePut}
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Collector: col,
		Recorder:  rec,
		Tracker:   tracker.Noop{},
		Ctx:       ctx,
		cfg:       cfg,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// RegisterAll registers the ingest and screen jobs.
func (s *Scheduler) RegisterAll() error {
	if _, err := s.Cron.AddFunc(s.cfg.IngestCron, s.ingestTask); err != nil {
		return fmt.Errorf("register ingest task: %w", err)
	}
	if _, err := s.Cron.AddFunc(s.cfg.ScreenCron, s.screenTask); err != nil {
		return fmt.Errorf("register screen task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	logger.Infof("scheduler started (ingest %q, screen %q)", s.cfg.IngestCron, s.cfg.ScreenCron)
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	logger.Infof("scheduler stopped")
}

// RunNow ingests and then screens every configured side.
func (s *Scheduler) RunNow(ctx context.Context) error {
	if _, err := s.Ingest(ctx); err != nil {
		return err
	}
	var errs []error
	for _, side := range s.cfg.Sides {
		if _, err := s.Screen(ctx, side); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) ingestTask() {
	_, _ = s.Ingest(s.Ctx)
}

func (s *Scheduler) screenTask() {
	for _, side := range s.cfg.Sides {
		_, _ = s.Screen(s.Ctx, side)
	}
}

// Ingest loads the universe sheets, pulls market data and replaces the
// stored inputs. A failed ingest leaves the previous inputs in place.
func (s *Scheduler) Ingest(ctx context.Context) (in *model.Inputs, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.now()
	defer func() {
		metrics.ObserveRun(jobIngest, "all", started, err)
		if err != nil {
			s.fail(ctx, jobIngest, "all", err)
		}
	}()

	u, err := s.universe()
	if err != nil {
		return nil, err
	}
	in, err = s.Collector.Ingest(ctx, u)
	if err != nil {
		return nil, err
	}
	if err := s.Recorder.SaveInputs(ctx, in); err != nil {
		return nil, fmt.Errorf("save inputs: %w", err)
	}
	logger.Infof("ingest done: %d quotes, %d snapshots", len(in.Quotes), len(in.Snapshots))
	s.trySend(ctx, notifier.FormatIngestReport(in, s.now().Sub(started)))
	return in, nil
}

func (s *Scheduler) universe() (collector.Universe, error) {
	var u collector.Universe
	if s.cfg.WatchlistPath != "" {
		tickers, err := collector.LoadWatchlist(s.cfg.WatchlistPath)
		if err != nil {
			return u, fmt.Errorf("load watchlist: %w", err)
		}
		u.Watchlist = tickers
	}
	if s.cfg.HoldingsPath != "" {
		holdings, err := collector.LoadHoldings(s.cfg.HoldingsPath)
		if err != nil {
			return u, fmt.Errorf("load holdings: %w", err)
		}
		u.Holdings = holdings
	}
	return u, nil
}

// Screen recomputes one side from the stored inputs and replaces its
// results. On any failure the previous results stay untouched.
func (s *Scheduler) Screen(ctx context.Context, side model.Side) (res *model.ScreenResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.now()
	defer func() {
		metrics.ObserveRun(jobScreen, string(side), started, err)
		if err != nil {
			s.fail(ctx, jobScreen, string(side), err)
		}
	}()

	in, err := s.Recorder.LoadInputs(ctx)
	if errors.Is(err, recorder.ErrNoInputs) {
		return nil, fmt.Errorf("screen %s: %w", side, strategy.ErrUpstreamUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("load inputs: %w", err)
	}

	res, err = strategy.Screen(in, strategy.Options{
		Side:            side,
		RunID:           s.newID(),
		RanAt:           started,
		MissingSnapshot: s.cfg.MissingSnapshot,
	})
	if err != nil {
		return nil, err
	}
	if err := s.Recorder.ReplaceResults(ctx, res); err != nil {
		return nil, fmt.Errorf("replace %s results: %w", side, err)
	}
	observeRows(res)

	if s.Exporter != nil {
		if path, err := s.Exporter.Export(res); err != nil {
			logger.Warnf("export %s results: %v", side, err)
		} else {
			logger.Infof("exported %s results to %s", side, path)
		}
	}
	s.trySend(ctx, notifier.FormatScreenReport(res, strategy.Summarize(res)))
	return res, nil
}

func observeRows(res *model.ScreenResult) {
	side := string(res.Side)
	st := res.Stats
	metrics.ScreenRows.WithLabelValues(side, "quotes").Set(float64(st.Quotes))
	metrics.ScreenRows.WithLabelValues(side, "tickers").Set(float64(st.Tickers))
	metrics.ScreenRows.WithLabelValues(side, "candidates").Set(float64(st.Candidates))
	metrics.ScreenRows.WithLabelValues(side, "ranked").Set(float64(st.Ranked))
	metrics.ScreenRows.WithLabelValues(side, "invalid").Set(float64(st.InvalidQuotes))
	metrics.ScreenRows.WithLabelValues(side, "missing_snapshot").Set(float64(st.MissingSnapshots))
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	// Group chats append the bot name: /run@option_sentinel_bot
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")

	side := s.cfg.Sides[0]
	if len(fields) > 1 {
		parsed, err := model.ParseSide(fields[1])
		if err != nil {
			return err.Error()
		}
		side = parsed
	}

	switch name {
	// Job outcomes reach the chat through the notifier.
	case "/ingest":
		_, _ = s.Ingest(ctx)
		return ""
	case "/run":
		_, _ = s.Screen(ctx, side)
		return ""
	case "/candidates":
		res, err := s.Recorder.LoadResults(ctx, side)
		if err != nil {
			return s.lookupError(side, err)
		}
		return notifier.FormatCandidates(res)
	case "/summary":
		res, err := s.Recorder.LoadResults(ctx, side)
		if err != nil {
			return s.lookupError(side, err)
		}
		return notifier.FormatSummary(side, strategy.Summarize(res), res.RanAt)
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) lookupError(side model.Side, err error) string {
	if errors.Is(err, recorder.ErrNoResults) {
		return fmt.Sprintf("No %s screen has run yet.", side)
	}
	logger.Warnf("load %s results: %v", side, err)
	return fmt.Sprintf("Could not load %s results.", side)
}

// fail reports a failed job to the log, the tracker and the chat.
func (s *Scheduler) fail(ctx context.Context, job, side string, err error) {
	logger.Get().SugaredLogger.Errorw("job failed", "job", job, "side", side, "error", err)
	s.Tracker.CaptureError(ctx, err, map[string]string{"job": job, "side": side})
	s.trySend(ctx, notifier.FormatFailure(job+" "+side, err))
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(ctx, text, 3); err != nil {
		logger.Warnf("send notification: %v", err)
	}
}
