package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OptionSentinel/internal/collector"
	"OptionSentinel/internal/export"
	"OptionSentinel/internal/model"
	"OptionSentinel/internal/recorder"
	"OptionSentinel/internal/strategy"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeNotifier) SendWithRetry(_ context.Context, text string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeNotifier) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeTracker struct {
	mu   sync.Mutex
	tags []map[string]string
}

func (f *fakeTracker) CaptureError(_ context.Context, _ error, tags map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags = append(f.tags, tags)
}

func (f *fakeTracker) Flush(time.Duration) {}

type fixture struct {
	sched    *Scheduler
	store    *recorder.MemoryRecorder
	fetcher  *collector.MockFetcher
	notifier *fakeNotifier
	tracker  *fakeTracker
	dir      string
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	watchlist := filepath.Join(dir, "watchlist.csv")
	holdings := filepath.Join(dir, "holdings.csv")
	writeFile(t, watchlist, "ticker\nAAA\nBBB\n")
	writeFile(t, holdings, "ticker,shares,avg_cost_basis,account_alias\nCCC,200,95.5,ira\n")

	fetcher := &collector.MockFetcher{Price: 100}
	store := recorder.NewMemoryRecorder()
	col := collector.NewCollector(fetcher, collector.Options{})

	s := NewScheduler(context.Background(), Config{
		WatchlistPath:   watchlist,
		HoldingsPath:    holdings,
		Sides:           []model.Side{model.SidePut, model.SideCall},
		MissingSnapshot: strategy.MissingDrop,
		IngestCron:      "0 30 13 * * 1-5",
		ScreenCron:      "0 0 14 * * 1-5",
	}, col, store)

	f := &fixture{
		sched:    s,
		store:    store,
		fetcher:  fetcher,
		notifier: &fakeNotifier{},
		tracker:  &fakeTracker{},
		dir:      dir,
	}
	s.Notifier = f.notifier
	s.Tracker = f.tracker
	s.Exporter = &export.Exporter{Dir: filepath.Join(dir, "export")}
	return f
}

func TestRunNowScreensEverySide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sched.RunNow(ctx))

	put, err := f.store.LoadResults(ctx, model.SidePut)
	require.NoError(t, err)
	assert.Len(t, put.Candidates, 2)
	assert.Len(t, put.Options, 2*strategy.TopPerTicker)
	assert.NotEmpty(t, put.RunID)

	call, err := f.store.LoadResults(ctx, model.SideCall)
	require.NoError(t, err)
	require.Len(t, call.Candidates, 1)
	assert.Equal(t, "CCC", call.Candidates[0].Ticker)
	assert.Len(t, call.Options, strategy.TopPerTicker)
	assert.NotEqual(t, put.RunID, call.RunID)

	assert.FileExists(t, filepath.Join(f.dir, "export", "put_candidate_options.csv"))
	assert.FileExists(t, filepath.Join(f.dir, "export", "call_candidate_options.csv"))

	msgs := f.notifier.messages()
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[0], "Ingest done")
	assert.Contains(t, msgs[1], "put screen")
	assert.Contains(t, msgs[2], "call screen")
	assert.Empty(t, f.tracker.tags)
}

func TestScreenIsRepeatable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.sched.Ingest(ctx)
	require.NoError(t, err)

	fixed := time.Date(2024, 3, 8, 14, 0, 0, 0, time.UTC)
	f.sched.now = func() time.Time { return fixed }
	f.sched.newID = func() string { return "run" }

	first, err := f.sched.Screen(ctx, model.SidePut)
	require.NoError(t, err)
	second, err := f.sched.Screen(ctx, model.SidePut)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stored, err := f.store.LoadResults(ctx, model.SidePut)
	require.NoError(t, err)
	assert.Equal(t, second, stored)
}

func TestScreenWithoutInputs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sched.Screen(ctx, model.SidePut)
	require.ErrorIs(t, err, strategy.ErrUpstreamUnavailable)

	_, err = f.store.LoadResults(ctx, model.SidePut)
	assert.ErrorIs(t, err, recorder.ErrNoResults)

	msgs := f.notifier.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "screen put failed")
	require.Len(t, f.tracker.tags, 1)
	assert.Equal(t, map[string]string{"job": "screen", "side": "put"}, f.tracker.tags[0])
}

func TestFailedScreenKeepsPreviousResults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sched.RunNow(ctx))
	before, err := f.store.LoadResults(ctx, model.SidePut)
	require.NoError(t, err)

	// Inputs with no put quotes make the next put screen fail.
	in, err := f.store.LoadInputs(ctx)
	require.NoError(t, err)
	var calls []model.OptionQuote
	for _, q := range in.Quotes {
		if q.Side == model.SideCall {
			calls = append(calls, q)
		}
	}
	in.Quotes = calls
	require.NoError(t, f.store.SaveInputs(ctx, in))

	_, err = f.sched.Screen(ctx, model.SidePut)
	require.ErrorIs(t, err, strategy.ErrUpstreamUnavailable)

	after, err := f.store.LoadResults(ctx, model.SidePut)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFailedIngestKeepsPreviousInputs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.sched.Ingest(ctx)
	require.NoError(t, err)

	boom := errors.New("provider down")
	f.fetcher.Errors = map[string]error{"AAA": boom, "BBB": boom, "CCC": boom}
	_, err = f.sched.Ingest(ctx)
	require.ErrorIs(t, err, collector.ErrNoQuotes)

	stored, err := f.store.LoadInputs(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(first.Quotes), len(stored.Quotes))
	assert.Equal(t, first.IngestedAt, stored.IngestedAt)
}

func TestIngestMissingWatchlist(t *testing.T) {
	f := newFixture(t)
	f.sched.cfg.WatchlistPath = filepath.Join(f.dir, "nope.csv")

	_, err := f.sched.Ingest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load watchlist")
}

func TestHandleCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, "No put screen has run yet.", f.sched.HandleCommand(ctx, "/summary"))
	assert.Contains(t, f.sched.HandleCommand(ctx, "/summary straddle"), "unknown option side")
	assert.Contains(t, f.sched.HandleCommand(ctx, "/help"), "/candidates")
	assert.Contains(t, f.sched.HandleCommand(ctx, "hello"), "/candidates")
	assert.Contains(t, f.sched.HandleCommand(ctx, "   "), "/candidates")

	assert.Empty(t, f.sched.HandleCommand(ctx, "/ingest"))
	assert.Empty(t, f.sched.HandleCommand(ctx, "/run@option_sentinel_bot call"))

	_, err := f.store.LoadResults(ctx, model.SideCall)
	require.NoError(t, err)

	reply := f.sched.HandleCommand(ctx, "/summary call")
	assert.Contains(t, reply, "<b>call summary</b>")
	assert.Contains(t, reply, "Tickers screened: 1")
	assert.True(t, strings.HasPrefix(f.sched.HandleCommand(ctx, "/candidates CALL"), "🎯 <b>call candidates</b>"))
}

func TestRegisterAllRejectsBadCron(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sched.RegisterAll())

	f.sched.cfg.ScreenCron = "not a cron"
	assert.Error(t, f.sched.RegisterAll())
}
