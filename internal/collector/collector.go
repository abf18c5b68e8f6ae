package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"OptionSentinel/internal/calculator"
	"OptionSentinel/internal/logger"
	"OptionSentinel/internal/metrics"
	"OptionSentinel/internal/model"
)

// ErrNoQuotes is returned when an ingest collects no option quotes at all.
var ErrNoQuotes = errors.New("no option quotes collected")

// Options tune an ingest.
type Options struct {
	// Expirations is how many of the nearest expirations to pull per ticker.
	Expirations int
	// HistoryDays is the number of daily bars requested per ticker.
	HistoryDays int
	// RequestsPerSecond paces provider calls; zero means unlimited.
	RequestsPerSecond float64
	// Location is the zone the as-of timestamp is taken in.
	Location *time.Location
}

// Universe names the tickers an ingest covers.
type Universe struct {
	// Watchlist tickers are screened for puts.
	Watchlist []string
	// Holdings tickers are screened for covered calls.
	Holdings []model.Holding
}

// Collector orchestrates data fetching and snapshot derivation.
type Collector struct {
	Fetcher Fetcher
	opts    Options
	limiter *rate.Limiter
	now     func() time.Time
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, opts Options) *Collector {
	if opts.Expirations <= 0 {
		opts.Expirations = 3
	}
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = 365
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Collector{
		Fetcher: fetcher,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

// Ingest pulls history, snapshots and option chains for u. Tickers whose
// provider calls fail are logged and skipped; an ingest that ends with no
// quotes fails with ErrNoQuotes.
func (c *Collector) Ingest(ctx context.Context, u Universe) (*model.Inputs, error) {
	asOf := c.now().In(c.opts.Location)
	in := &model.Inputs{Holdings: u.Holdings, IngestedAt: asOf}

	for _, ticker := range union(u.Watchlist, HoldingTickers(u.Holdings)) {
		var bars []model.PriceObservation
		err := c.call(ctx, "bars", func() (err error) {
			bars, err = c.Fetcher.FetchDailyBars(ctx, ticker, c.opts.HistoryDays)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warnf("ingest: skipping history for %s: %v", ticker, err)
			continue
		}
		snap, err := BuildSnapshot(ticker, bars)
		if err != nil {
			logger.Warnf("ingest: no snapshot for %s: %v", ticker, err)
			continue
		}
		in.History = append(in.History, bars...)
		in.Snapshots = append(in.Snapshots, snap)
	}

	sides := []struct {
		side    model.Side
		tickers []string
	}{
		{model.SidePut, u.Watchlist},
		{model.SideCall, HoldingTickers(u.Holdings)},
	}
	for _, s := range sides {
		for _, ticker := range s.tickers {
			quotes, err := c.chains(ctx, ticker, s.side, asOf)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logger.Warnf("ingest: skipping %s chain for %s: %v", s.side, ticker, err)
				continue
			}
			in.Quotes = append(in.Quotes, quotes...)
		}
	}

	if len(in.Quotes) == 0 {
		return nil, fmt.Errorf("ingest via %s: %w", c.Fetcher.Name(), ErrNoQuotes)
	}
	logger.Infof("ingest via %s: %d quotes, %d snapshots, %d bars",
		c.Fetcher.Name(), len(in.Quotes), len(in.Snapshots), len(in.History))
	return in, nil
}

// chains fetches the nearest expirations of one side of a ticker's chain.
func (c *Collector) chains(ctx context.Context, ticker string, side model.Side, asOf time.Time) ([]model.OptionQuote, error) {
	var expirations []time.Time
	err := c.call(ctx, "expirations", func() (err error) {
		expirations, err = c.Fetcher.FetchExpirations(ctx, ticker)
		return err
	})
	if err != nil {
		return nil, err
	}

	today := calendarDate(asOf, asOf.Location())
	var quotes []model.OptionQuote
	taken := 0
	for _, exp := range expirations {
		if taken == c.opts.Expirations {
			break
		}
		if exp.Before(today) {
			continue
		}
		taken++

		var chain []model.OptionQuote
		err := c.call(ctx, "chain", func() (err error) {
			chain, err = c.Fetcher.FetchOptionChain(ctx, ticker, side, exp)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("expiration %s: %w", exp.Format("2006-01-02"), err)
		}
		for _, q := range chain {
			q.Ticker = ticker
			q.Side = side
			q.AsOf = asOf
			quotes = append(quotes, q)
		}
	}
	return quotes, nil
}

// call paces and counts one provider request.
func (c *Collector) call(ctx context.Context, endpoint string, fn func() error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	err := fn()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ProviderCalls.WithLabelValues(c.Fetcher.Name(), endpoint, status).Inc()
	return err
}

// BuildSnapshot derives a ticker's price position from its ascending daily bars.
func BuildSnapshot(ticker string, bars []model.PriceObservation) (model.TickerSnapshot, error) {
	if len(bars) == 0 {
		return model.TickerSnapshot{}, fmt.Errorf("no daily bars for %s", ticker)
	}
	last := bars[len(bars)-1]
	snap := model.TickerSnapshot{
		Ticker:          ticker,
		CurrentPrice:    last.Close,
		LatestCloseDate: last.Date,
	}
	if h, l, err := calculator.Calculate52WeekRange(bars); err != nil {
		logger.Warnf("52-week range for %s failed: %v, using current price", ticker, err)
		snap.Week52High = last.Close
		snap.Week52Low = last.Close
	} else {
		snap.Week52High = h
		snap.Week52Low = l
	}
	return snap, nil
}

func union(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range lists {
		for _, t := range l {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}
