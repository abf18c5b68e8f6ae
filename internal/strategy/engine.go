package strategy

import (
	"errors"
	"fmt"
	"time"

	"OptionSentinel/internal/calculator"
	"OptionSentinel/internal/logger"
	"OptionSentinel/internal/model"
)

var (
	// ErrMissingSnapshot is returned under MissingFail when a quoted ticker has no snapshot.
	ErrMissingSnapshot = errors.New("quoted ticker has no snapshot")
	// ErrUpstreamUnavailable means the inputs for a run are absent or empty.
	ErrUpstreamUnavailable = errors.New("upstream data unavailable")
)

// MissingSnapshotPolicy decides what a quoted ticker without a snapshot does to a run.
type MissingSnapshotPolicy string

const (
	MissingDrop MissingSnapshotPolicy = "drop"
	MissingFail MissingSnapshotPolicy = "fail"
)

// ParseMissingSnapshotPolicy defaults to MissingDrop for an empty string.
func ParseMissingSnapshotPolicy(s string) (MissingSnapshotPolicy, error) {
	switch MissingSnapshotPolicy(s) {
	case "", MissingDrop:
		return MissingDrop, nil
	case MissingFail:
		return MissingFail, nil
	default:
		return "", fmt.Errorf("unknown missing snapshot policy %q", s)
	}
}

// Options parameterize one screen run.
type Options struct {
	Side            model.Side
	RunID           string
	RanAt           time.Time
	MissingSnapshot MissingSnapshotPolicy
}

// Screen runs the full scoring pipeline over in for one side. It reads
// nothing but its arguments, so equal inputs give equal results.
func Screen(in *model.Inputs, opts Options) (*model.ScreenResult, error) {
	if in == nil {
		return nil, fmt.Errorf("screen %s: %w", opts.Side, ErrUpstreamUnavailable)
	}

	var quotes []model.OptionQuote
	for _, q := range in.Quotes {
		if q.Side == opts.Side {
			quotes = append(quotes, q)
		}
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("screen %s: no option quotes: %w", opts.Side, ErrUpstreamUnavailable)
	}

	snapshots := make(map[string]model.TickerSnapshot, len(in.Snapshots))
	for _, s := range in.Snapshots {
		snapshots[s.Ticker] = s
	}
	history := make(map[string][]model.PriceObservation)
	for _, obs := range in.History {
		history[obs.Ticker] = append(history[obs.Ticker], obs)
	}

	res := &model.ScreenResult{
		RunID: opts.RunID,
		Side:  opts.Side,
		RanAt: opts.RanAt,
	}
	res.Stats.Quotes = len(quotes)

	flags := make(map[string]bool)
	seen := make(map[string]bool)
	for _, q := range quotes {
		if seen[q.Ticker] {
			continue
		}
		seen[q.Ticker] = true
		res.Stats.Tickers++

		snap, ok := snapshots[q.Ticker]
		if !ok {
			if opts.MissingSnapshot == MissingFail {
				return nil, fmt.Errorf("screen %s: %s: %w", opts.Side, q.Ticker, ErrMissingSnapshot)
			}
			res.Stats.MissingSnapshots++
			logger.Warnf("screen %s: no snapshot for %s, excluding its quotes", opts.Side, q.Ticker)
			continue
		}

		sig := calculator.EvaluateMomentum(q.Ticker, snap.LatestCloseDate, snap.CurrentPrice, history[q.Ticker])
		ci := Score(snap, sig)
		res.Candidates = append(res.Candidates, ci)
		flags[q.Ticker] = ci.PutCandidateInd
		if ci.PutCandidateInd {
			res.Stats.Candidates++
		}
	}

	ranked, rs := Rank(quotes, flags)
	for i := range ranked {
		snap := snapshots[ranked[i].Ticker]
		ranked[i].PriceStrikeDiscount = priceStrikeDiscount(snap.CurrentPrice, ranked[i].Strike.InexactFloat64())
	}
	res.Options = ranked
	res.Stats.InvalidQuotes = rs.Invalid
	res.Stats.Ranked = len(ranked)

	logger.Infof("screen %s: %d quotes, %d tickers, %d candidates, %d ranked, %d invalid, %d missing snapshots",
		opts.Side, res.Stats.Quotes, res.Stats.Tickers, res.Stats.Candidates,
		res.Stats.Ranked, res.Stats.InvalidQuotes, res.Stats.MissingSnapshots)
	return res, nil
}

// priceStrikeDiscount is how far below the current price the strike sits, in percent.
func priceStrikeDiscount(current, strike float64) float64 {
	if current <= 0 {
		return 0
	}
	return (current - strike) / current * 100
}
