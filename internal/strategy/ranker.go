package strategy

import (
	"sort"

	"OptionSentinel/internal/calculator"
	"OptionSentinel/internal/logger"
	"OptionSentinel/internal/model"
)

// TopPerTicker caps the shortlist for each ticker.
const TopPerTicker = 3

// RankStats counts quotes that did not reach the ranking.
type RankStats struct {
	Invalid   int
	Unmatched int
}

type positioned struct {
	pos int
	opt model.RankedOption
}

// Rank computes metrics for every quote and keeps the best TopPerTicker
// contracts per ticker by annualized return. Only tickers present in
// candidates are kept; the map value becomes PutCandidateInd. Groups come
// out in order of first appearance in quotes.
func Rank(quotes []model.OptionQuote, candidates map[string]bool) ([]model.RankedOption, RankStats) {
	var stats RankStats
	groups := make(map[string][]positioned)
	var order []string

	for i, q := range quotes {
		m := calculator.ComputeMetrics(q)
		if !m.Valid {
			stats.Invalid++
			logger.Debugf("dropping %s %s strike=%s exp=%s: %s",
				q.Ticker, q.Side, q.Strike, q.ExpirationDate.Format("2006-01-02"), m.Invalid)
			continue
		}
		flag, ok := candidates[q.Ticker]
		if !ok {
			stats.Unmatched++
			continue
		}
		if _, seen := groups[q.Ticker]; !seen {
			order = append(order, q.Ticker)
		}
		groups[q.Ticker] = append(groups[q.Ticker], positioned{
			pos: i,
			opt: model.RankedOption{OptionQuote: q, OptionMetrics: m, PutCandidateInd: flag},
		})
	}

	var ranked []model.RankedOption
	for _, ticker := range order {
		g := groups[ticker]
		sort.Slice(g, func(a, b int) bool { return ahead(g[a], g[b]) })
		if len(g) > TopPerTicker {
			g = g[:TopPerTicker]
		}
		for _, p := range g {
			ranked = append(ranked, p.opt)
		}
	}
	if stats.Invalid > 0 {
		logger.Infof("rank: %d invalid quotes excluded", stats.Invalid)
	}
	return ranked, stats
}

// ahead orders by annualized return desc, expiration asc, strike asc, input position.
func ahead(a, b positioned) bool {
	if c := a.opt.AnnualizedReturn.Cmp(b.opt.AnnualizedReturn); c != 0 {
		return c > 0
	}
	if !a.opt.ExpirationDate.Equal(b.opt.ExpirationDate) {
		return a.opt.ExpirationDate.Before(b.opt.ExpirationDate)
	}
	if c := a.opt.Strike.Cmp(b.opt.Strike); c != 0 {
		return c < 0
	}
	return a.pos < b.pos
}
