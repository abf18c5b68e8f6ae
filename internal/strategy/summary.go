package strategy

import (
	"sort"

	"OptionSentinel/internal/model"
)

// OptionFilter bounds the dashboard view. Ranges are inclusive.
type OptionFilter struct {
	MinDays     int
	MaxDays     int
	MinDiscount float64
	MaxDiscount float64
}

// DefaultFilter passes every out-of-the-money put up to a year out.
var DefaultFilter = OptionFilter{MinDays: 0, MaxDays: 365, MinDiscount: 0, MaxDiscount: 100}

// DefaultFilterFor returns the dashboard default for side. Out-of-the-money
// calls strike above the current price, so their discount is negative.
func DefaultFilterFor(side model.Side) OptionFilter {
	if side == model.SideCall {
		return OptionFilter{MinDays: 0, MaxDays: 365, MinDiscount: -100, MaxDiscount: 0}
	}
	return DefaultFilter
}

// Summarize computes the headline numbers for a result.
func Summarize(res *model.ScreenResult) model.Summary {
	s := model.Summary{
		TotalTickers: len(res.Candidates),
		TotalOptions: len(res.Options),
	}
	for _, c := range res.Candidates {
		if c.PutCandidateInd {
			s.Candidates++
		}
	}
	if len(res.Options) > 0 {
		var sum float64
		for _, o := range res.Options {
			sum += o.AnnualizedReturn.InexactFloat64()
		}
		s.AvgAnnualizedReturn = sum / float64(len(res.Options))
	}
	return s
}

// FilterOptions keeps contracts inside f, then re-applies the per-ticker cap.
// Output is ordered by annualized return descending.
func FilterOptions(options []model.RankedOption, f OptionFilter) []model.RankedOption {
	var kept []model.RankedOption
	for _, o := range options {
		if o.DaysTilStrike < f.MinDays || o.DaysTilStrike > f.MaxDays {
			continue
		}
		if o.PriceStrikeDiscount < f.MinDiscount || o.PriceStrikeDiscount > f.MaxDiscount {
			continue
		}
		kept = append(kept, o)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].AnnualizedReturn.GreaterThan(kept[j].AnnualizedReturn)
	})

	perTicker := make(map[string]int)
	out := kept[:0]
	for _, o := range kept {
		if perTicker[o.Ticker] >= TopPerTicker {
			continue
		}
		perTicker[o.Ticker]++
		out = append(out, o)
	}
	return out
}
