package recorder

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"OptionSentinel/internal/model"
)

// Dates are stored as ISO dates, timestamps as fixed-width RFC 3339 text so
// they sort lexically and keep their zone offset.
const (
	dateLayout = "2006-01-02"
	tsLayout   = "2006-01-02T15:04:05.000000000Z07:00"
)

func formatDate(t time.Time) string { return t.Format(dateLayout) }

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func formatTS(t time.Time) string { return t.Format(tsLayout) }

func parseTS(s string) (time.Time, error) {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type quoteRow struct {
	Pos               int             `db:"pos"`
	Ticker            string          `db:"ticker"`
	Side              string          `db:"side"`
	Strike            decimal.Decimal `db:"strike"`
	Bid               decimal.Decimal `db:"bid"`
	Ask               decimal.Decimal `db:"ask"`
	ImpliedVolatility float64         `db:"implied_volatility"`
	ExpDate           string          `db:"exp_date"`
	AsOfDate          string          `db:"as_of_date"`
}

func toQuoteRow(pos int, q model.OptionQuote) quoteRow {
	return quoteRow{
		Pos:               pos,
		Ticker:            q.Ticker,
		Side:              string(q.Side),
		Strike:            q.Strike,
		Bid:               q.Bid,
		Ask:               q.Ask,
		ImpliedVolatility: q.ImpliedVolatility,
		ExpDate:           formatDate(q.ExpirationDate),
		AsOfDate:          formatTS(q.AsOf),
	}
}

func (r quoteRow) model() (model.OptionQuote, error) {
	exp, err := parseDate(r.ExpDate)
	if err != nil {
		return model.OptionQuote{}, err
	}
	asOf, err := parseTS(r.AsOfDate)
	if err != nil {
		return model.OptionQuote{}, err
	}
	return model.OptionQuote{
		Ticker:            r.Ticker,
		Side:              model.Side(r.Side),
		Strike:            r.Strike,
		Bid:               r.Bid,
		Ask:               r.Ask,
		ImpliedVolatility: r.ImpliedVolatility,
		ExpirationDate:    exp,
		AsOf:              asOf,
	}, nil
}

type histRow struct {
	Pos      int     `db:"pos"`
	Ticker   string  `db:"ticker"`
	HistDate string  `db:"hist_date"`
	Open     float64 `db:"open"`
	High     float64 `db:"high"`
	Low      float64 `db:"low"`
	Close    float64 `db:"close"`
}

type dimRow struct {
	Pos             int     `db:"pos"`
	Ticker          string  `db:"ticker"`
	CurrentPrice    float64 `db:"current_price"`
	Week52High      float64 `db:"week_52_high"`
	Week52Low       float64 `db:"week_52_low"`
	LatestCloseDate string  `db:"latest_close_date"`
}

func toDimRow(pos int, s model.TickerSnapshot) dimRow {
	return dimRow{
		Pos:             pos,
		Ticker:          s.Ticker,
		CurrentPrice:    s.CurrentPrice,
		Week52High:      s.Week52High,
		Week52Low:       s.Week52Low,
		LatestCloseDate: formatDate(s.LatestCloseDate),
	}
}

func (r dimRow) model() (model.TickerSnapshot, error) {
	d, err := parseDate(r.LatestCloseDate)
	if err != nil {
		return model.TickerSnapshot{}, err
	}
	return model.TickerSnapshot{
		Ticker:          r.Ticker,
		CurrentPrice:    r.CurrentPrice,
		Week52High:      r.Week52High,
		Week52Low:       r.Week52Low,
		LatestCloseDate: d,
	}, nil
}

type holdingRow struct {
	Pos          int     `db:"pos"`
	Ticker       string  `db:"ticker"`
	Shares       int     `db:"shares"`
	AvgCostBasis float64 `db:"avg_cost_basis"`
	AccountAlias string  `db:"account_alias"`
}

// Result rows carry no run id; screen_runs holds it so identical runs
// leave identical result tables.
type candidateRow struct {
	dimRow
	LowerQrtBound    float64 `db:"lower_qrt_52wk_bound"`
	LowerQrtInd      bool    `db:"lower_qrt_ind"`
	UpVsPriDayVs8Day bool    `db:"up_vs_pri_day_vs_8day"`
	UpVsPriWkVs8Day  bool    `db:"up_vs_pri_wk_vs_8day"`
	PutCandidateInd  bool    `db:"put_candidate_ind"`
}

// candidateArgs flattens a candidate for insertion; booleans go in as 0/1.
func candidateArgs(pos int, c model.CandidateIndicator) map[string]interface{} {
	d := toDimRow(pos, c.TickerSnapshot)
	return map[string]interface{}{
		"pos":                   d.Pos,
		"ticker":                d.Ticker,
		"current_price":         d.CurrentPrice,
		"week_52_high":          d.Week52High,
		"week_52_low":           d.Week52Low,
		"latest_close_date":     d.LatestCloseDate,
		"lower_qrt_52wk_bound":  c.LowerQrtBound,
		"lower_qrt_ind":         boolInt(c.LowerQrtInd),
		"up_vs_pri_day_vs_8day": boolInt(c.UpVsPriDayVs8Day),
		"up_vs_pri_wk_vs_8day":  boolInt(c.UpVsPriWkVs8Day),
		"put_candidate_ind":     boolInt(c.PutCandidateInd),
	}
}

func (r candidateRow) model() (model.CandidateIndicator, error) {
	snap, err := r.dimRow.model()
	if err != nil {
		return model.CandidateIndicator{}, err
	}
	return model.CandidateIndicator{
		TickerSnapshot:   snap,
		LowerQrtBound:    r.LowerQrtBound,
		LowerQrtInd:      r.LowerQrtInd,
		UpVsPriDayVs8Day: r.UpVsPriDayVs8Day,
		UpVsPriWkVs8Day:  r.UpVsPriWkVs8Day,
		PutCandidateInd:  r.PutCandidateInd,
	}, nil
}

type optionRow struct {
	quoteRow
	Mid                 decimal.Decimal `db:"mid"`
	UpfrontPremium      decimal.Decimal `db:"upfront_premium"`
	DaysTilStrike       int             `db:"days_til_strike"`
	MoneyAside          decimal.Decimal `db:"money_aside"`
	RawReturn           decimal.Decimal `db:"raw_return"`
	AnnualizedReturn    decimal.Decimal `db:"annualized_return"`
	PutCandidateInd     bool            `db:"put_candidate_ind"`
	PriceStrikeDiscount float64         `db:"price_strike_discount"`
}

func optionArgs(pos int, o model.RankedOption) map[string]interface{} {
	q := toQuoteRow(pos, o.OptionQuote)
	return map[string]interface{}{
		"pos":                   q.Pos,
		"ticker":                q.Ticker,
		"side":                  q.Side,
		"strike":                q.Strike,
		"bid":                   q.Bid,
		"ask":                   q.Ask,
		"implied_volatility":    q.ImpliedVolatility,
		"exp_date":              q.ExpDate,
		"as_of_date":            q.AsOfDate,
		"mid":                   o.Mid,
		"upfront_premium":       o.UpfrontPremium,
		"days_til_strike":       o.DaysTilStrike,
		"money_aside":           o.MoneyAside,
		"raw_return":            o.RawReturn,
		"annualized_return":     o.AnnualizedReturn,
		"put_candidate_ind":     boolInt(o.PutCandidateInd),
		"price_strike_discount": o.PriceStrikeDiscount,
	}
}

func (r optionRow) model() (model.RankedOption, error) {
	q, err := r.quoteRow.model()
	if err != nil {
		return model.RankedOption{}, err
	}
	return model.RankedOption{
		OptionQuote: q,
		OptionMetrics: model.OptionMetrics{
			Mid:              r.Mid,
			UpfrontPremium:   r.UpfrontPremium,
			DaysTilStrike:    r.DaysTilStrike,
			MoneyAside:       r.MoneyAside,
			RawReturn:        r.RawReturn,
			AnnualizedReturn: r.AnnualizedReturn,
			Valid:            true,
		},
		PutCandidateInd:     r.PutCandidateInd,
		PriceStrikeDiscount: r.PriceStrikeDiscount,
	}, nil
}

type runRow struct {
	RunID            string `db:"run_id"`
	Side             string `db:"side"`
	RanAt            string `db:"ran_at"`
	Quotes           int    `db:"quotes"`
	Tickers          int    `db:"tickers"`
	Candidates       int    `db:"candidates"`
	MissingSnapshots int    `db:"missing_snapshots"`
	InvalidQuotes    int    `db:"invalid_quotes"`
	Ranked           int    `db:"ranked"`
}
