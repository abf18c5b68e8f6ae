package model

import "time"

// MomentumSignals are the two backward-walk indicators for a ticker.
type MomentumSignals struct {
	Day  bool
	Week bool
}

// CandidateIndicator is the per-ticker screen outcome.
type CandidateIndicator struct {
	TickerSnapshot
	LowerQrtBound    float64 `json:"lower_qrt_52wk_bound"`
	LowerQrtInd      bool    `json:"lower_qrt_ind"`
	UpVsPriDayVs8Day bool    `json:"up_vs_pri_day_vs_8day"`
	UpVsPriWkVs8Day  bool    `json:"up_vs_pri_wk_vs_8day"`
	PutCandidateInd  bool    `json:"put_candidate_ind"`
}

// Inputs is everything a screen run reads, loaded as one unit.
type Inputs struct {
	Quotes     []OptionQuote
	History    []PriceObservation
	Snapshots  []TickerSnapshot
	Holdings   []Holding
	IngestedAt time.Time
}

// ScreenStats counts what happened to the rows of a run.
type ScreenStats struct {
	Quotes           int `json:"quotes"`
	Tickers          int `json:"tickers"`
	Candidates       int `json:"candidates"`
	MissingSnapshots int `json:"missing_snapshots"`
	InvalidQuotes    int `json:"invalid_quotes"`
	Ranked           int `json:"ranked"`
}

// ScreenResult is the output of one screen run for one side.
type ScreenResult struct {
	RunID      string               `json:"run_id"`
	Side       Side                 `json:"side"`
	RanAt      time.Time            `json:"ran_at"`
	Candidates []CandidateIndicator `json:"candidates"`
	Options    []RankedOption       `json:"options"`
	Stats      ScreenStats          `json:"stats"`
}

// Summary is the dashboard headline for a result.
type Summary struct {
	TotalTickers        int     `json:"total_tickers"`
	Candidates          int     `json:"candidates"`
	TotalOptions        int     `json:"total_options"`
	AvgAnnualizedReturn float64 `json:"avg_annualized_return"`
}
