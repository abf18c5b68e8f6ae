package model

import "time"

// PriceObservation is a single daily bar for a ticker.
// Only Close feeds the momentum signals; High and Low feed the 52-week range.
type PriceObservation struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"hist_date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
}

// TickerSnapshot holds the per-run price position facts for a ticker.
// Week52Low <= CurrentPrice is not guaranteed when data is stale.
type TickerSnapshot struct {
	Ticker          string    `json:"ticker"`
	CurrentPrice    float64   `json:"current_price"`
	Week52High      float64   `json:"week_52_high"`
	Week52Low       float64   `json:"week_52_low"`
	LatestCloseDate time.Time `json:"latest_close_date"`
}

// Holding is a brokerage position row from the holdings sheet.
type Holding struct {
	Ticker       string  `json:"ticker"`
	Shares       int     `json:"shares"`
	AvgCostBasis float64 `json:"avg_cost_basis"`
	AccountAlias string  `json:"account_alias"`
}
