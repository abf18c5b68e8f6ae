package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side selects which leg of the chain a screen runs on.
type Side string

const (
	SidePut  Side = "put"
	SideCall Side = "call"
)

// ParseSide accepts "put"/"call" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SidePut:
		return SidePut, nil
	case SideCall:
		return SideCall, nil
	default:
		return "", fmt.Errorf("unknown option side %q", s)
	}
}

// OptionQuote is one contract row of an option-chain snapshot.
type OptionQuote struct {
	Ticker            string          `json:"ticker"`
	Side              Side            `json:"side"`
	Strike            decimal.Decimal `json:"strike"`
	Bid               decimal.Decimal `json:"bid"`
	Ask               decimal.Decimal `json:"ask"`
	ImpliedVolatility float64         `json:"implied_volatility"`
	ExpirationDate    time.Time       `json:"exp_date"`
	AsOf              time.Time       `json:"as_of_date"`
}

// Reasons an OptionMetrics value is not usable for ranking.
const (
	InvalidDegenerateExpiry = "degenerate_expiry"
	InvalidNonPositiveMoney = "non_positive_money_aside"
)

// OptionMetrics are the per-contract figures derived from a quote.
// When Valid is false AnnualizedReturn is zero and Invalid names the cause.
type OptionMetrics struct {
	Mid              decimal.Decimal `json:"mid"`
	UpfrontPremium   decimal.Decimal `json:"upfront_premium"`
	DaysTilStrike    int             `json:"days_til_strike"`
	MoneyAside       decimal.Decimal `json:"money_aside"`
	RawReturn        decimal.Decimal `json:"raw_return"`
	AnnualizedReturn decimal.Decimal `json:"annualized_return"`
	Valid            bool            `json:"-"`
	Invalid          string          `json:"-"`
}

// RankedOption is a shortlisted contract with its ticker's screen flag.
type RankedOption struct {
	OptionQuote
	OptionMetrics
	PutCandidateInd     bool    `json:"put_candidate_ind"`
	PriceStrikeDiscount float64 `json:"price_strike_discount"`
}
