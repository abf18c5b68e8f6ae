package calculator

import (
	"time"

	"github.com/shopspring/decimal"

	"OptionSentinel/internal/model"
)

// ContractMultiplier is the share count one contract controls.
const ContractMultiplier = 100

var (
	multiplier = decimal.NewFromInt(ContractMultiplier)
	daysInYear = decimal.NewFromInt(365)
	two        = decimal.NewFromInt(2)
)

// DaysTilStrike counts whole calendar days from asOf to expiration,
// truncating each timestamp to its date first.
func DaysTilStrike(expiration, asOf time.Time) int {
	return int(dateOf(expiration).Sub(dateOf(asOf)) / (24 * time.Hour))
}

// ComputeMetrics derives premium and return figures for a quote. Same-day or
// past expirations and non-positive strikes come back with Valid=false.
func ComputeMetrics(q model.OptionQuote) model.OptionMetrics {
	mid := q.Bid.Add(q.Ask).Div(two)
	m := model.OptionMetrics{
		Mid:            mid,
		UpfrontPremium: mid.Mul(multiplier),
		DaysTilStrike:  DaysTilStrike(q.ExpirationDate, q.AsOf),
		MoneyAside:     q.Strike.Mul(multiplier),
	}
	if !m.MoneyAside.IsPositive() {
		m.Invalid = model.InvalidNonPositiveMoney
		return m
	}
	m.RawReturn = m.UpfrontPremium.Div(m.MoneyAside)
	if m.DaysTilStrike <= 0 {
		m.Invalid = model.InvalidDegenerateExpiry
		return m
	}
	m.AnnualizedReturn = m.RawReturn.Mul(daysInYear).Div(decimal.NewFromInt(int64(m.DaysTilStrike)))
	m.Valid = true
	return m
}
