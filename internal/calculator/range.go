package calculator

import (
	"errors"
	"math"

	"OptionSentinel/internal/model"
)

// tradingDaysPerYear is the lookback used for the 52-week range.
const tradingDaysPerYear = 252

// Calculate52WeekRange scans the most recent 252 trading days and returns the high and low.
func Calculate52WeekRange(dailyBars []model.PriceObservation) (high, low float64, err error) {
	if len(dailyBars) == 0 {
		return 0, 0, errors.New("no daily bars provided")
	}
	n := len(dailyBars)
	start := n - tradingDaysPerYear
	if start < 0 {
		start = 0
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for i := start; i < n; i++ {
		h, l := dailyBars[i].High, dailyBars[i].Low
		// some providers only send closes
		if h == 0 && l == 0 {
			h, l = dailyBars[i].Close, dailyBars[i].Close
		}
		if h > high {
			high = h
		}
		if l < low {
			low = l
		}
	}
	return high, low, nil
}
