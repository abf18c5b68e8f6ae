package calculator

import (
	"errors"

	"github.com/markcheno/go-talib"

	"OptionSentinel/internal/model"
)

// ErrInsufficientData is returned when a window needs more observations than exist.
var ErrInsufficientData = errors.New("not enough data for calculation")

// CalculateSMA computes the simple moving average of the last period prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, ErrInsufficientData
	}
	window := prices[len(prices)-period:]
	sma := talib.Sma(window, period)
	return sma[period-1], nil
}

func extractCloses(bars []model.PriceObservation) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
