package calculator

import (
	"sort"
	"time"

	"OptionSentinel/internal/model"
)

// MomentumWindow is the number of closes averaged by both momentum signals.
const MomentumWindow = 8

// EvaluateMomentum computes the day and week signals for ticker as of ref.
// history may hold other tickers and need not be sorted.
func EvaluateMomentum(ticker string, ref time.Time, currentPrice float64, history []model.PriceObservation) model.MomentumSignals {
	series := SeriesFor(ticker, history)
	return model.MomentumSignals{
		Day:  DaySignal(ref, currentPrice, series),
		Week: WeekSignal(ref, currentPrice, series),
	}
}

// SeriesFor returns ticker's observations in ascending date order.
func SeriesFor(ticker string, history []model.PriceObservation) []model.PriceObservation {
	var series []model.PriceObservation
	for _, obs := range history {
		if obs.Ticker == ticker {
			series = append(series, obs)
		}
	}
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})
	return series
}

// DaySignal is true when the price is up against the prior session and that
// prior close sat below the 8-session average ending the session before it.
// series must be ascending. Missing history yields false.
func DaySignal(ref time.Time, currentPrice float64, series []model.PriceObservation) bool {
	i := lastBefore(series, dateOf(ref))
	if i < 0 {
		return false
	}
	prior := series[i]

	j := lastBefore(series, dateOf(prior.Date))
	if j < 0 {
		return false
	}
	avg, err := windowMean(series, j)
	if err != nil {
		return false
	}
	return currentPrice > prior.Close && prior.Close < avg
}

// WeekSignal is true when the price is up against the prior week's close and
// that close sat below the 8-session average ending a week earlier.
// series must be ascending. Missing history yields false.
func WeekSignal(ref time.Time, currentPrice float64, series []model.PriceObservation) bool {
	target := dateOf(ref).AddDate(0, 0, -PriorWeekOffset(ref.Weekday()))
	i := lastOnOrBefore(series, target)
	if i < 0 {
		return false
	}
	priorWeek := series[i]

	j := lastOnOrBefore(series, dateOf(priorWeek.Date).AddDate(0, 0, -7))
	if j < 0 {
		return false
	}
	avg, err := windowMean(series, j)
	if err != nil {
		return false
	}
	return currentPrice > priorWeek.Close && priorWeek.Close < avg
}

// windowMean averages the MomentumWindow closes ending at index end.
func windowMean(series []model.PriceObservation, end int) (float64, error) {
	return CalculateSMA(extractCloses(series[:end+1]), MomentumWindow)
}

// lastBefore returns the index of the latest observation strictly before day, or -1.
func lastBefore(series []model.PriceObservation, day time.Time) int {
	return sort.Search(len(series), func(k int) bool {
		return !dateOf(series[k].Date).Before(day)
	}) - 1
}

// lastOnOrBefore returns the index of the latest observation on or before day, or -1.
func lastOnOrBefore(series []model.PriceObservation, day time.Time) int {
	return sort.Search(len(series), func(k int) bool {
		return dateOf(series[k].Date).After(day)
	}) - 1
}

// dateOf truncates t to its calendar date in its own location.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
