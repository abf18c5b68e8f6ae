package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"OptionSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Tickers without explicit data get a generated series around Price.
type MockFetcher struct {
	Price       float64
	Bars        map[string][]model.PriceObservation
	Expirations map[string][]time.Time
	Chains      map[string][]model.OptionQuote
	Errors      map[string]error
	// Today anchors generated data; zero means time.Now.
	Today time.Time
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) today() time.Time {
	if m.Today.IsZero() {
		return calendarDate(time.Now(), time.UTC)
	}
	return calendarDate(m.Today, time.UTC)
}

func (m *MockFetcher) FetchDailyBars(_ context.Context, ticker string, days int) ([]model.PriceObservation, error) {
	if err := m.Errors[ticker]; err != nil {
		return nil, err
	}
	if bars, ok := m.Bars[ticker]; ok {
		return bars, nil
	}
	return generateMockBars(ticker, m.Price, days, m.today()), nil
}

func (m *MockFetcher) FetchExpirations(_ context.Context, ticker string) ([]time.Time, error) {
	if err := m.Errors[ticker]; err != nil {
		return nil, err
	}
	if dates, ok := m.Expirations[ticker]; ok {
		return dates, nil
	}
	// next four Fridays
	var dates []time.Time
	d := m.today().AddDate(0, 0, 1)
	for len(dates) < 4 {
		if d.Weekday() == time.Friday {
			dates = append(dates, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return dates, nil
}

func (m *MockFetcher) FetchOptionChain(_ context.Context, ticker string, side model.Side, expiration time.Time) ([]model.OptionQuote, error) {
	if err := m.Errors[ticker]; err != nil {
		return nil, err
	}
	if chain, ok := m.Chains[ticker]; ok {
		var out []model.OptionQuote
		for _, q := range chain {
			if q.Side == side && q.ExpirationDate.Equal(expiration) {
				out = append(out, q)
			}
		}
		return out, nil
	}
	if m.Price <= 0 {
		return nil, fmt.Errorf("mock: no chain for %s", ticker)
	}
	var out []model.OptionQuote
	for i := -2; i <= 2; i++ {
		strike := decimal.NewFromFloat(m.Price * (1 + float64(i)*0.05)).Round(0)
		bid := strike.Mul(decimal.RequireFromString("0.01")).Round(2)
		out = append(out, model.OptionQuote{
			Ticker:            ticker,
			Side:              side,
			Strike:            strike,
			Bid:               bid,
			Ask:               bid.Add(decimal.RequireFromString("0.05")),
			ImpliedVolatility: 0.3,
			ExpirationDate:    expiration,
		})
	}
	return out, nil
}

func generateMockBars(ticker string, basePrice float64, count int, today time.Time) []model.PriceObservation {
	bars := make([]model.PriceObservation, 0, count)
	d := today.AddDate(0, 0, -count)
	for i := 0; i < count; i++ {
		d = d.AddDate(0, 0, 1)
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars = append(bars, model.PriceObservation{
			Ticker: ticker,
			Date:   d,
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
		})
	}
	return bars
}
