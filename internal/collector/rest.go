package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"OptionSentinel/internal/model"
)

// RESTFetcher implements Fetcher against a generic market-data REST API.
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTFetcher creates a new fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string) *RESTFetcher {
	return &RESTFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL),
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

// restBar is the expected JSON shape of a daily bar.
type restBar struct {
	Date  string  `json:"date"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// restContract is the expected JSON shape of a chain row.
type restContract struct {
	Strike            decimal.Decimal `json:"strike"`
	Bid               decimal.Decimal `json:"bid"`
	Ask               decimal.Decimal `json:"ask"`
	ImpliedVolatility float64         `json:"implied_volatility"`
	Expiration        string          `json:"expiration"`
}

func (f *RESTFetcher) header() http.Header {
	h := http.Header{}
	if f.APIKey != "" {
		h.Set("Authorization", "Bearer "+f.APIKey)
	}
	return h
}

func (f *RESTFetcher) FetchDailyBars(ctx context.Context, ticker string, days int) ([]model.PriceObservation, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bars/daily?symbol=%s&limit=%d", f.BaseURL, url.QueryEscape(ticker), days)
	var raw []restBar
	if err := getJSON(ctx, f.Client, endpoint, f.header(), &raw); err != nil {
		return nil, fmt.Errorf("fetch bars %s: %w", ticker, err)
	}
	bars := make([]model.PriceObservation, 0, len(raw))
	for _, b := range raw {
		d, err := time.Parse("2006-01-02", b.Date)
		if err != nil {
			return nil, fmt.Errorf("fetch bars %s: bad date %q: %w", ticker, b.Date, err)
		}
		bars = append(bars, model.PriceObservation{
			Ticker: ticker, Date: d, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

func (f *RESTFetcher) FetchExpirations(ctx context.Context, ticker string) ([]time.Time, error) {
	endpoint := fmt.Sprintf("%s/api/v1/options/expirations?symbol=%s", f.BaseURL, url.QueryEscape(ticker))
	var raw []string
	if err := getJSON(ctx, f.Client, endpoint, f.header(), &raw); err != nil {
		return nil, fmt.Errorf("fetch expirations %s: %w", ticker, err)
	}
	dates := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil, fmt.Errorf("fetch expirations %s: bad date %q: %w", ticker, s, err)
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (f *RESTFetcher) FetchOptionChain(ctx context.Context, ticker string, side model.Side, expiration time.Time) ([]model.OptionQuote, error) {
	endpoint := fmt.Sprintf("%s/api/v1/options/chain?symbol=%s&side=%s&expiration=%s",
		f.BaseURL, url.QueryEscape(ticker), side, expiration.Format("2006-01-02"))
	var raw []restContract
	if err := getJSON(ctx, f.Client, endpoint, f.header(), &raw); err != nil {
		return nil, fmt.Errorf("fetch chain %s: %w", ticker, err)
	}
	quotes := make([]model.OptionQuote, 0, len(raw))
	for _, c := range raw {
		exp := expiration
		if c.Expiration != "" {
			d, err := time.Parse("2006-01-02", c.Expiration)
			if err != nil {
				return nil, fmt.Errorf("fetch chain %s: bad expiration %q: %w", ticker, c.Expiration, err)
			}
			exp = d
		}
		quotes = append(quotes, model.OptionQuote{
			Ticker:            ticker,
			Side:              side,
			Strike:            c.Strike,
			Bid:               c.Bid,
			Ask:               c.Ask,
			ImpliedVolatility: c.ImpliedVolatility,
			ExpirationDate:    exp,
		})
	}
	return quotes, nil
}
