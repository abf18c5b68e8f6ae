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

// DefaultYahooURL is the public Yahoo Finance query host.
const DefaultYahooURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using the Yahoo Finance chart and options APIs.
type YahooFetcher struct {
	BaseURL string
	Client  *http.Client
	// Exchange is where bar timestamps are converted to trading dates.
	Exchange *time.Location
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(baseURL, proxyURL string) *YahooFetcher {
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	exchange, err := time.LoadLocation("America/New_York")
	if err != nil {
		exchange = time.UTC
	}
	return &YahooFetcher{
		BaseURL:  baseURL,
		Client:   newHTTPClient(proxyURL),
		Exchange: exchange,
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

var yahooHeader = http.Header{"User-Agent": []string{"Mozilla/5.0"}}

// yahooChart is the response structure from the chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open  []*float64 `json:"open"`
					High  []*float64 `json:"high"`
					Low   []*float64 `json:"low"`
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// yahooContract is one row of a chain. Prices decode straight into decimals.
type yahooContract struct {
	Strike            decimal.Decimal `json:"strike"`
	Bid               decimal.Decimal `json:"bid"`
	Ask               decimal.Decimal `json:"ask"`
	ImpliedVolatility float64         `json:"impliedVolatility"`
	Expiration        int64           `json:"expiration"`
}

type yahooOptions struct {
	OptionChain struct {
		Result []struct {
			ExpirationDates []int64 `json:"expirationDates"`
			Options         []struct {
				ExpirationDate int64           `json:"expirationDate"`
				Calls          []yahooContract `json:"calls"`
				Puts           []yahooContract `json:"puts"`
			} `json:"options"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"optionChain"`
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func chartRange(days int) string {
	switch {
	case days <= 30:
		return "1mo"
	case days <= 90:
		return "3mo"
	case days <= 180:
		return "6mo"
	case days <= 365:
		return "1y"
	default:
		return "2y"
	}
}

func (f *YahooFetcher) FetchDailyBars(ctx context.Context, ticker string, days int) ([]model.PriceObservation, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%s",
		f.BaseURL, url.PathEscape(ticker), chartRange(days))

	var chart yahooChart
	if err := getJSON(ctx, f.Client, u, yahooHeader, &chart); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", ticker, err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned for %s", ticker)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]model.PriceObservation, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue // null bars on holidays and halts
		}
		bar := model.PriceObservation{
			Ticker: ticker,
			Date:   calendarDate(time.Unix(ts, 0), f.Exchange),
			Close:  *quote.Close[i],
		}
		if i < len(quote.Open) {
			bar.Open = deref(quote.Open[i])
		}
		if i < len(quote.High) {
			bar.High = deref(quote.High[i])
		}
		if i < len(quote.Low) {
			bar.Low = deref(quote.Low[i])
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}

func (f *YahooFetcher) fetchOptions(ctx context.Context, ticker string, date int64) (*yahooOptions, error) {
	u := fmt.Sprintf("%s/v7/finance/options/%s", f.BaseURL, url.PathEscape(ticker))
	if date > 0 {
		u += fmt.Sprintf("?date=%d", date)
	}
	var out yahooOptions
	if err := getJSON(ctx, f.Client, u, yahooHeader, &out); err != nil {
		return nil, fmt.Errorf("yahoo options %s: %w", ticker, err)
	}
	if out.OptionChain.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", out.OptionChain.Error.Description)
	}
	if len(out.OptionChain.Result) == 0 {
		return nil, fmt.Errorf("yahoo: no option chain for %s", ticker)
	}
	return &out, nil
}

func (f *YahooFetcher) FetchExpirations(ctx context.Context, ticker string) ([]time.Time, error) {
	out, err := f.fetchOptions(ctx, ticker, 0)
	if err != nil {
		return nil, err
	}
	dates := make([]time.Time, 0, len(out.OptionChain.Result[0].ExpirationDates))
	for _, ts := range out.OptionChain.Result[0].ExpirationDates {
		dates = append(dates, calendarDate(time.Unix(ts, 0), time.UTC))
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (f *YahooFetcher) FetchOptionChain(ctx context.Context, ticker string, side model.Side, expiration time.Time) ([]model.OptionQuote, error) {
	out, err := f.fetchOptions(ctx, ticker, calendarDate(expiration, time.UTC).Unix())
	if err != nil {
		return nil, err
	}

	var quotes []model.OptionQuote
	for _, chain := range out.OptionChain.Result[0].Options {
		contracts := chain.Puts
		if side == model.SideCall {
			contracts = chain.Calls
		}
		for _, c := range contracts {
			exp := c.Expiration
			if exp == 0 {
				exp = chain.ExpirationDate
			}
			quotes = append(quotes, model.OptionQuote{
				Ticker:            ticker,
				Side:              side,
				Strike:            c.Strike,
				Bid:               c.Bid,
				Ask:               c.Ask,
				ImpliedVolatility: c.ImpliedVolatility,
				ExpirationDate:    calendarDate(time.Unix(exp, 0), time.UTC),
			})
		}
	}
	return quotes, nil
}
