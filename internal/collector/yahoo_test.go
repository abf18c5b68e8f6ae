package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OptionSentinel/internal/model"
)

const chartJSON = `{"chart":{"result":[{
  "timestamp":[1709821800,1709908200,1710167400],
  "indicators":{"quote":[{
    "open":[10.0,11.0,null],
    "high":[10.5,11.5,null],
    "low":[9.5,10.5,null],
    "close":[10.2,11.1,null]
  }]}}],"error":null}}`

const optionsJSON = `{"optionChain":{"result":[{
  "expirationDates":[1711065600,1710460800],
  "options":[{"expirationDate":1710460800,
    "calls":[{"strike":105,"bid":1.1,"ask":1.3,"impliedVolatility":0.25,"expiration":1710460800}],
    "puts":[{"strike":95,"bid":0.8,"ask":0.9,"impliedVolatility":0.31,"expiration":1710460800},
            {"strike":90,"bid":0.3,"ask":null,"impliedVolatility":0.35}]
  }]}],"error":null}}`

func yahooServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v8/finance/chart/AAPL", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		w.Write([]byte(chartJSON))
	})
	mux.HandleFunc("/v7/finance/options/AAPL", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(optionsJSON))
	})
	mux.HandleFunc("/v8/finance/chart/BAD", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestYahooFetcher_DailyBars(t *testing.T) {
	srv := yahooServer(t)
	f := NewYahooFetcher(srv.URL, "")
	f.Exchange = time.FixedZone("EST", -5*3600)

	got, err := f.FetchDailyBars(context.Background(), "AAPL", 10)
	require.NoError(t, err)
	require.Len(t, got, 2, "null bars are skipped")
	assert.Equal(t, date("2024-03-07"), got[0].Date)
	assert.Equal(t, date("2024-03-08"), got[1].Date)
	assert.Equal(t, 11.1, got[1].Close)
	assert.Equal(t, "AAPL", got[1].Ticker)

	_, err = f.FetchDailyBars(context.Background(), "BAD", 10)
	assert.ErrorContains(t, err, "status 404")
}

func TestYahooFetcher_Options(t *testing.T) {
	srv := yahooServer(t)
	f := NewYahooFetcher(srv.URL, "")
	ctx := context.Background()

	exps, err := f.FetchExpirations(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, []time.Time{date("2024-03-15"), date("2024-03-22")}, exps)

	puts, err := f.FetchOptionChain(ctx, "AAPL", model.SidePut, exps[0])
	require.NoError(t, err)
	require.Len(t, puts, 2)
	assert.Equal(t, "95", puts[0].Strike.String())
	assert.Equal(t, "0.8", puts[0].Bid.String())
	assert.Equal(t, date("2024-03-15"), puts[0].ExpirationDate)
	assert.True(t, puts[1].Ask.IsZero())
	assert.Equal(t, date("2024-03-15"), puts[1].ExpirationDate)

	calls, err := f.FetchOptionChain(ctx, "AAPL", model.SideCall, exps[0])
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, model.SideCall, calls[0].Side)
}

func TestRESTFetcher(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/bars/daily", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`[{"date":"2024-03-08","close":11},{"date":"2024-03-07","close":10}]`))
	})
	mux.HandleFunc("/api/v1/options/expirations", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["2024-03-22","2024-03-15"]`))
	})
	mux.HandleFunc("/api/v1/options/chain", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "put", r.URL.Query().Get("side"))
		assert.Equal(t, "2024-03-15", r.URL.Query().Get("expiration"))
		w.Write([]byte(`[{"strike":"95","bid":"0.80","ask":"0.90","implied_volatility":0.3}]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewRESTFetcher(srv.URL, "secret", "")
	ctx := context.Background()

	b, err := f.FetchDailyBars(ctx, "KO", 5)
	require.NoError(t, err)
	require.Len(t, b, 2)
	assert.Equal(t, date("2024-03-07"), b[0].Date)

	exps, err := f.FetchExpirations(ctx, "KO")
	require.NoError(t, err)
	assert.Equal(t, date("2024-03-15"), exps[0])

	chain, err := f.FetchOptionChain(ctx, "KO", model.SidePut, exps[0])
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, "0.8", chain[0].Bid.String())
	assert.Equal(t, exps[0], chain[0].ExpirationDate)
}
