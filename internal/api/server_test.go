package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OptionSentinel/internal/model"
	"OptionSentinel/internal/recorder"
)

func option(ticker, annualized string, days int, discount float64) model.RankedOption {
	return model.RankedOption{
		OptionQuote: model.OptionQuote{
			Ticker:         ticker,
			Side:           model.SidePut,
			Strike:         decimal.NewFromInt(100),
			ExpirationDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		},
		OptionMetrics: model.OptionMetrics{
			DaysTilStrike:    days,
			AnnualizedReturn: decimal.RequireFromString(annualized),
			Valid:            true,
		},
		PriceStrikeDiscount: discount,
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := recorder.NewMemoryRecorder()
	res := &model.ScreenResult{
		RunID: "run-1",
		Side:  model.SidePut,
		RanAt: time.Date(2024, 3, 8, 14, 0, 0, 0, time.UTC),
		Candidates: []model.CandidateIndicator{
			{TickerSnapshot: model.TickerSnapshot{Ticker: "AAA"}, PutCandidateInd: true},
			{TickerSnapshot: model.TickerSnapshot{Ticker: "BBB"}},
		},
		Options: []model.RankedOption{
			option("AAA", "0.40", 7, 5),
			option("AAA", "0.30", 14, 8),
			option("BBB", "0.20", 35, 2),
		},
	}
	require.NoError(t, store.ReplaceResults(context.Background(), res))
	return NewServer(store)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestGetCandidates(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := get(t, h, "/api/v1/put/candidates")
	require.Equal(t, http.StatusOK, rec.Code)

	var body Response[[]model.CandidateIndicator]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data, 2)
	assert.Equal(t, "run-1", body.Meta.RunID)
	assert.Equal(t, model.SidePut, body.Meta.Side)

	rec = get(t, h, "/api/v1/put/candidates?flagged=true")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "AAA", body.Data[0].Ticker)
}

func TestGetOptionsFilters(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := get(t, h, "/api/v1/put/options?min_days=10&max_discount=9")
	require.Equal(t, http.StatusOK, rec.Code)

	var body Response[[]model.RankedOption]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "AAA", body.Data[0].Ticker)
	assert.Equal(t, 14, body.Data[0].DaysTilStrike)
	assert.Equal(t, "BBB", body.Data[1].Ticker)
	assert.Equal(t, 2, body.Meta.Count)
}

func TestGetOptionsRejectsBadFilter(t *testing.T) {
	h := newTestServer(t).Handler()

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/put/options?min_days=x").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/put/options?min_days=30&max_days=10").Code)
}

func TestGetSummary(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := get(t, h, "/api/v1/put/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var body Response[model.Summary]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Data.TotalTickers)
	assert.Equal(t, 1, body.Data.Candidates)
	assert.Equal(t, 3, body.Data.TotalOptions)
	assert.InDelta(t, 0.3, body.Data.AvgAnnualizedReturn, 1e-9)
}

func TestGetOptionsCSV(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := get(t, h, "/api/v1/put/options.csv?max_days=7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "put_candidate_options.csv")

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "AAA", rows[1][0])
}

func TestSideErrors(t *testing.T) {
	h := newTestServer(t).Handler()

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/straddle/summary").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/v1/call/summary").Code)
}

type failingStore struct{}

func (failingStore) LoadResults(context.Context, model.Side) (*model.ScreenResult, error) {
	return nil, errors.New("db down")
}

func TestStoreFailure(t *testing.T) {
	h := NewServer(failingStore{}).Handler()
	assert.Equal(t, http.StatusInternalServerError, get(t, h, "/api/v1/put/summary").Code)
}

func TestHealthz(t *testing.T) {
	rec := get(t, NewServer(failingStore{}).Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestZstdEncoding(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/put/summary", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "zstd")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "zstd", resp.Header.Get("Content-Encoding"))
	dec, err := zstd.NewReader(resp.Body)
	require.NoError(t, err)
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	require.NoError(t, err)
	var body Response[model.Summary]
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, 3, body.Data.TotalOptions)
}

func TestGetCallOptionsDefaultsToOutOfTheMoney(t *testing.T) {
	store := recorder.NewMemoryRecorder()
	res := &model.ScreenResult{RunID: "call-1", Side: model.SideCall}
	for _, discount := range []float64{-5, -10, 3} {
		o := option("KO", "0.20", 30, discount)
		o.Side = model.SideCall
		res.Options = append(res.Options, o)
	}
	require.NoError(t, store.ReplaceResults(context.Background(), res))
	h := NewServer(store).Handler()

	rec := get(t, h, "/api/v1/call/options")
	require.Equal(t, http.StatusOK, rec.Code)
	var body Response[[]model.RankedOption]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	for _, o := range body.Data {
		assert.Negative(t, o.PriceStrikeDiscount)
	}

	rec = get(t, h, "/api/v1/call/options.csv")
	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
