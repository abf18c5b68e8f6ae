package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OptionSentinel/internal/model"
)

// momentumHistory gives ticker ten daily closes ending the day before 2024-03-15
// such that the day signal fires for a current price of 11.
func momentumHistory(ticker string) []model.PriceObservation {
	start := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	closes := []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 9}
	out := make([]model.PriceObservation, len(closes))
	for i, c := range closes {
		out[i] = model.PriceObservation{Ticker: ticker, Date: start.AddDate(0, 0, i), Close: c}
	}
	return out
}

func fixtureInputs() *model.Inputs {
	ref := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	return &model.Inputs{
		Quotes: []model.OptionQuote{
			putQuote("MOM", "10", "0.20", "0.30", 30),
			putQuote("CHEAP", "10", "0.10", "0.20", 30),
			putQuote("RICH", "18", "0.40", "0.50", 30),
			putQuote("MOM", "9", "0.10", "0.10", 30),
			putQuote("RICH", "17", "0.30", "0.30", 30),
			{Ticker: "MOM", Side: model.SideCall, Strike: putQuote("", "12", "0", "0", 0).Strike,
				ExpirationDate: expiry(30), AsOf: testAsOf},
		},
		History: momentumHistory("MOM"),
		Snapshots: []model.TickerSnapshot{
			{Ticker: "MOM", CurrentPrice: 11, Week52High: 12, Week52Low: 8, LatestCloseDate: ref},
			{Ticker: "CHEAP", CurrentPrice: 11, Week52High: 20, Week52Low: 10, LatestCloseDate: ref},
			{Ticker: "RICH", CurrentPrice: 20, Week52High: 21, Week52Low: 10, LatestCloseDate: ref},
		},
	}
}

func putOptions() Options {
	return Options{
		Side:  model.SidePut,
		RunID: "run-1",
		RanAt: time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC),
	}
}

func candidateByTicker(res *model.ScreenResult) map[string]model.CandidateIndicator {
	out := make(map[string]model.CandidateIndicator)
	for _, c := range res.Candidates {
		out[c.Ticker] = c
	}
	return out
}

func TestScreen_Pipeline(t *testing.T) {
	res, err := Screen(fixtureInputs(), putOptions())
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, model.SidePut, res.Side)

	c := candidateByTicker(res)
	require.Len(t, c, 3)
	assert.True(t, c["MOM"].UpVsPriDayVs8Day)
	assert.False(t, c["MOM"].LowerQrtInd)
	assert.True(t, c["MOM"].PutCandidateInd)

	assert.True(t, c["CHEAP"].LowerQrtInd)
	assert.True(t, c["CHEAP"].PutCandidateInd)

	assert.False(t, c["RICH"].PutCandidateInd)

	assert.Equal(t, []string{"MOM:10", "MOM:9", "CHEAP:10", "RICH:18", "RICH:17"}, strikes(res.Options))
	for _, o := range res.Options {
		assert.Equal(t, c[o.Ticker].PutCandidateInd, o.PutCandidateInd, o.Ticker)
		assert.Equal(t, model.SidePut, o.Side)
	}

	assert.Equal(t, model.ScreenStats{
		Quotes:     5,
		Tickers:    3,
		Candidates: 2,
		Ranked:     5,
	}, res.Stats)
}

func TestScreen_PriceStrikeDiscount(t *testing.T) {
	res, err := Screen(fixtureInputs(), putOptions())
	require.NoError(t, err)

	for _, o := range res.Options {
		if o.Ticker == "RICH" && o.Strike.String() == "18" {
			assert.InDelta(t, 10.0, o.PriceStrikeDiscount, 1e-9)
		}
	}
}

func TestScreen_Deterministic(t *testing.T) {
	a, err := Screen(fixtureInputs(), putOptions())
	require.NoError(t, err)
	b, err := Screen(fixtureInputs(), putOptions())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestScreen_MissingSnapshotDropped(t *testing.T) {
	in := fixtureInputs()
	in.Snapshots = in.Snapshots[1:] // drop MOM

	res, err := Screen(in, putOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Stats.MissingSnapshots)
	assert.NotContains(t, candidateByTicker(res), "MOM")
	for _, o := range res.Options {
		assert.NotEqual(t, "MOM", o.Ticker)
	}
}

func TestScreen_MissingSnapshotFails(t *testing.T) {
	in := fixtureInputs()
	in.Snapshots = in.Snapshots[1:]
	opts := putOptions()
	opts.MissingSnapshot = MissingFail

	_, err := Screen(in, opts)
	assert.ErrorIs(t, err, ErrMissingSnapshot)
}

func TestScreen_NoQuotesIsUpstreamFailure(t *testing.T) {
	in := fixtureInputs()
	in.Quotes = nil
	_, err := Screen(in, putOptions())
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)

	_, err = Screen(nil, putOptions())
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestScreen_OnlyReadsRequestedSide(t *testing.T) {
	opts := putOptions()
	opts.Side = model.SideCall

	res, err := Screen(fixtureInputs(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Quotes)
	assert.Equal(t, []string{"MOM:12"}, strikes(res.Options))
}

func TestScreen_InvalidQuotesCounted(t *testing.T) {
	in := fixtureInputs()
	in.Quotes = append(in.Quotes, putQuote("CHEAP", "9", "0.5", "0.5", 0))

	res, err := Screen(in, putOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.InvalidQuotes)
	assert.Equal(t, 5, res.Stats.Ranked)
}

func TestParseMissingSnapshotPolicy(t *testing.T) {
	p, err := ParseMissingSnapshotPolicy("")
	require.NoError(t, err)
	assert.Equal(t, MissingDrop, p)

	p, err = ParseMissingSnapshotPolicy("fail")
	require.NoError(t, err)
	assert.Equal(t, MissingFail, p)

	_, err = ParseMissingSnapshotPolicy("ignore")
	assert.Error(t, err)
}
