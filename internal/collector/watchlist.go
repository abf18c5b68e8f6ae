package collector

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"OptionSentinel/internal/model"
)

// LoadWatchlist reads a CSV sheet with a "ticker" header column.
func LoadWatchlist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open watchlist: %w", err)
	}
	defer f.Close()
	return ReadWatchlist(f)
}

// ReadWatchlist returns the upper-cased, de-duplicated tickers in sheet order.
func ReadWatchlist(r io.Reader) ([]string, error) {
	rows, cols, err := readSheet(r, "ticker")
	if err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}
	seen := make(map[string]bool)
	var tickers []string
	for _, row := range rows {
		t := normalizeTicker(row[cols["ticker"]])
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// LoadHoldings reads the brokerage holdings sheet.
func LoadHoldings(path string) ([]model.Holding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open holdings: %w", err)
	}
	defer f.Close()
	return ReadHoldings(f)
}

// ReadHoldings parses ticker, shares, avg_cost_basis and an optional account_alias.
func ReadHoldings(r io.Reader) ([]model.Holding, error) {
	rows, cols, err := readSheet(r, "ticker", "shares", "avg_cost_basis")
	if err != nil {
		return nil, fmt.Errorf("read holdings: %w", err)
	}
	var holdings []model.Holding
	for i, row := range rows {
		t := normalizeTicker(row[cols["ticker"]])
		if t == "" {
			continue
		}
		shares, err := strconv.ParseFloat(cleanNumber(row[cols["shares"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("read holdings: row %d shares: %w", i+2, err)
		}
		cost, err := strconv.ParseFloat(cleanNumber(row[cols["avg_cost_basis"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("read holdings: row %d avg_cost_basis: %w", i+2, err)
		}
		h := model.Holding{Ticker: t, Shares: int(shares), AvgCostBasis: cost}
		if c, ok := cols["account_alias"]; ok {
			h.AccountAlias = strings.TrimSpace(row[c])
		}
		holdings = append(holdings, h)
	}
	return holdings, nil
}

// HoldingTickers returns the distinct tickers of holdings in sheet order.
func HoldingTickers(holdings []model.Holding) []string {
	seen := make(map[string]bool)
	var out []string
	for _, h := range holdings {
		if !seen[h.Ticker] {
			seen[h.Ticker] = true
			out = append(out, h.Ticker)
		}
	}
	return out
}

// readSheet reads a headed CSV and maps lower-cased header names to column indexes.
func readSheet(r io.Reader, required ...string) ([][]string, map[string]int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, errors.New("empty sheet")
	}
	if err != nil {
		return nil, nil, err
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, nil, fmt.Errorf("missing %q column", name)
		}
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		// pad short rows so column lookups stay in range
		for len(rec) < len(header) {
			rec = append(rec, "")
		}
		rows = append(rows, rec)
	}
	return rows, cols, nil
}

func normalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	return strings.ReplaceAll(s, ",", "")
}
