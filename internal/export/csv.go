// Package export writes ranked options as spreadsheet-ready CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"OptionSentinel/internal/model"
)

// Header is the column order of every export.
var Header = []string{
	"ticker", "side", "strike", "bid", "ask", "implied_volatility",
	"exp_date", "as_of_date", "mid", "upfront_premium", "days_til_strike",
	"money_aside", "raw_return", "annualized_return", "put_candidate_ind",
	"price_strike_discount",
}

// FileName is the export file for a side, e.g. "put_candidate_options.csv".
func FileName(side model.Side) string {
	return string(side) + "_candidate_options.csv"
}

// WriteCSV writes a header row followed by one row per option.
// Values are raw: decimals in full precision, dates as ISO dates.
func WriteCSV(w io.Writer, options []model.RankedOption) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, o := range options {
		if err := cw.Write(record(o)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func record(o model.RankedOption) []string {
	return []string{
		o.Ticker,
		string(o.Side),
		o.Strike.String(),
		o.Bid.String(),
		o.Ask.String(),
		strconv.FormatFloat(o.ImpliedVolatility, 'f', -1, 64),
		o.ExpirationDate.Format("2006-01-02"),
		o.AsOf.Format("2006-01-02"),
		o.Mid.String(),
		o.UpfrontPremium.String(),
		strconv.Itoa(o.DaysTilStrike),
		o.MoneyAside.String(),
		o.RawReturn.String(),
		o.AnnualizedReturn.String(),
		strconv.FormatBool(o.PutCandidateInd),
		strconv.FormatFloat(o.PriceStrikeDiscount, 'f', -1, 64),
	}
}

// Exporter writes one file per side into Dir, replacing the previous export.
type Exporter struct {
	Dir string
}

// Export writes res to Dir and returns the file path. The file is written
// to a temp name and renamed so readers never see a partial export.
func (e *Exporter) Export(res *model.ScreenResult) (string, error) {
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(e.Dir, FileName(res.Side))

	tmp, err := os.CreateTemp(e.Dir, "."+FileName(res.Side)+".*")
	if err != nil {
		return "", fmt.Errorf("create temp export: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, res.Options); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("publish export: %w", err)
	}
	return path, nil
}
