package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"OptionSentinel/internal/model"
)

// reportRows caps how many contracts a screen report lists.
const reportRows = 10

var hundred = decimal.NewFromInt(100)

// FormatScreenReport formats a finished screen run into a Telegram message.
func FormatScreenReport(res *model.ScreenResult, s model.Summary) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>OptionSentinel %s screen</b> | %s\n\n",
		res.Side, res.RanAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Tickers: %s | Candidates: %s | Options: %s\n",
		humanize.Comma(int64(s.TotalTickers)), humanize.Comma(int64(s.Candidates)), humanize.Comma(int64(s.TotalOptions))))
	b.WriteString(fmt.Sprintf("Avg annualized: %s\n", percent(s.AvgAnnualizedReturn)))
	if st := res.Stats; st.MissingSnapshots > 0 || st.InvalidQuotes > 0 {
		b.WriteString(fmt.Sprintf("⚠️ %d quotes skipped (%d invalid, %d without snapshot)\n",
			st.InvalidQuotes+st.MissingSnapshots, st.InvalidQuotes, st.MissingSnapshots))
	}

	if len(res.Options) == 0 {
		b.WriteString("\nNo contracts passed the screen.\n")
		return b.String()
	}

	b.WriteString("\n💰 <b>Top contracts:</b>\n")
	for i, o := range res.Options {
		if i == reportRows {
			b.WriteString(fmt.Sprintf("  … and %d more\n", len(res.Options)-reportRows))
			break
		}
		b.WriteString("  " + formatOption(o) + "\n")
	}
	return b.String()
}

// FormatCandidates lists the flagged tickers of a result.
func FormatCandidates(res *model.ScreenResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🎯 <b>%s candidates</b> | %s\n\n", res.Side, res.RanAt.Format("2006-01-02")))

	n := 0
	for _, c := range res.Candidates {
		if !c.PutCandidateInd {
			continue
		}
		n++
		b.WriteString(fmt.Sprintf("  %s  $%s (52w %s–%s)\n",
			html.EscapeString(c.Ticker), money(c.CurrentPrice), money(c.Week52Low), money(c.Week52High)))
	}
	if n == 0 {
		b.WriteString("  none today\n")
	}
	return b.String()
}

// FormatSummary formats the dashboard headline for one side.
func FormatSummary(side model.Side, s model.Summary, ranAt time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📦 <b>%s summary</b>\n\n", side))
	b.WriteString(fmt.Sprintf("Tickers screened: %s\n", humanize.Comma(int64(s.TotalTickers))))
	b.WriteString(fmt.Sprintf("Candidates: %s\n", humanize.Comma(int64(s.Candidates))))
	b.WriteString(fmt.Sprintf("Ranked options: %s\n", humanize.Comma(int64(s.TotalOptions))))
	b.WriteString(fmt.Sprintf("Avg annualized: %s\n", percent(s.AvgAnnualizedReturn)))
	b.WriteString(fmt.Sprintf("Last run: %s\n", ranAt.Format("2006-01-02 15:04")))
	return b.String()
}

// FormatIngestReport confirms a completed ingest.
func FormatIngestReport(in *model.Inputs, took time.Duration) string {
	tickers := make(map[string]bool)
	for _, q := range in.Quotes {
		tickers[q.Ticker] = true
	}
	return fmt.Sprintf("📥 <b>Ingest done</b> in %s\nQuotes: %s | Tickers: %d | Bars: %s\n",
		took.Round(time.Millisecond), humanize.Comma(int64(len(in.Quotes))), len(tickers), humanize.Comma(int64(len(in.History))))
}

// FormatFailure reports a failed job.
func FormatFailure(job string, err error) string {
	return fmt.Sprintf("🚨 <b>%s failed</b>\n%s\n", html.EscapeString(job), html.EscapeString(err.Error()))
}

// FormatHelp lists the bot commands.
func FormatHelp() string {
	return "📖 <b>Commands</b>\n\n" +
		"/ingest - pull quotes and prices now\n" +
		"/run [put|call] - screen now\n" +
		"/candidates [put|call] - flagged tickers of the last run\n" +
		"/summary [put|call] - headline numbers of the last run\n" +
		"/help - this message\n"
}

func formatOption(o model.RankedOption) string {
	flag := ""
	if o.PutCandidateInd {
		flag = " ⭐"
	}
	return fmt.Sprintf("%s %s %s @ $%s | %dd | prem $%s | %s ann.%s",
		html.EscapeString(o.Ticker),
		o.ExpirationDate.Format("01/02"),
		o.Side,
		o.Strike.StringFixed(2),
		o.DaysTilStrike,
		humanize.CommafWithDigits(o.UpfrontPremium.InexactFloat64(), 2),
		o.AnnualizedReturn.Mul(hundred).StringFixed(1)+"%",
		flag)
}

func money(f float64) string {
	return humanize.FormatFloat("#,###.##", f)
}

func percent(fraction float64) string {
	return fmt.Sprintf("%.1f%%", fraction*100)
}
