package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite"

	"OptionSentinel/internal/logger"
	"OptionSentinel/internal/model"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// dialect holds the few places SQLite and PostgreSQL disagree.
type dialect struct {
	driver  string
	decimal string
	txOpts  *sql.TxOptions
}

var dialects = map[string]dialect{
	"sqlite":   {driver: "sqlite", decimal: "TEXT"},
	"postgres": {driver: "postgres", decimal: "NUMERIC", txOpts: &sql.TxOptions{Isolation: sql.LevelRepeatableRead}},
}

// SQLRecorder persists inputs and results to SQLite or PostgreSQL through sqlx.
type SQLRecorder struct {
	db *sqlx.DB
	d  dialect
}

// NewSQLRecorder connects, tunes the pool and runs migrations.
func NewSQLRecorder(ctx context.Context, driver, dsn string) (*SQLRecorder, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sqlx.ConnectContext(ctx, d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	if driver == "sqlite" {
		// one writer; WAL lets readers see the last committed run meanwhile
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}

	r := &SQLRecorder{db: db, d: d}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Infof("%s recorder opened", driver)
	return r, nil
}

func candidateTable(side model.Side) string { return string(side) + "_candidate_tickers" }
func optionTable(side model.Side) string    { return string(side) + "_candidate_options" }

func (r *SQLRecorder) migrate(ctx context.Context) error {
	dec := r.d.decimal
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ingest_runs (
			ingested_at TEXT NOT NULL,
			quotes      INTEGER NOT NULL,
			snapshots   INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS option_quotes (
			pos                INTEGER NOT NULL,
			ticker             TEXT NOT NULL,
			side               TEXT NOT NULL,
			strike             ` + dec + ` NOT NULL,
			bid                ` + dec + ` NOT NULL,
			ask                ` + dec + ` NOT NULL,
			implied_volatility DOUBLE PRECISION,
			exp_date           TEXT NOT NULL,
			as_of_date         TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stock_hist (
			pos       INTEGER NOT NULL,
			ticker    TEXT NOT NULL,
			hist_date TEXT NOT NULL,
			open      DOUBLE PRECISION,
			high      DOUBLE PRECISION,
			low       DOUBLE PRECISION,
			close     DOUBLE PRECISION NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_hist_ticker ON stock_hist(ticker, hist_date)`,
		`CREATE TABLE IF NOT EXISTS stock_dim (
			pos               INTEGER NOT NULL,
			ticker            TEXT NOT NULL,
			current_price     DOUBLE PRECISION,
			week_52_high      DOUBLE PRECISION,
			week_52_low       DOUBLE PRECISION,
			latest_close_date TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS holdings (
			pos            INTEGER NOT NULL,
			ticker         TEXT NOT NULL,
			shares         INTEGER,
			avg_cost_basis DOUBLE PRECISION,
			account_alias  TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS screen_runs (
			run_id            TEXT PRIMARY KEY,
			side              TEXT NOT NULL,
			ran_at            TEXT NOT NULL,
			quotes            INTEGER,
			tickers           INTEGER,
			candidates        INTEGER,
			missing_snapshots INTEGER,
			invalid_quotes    INTEGER,
			ranked            INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_screen_runs_side ON screen_runs(side, ran_at)`,
	}
	for _, side := range []model.Side{model.SidePut, model.SideCall} {
		stmts = append(stmts,
			`CREATE TABLE IF NOT EXISTS `+candidateTable(side)+` (
				pos                   INTEGER NOT NULL,
				ticker                TEXT NOT NULL,
				current_price         DOUBLE PRECISION,
				week_52_high          DOUBLE PRECISION,
				week_52_low           DOUBLE PRECISION,
				latest_close_date     TEXT NOT NULL,
				lower_qrt_52wk_bound  DOUBLE PRECISION,
				lower_qrt_ind         INTEGER NOT NULL,
				up_vs_pri_day_vs_8day INTEGER NOT NULL,
				up_vs_pri_wk_vs_8day  INTEGER NOT NULL,
				put_candidate_ind     INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS `+optionTable(side)+` (
				pos                   INTEGER NOT NULL,
				ticker                TEXT NOT NULL,
				side                  TEXT NOT NULL,
				strike                `+dec+` NOT NULL,
				bid                   `+dec+` NOT NULL,
				ask                   `+dec+` NOT NULL,
				implied_volatility    DOUBLE PRECISION,
				exp_date              TEXT NOT NULL,
				as_of_date            TEXT NOT NULL,
				mid                   `+dec+` NOT NULL,
				upfront_premium       `+dec+` NOT NULL,
				days_til_strike       INTEGER NOT NULL,
				money_aside           `+dec+` NOT NULL,
				raw_return            `+dec+` NOT NULL,
				annualized_return     `+dec+` NOT NULL,
				put_candidate_ind     INTEGER NOT NULL,
				price_strike_discount DOUBLE PRECISION
			)`,
		)
	}

	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(s), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (r *SQLRecorder) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, r.d.txOpts)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Warnf("rollback failed: %v", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// insertAll prepares query once and executes it for every arg.
func insertAll[T any](ctx context.Context, tx *sqlx.Tx, query string, args []T) error {
	if len(args) == 0 {
		return nil
	}
	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare %q: %w", firstLine(query), err)
	}
	defer stmt.Close()
	for _, a := range args {
		if _, err := stmt.ExecContext(ctx, a); err != nil {
			return fmt.Errorf("insert %q: %w", firstLine(query), err)
		}
	}
	return nil
}

func (r *SQLRecorder) SaveInputs(ctx context.Context, in *model.Inputs) error {
	quotes := make([]quoteRow, len(in.Quotes))
	for i, q := range in.Quotes {
		quotes[i] = toQuoteRow(i, q)
	}
	hist := make([]histRow, len(in.History))
	for i, h := range in.History {
		hist[i] = histRow{Pos: i, Ticker: h.Ticker, HistDate: formatDate(h.Date),
			Open: h.Open, High: h.High, Low: h.Low, Close: h.Close}
	}
	dims := make([]dimRow, len(in.Snapshots))
	for i, s := range in.Snapshots {
		dims[i] = toDimRow(i, s)
	}
	holdings := make([]holdingRow, len(in.Holdings))
	for i, h := range in.Holdings {
		holdings[i] = holdingRow{Pos: i, Ticker: h.Ticker, Shares: h.Shares,
			AvgCostBasis: h.AvgCostBasis, AccountAlias: h.AccountAlias}
	}

	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{"ingest_runs", "option_quotes", "stock_hist", "stock_dim", "holdings"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		if err := insertAll(ctx, tx, `INSERT INTO option_quotes
			(pos, ticker, side, strike, bid, ask, implied_volatility, exp_date, as_of_date)
			VALUES (:pos, :ticker, :side, :strike, :bid, :ask, :implied_volatility, :exp_date, :as_of_date)`, quotes); err != nil {
			return err
		}
		if err := insertAll(ctx, tx, `INSERT INTO stock_hist
			(pos, ticker, hist_date, open, high, low, close)
			VALUES (:pos, :ticker, :hist_date, :open, :high, :low, :close)`, hist); err != nil {
			return err
		}
		if err := insertAll(ctx, tx, `INSERT INTO stock_dim
			(pos, ticker, current_price, week_52_high, week_52_low, latest_close_date)
			VALUES (:pos, :ticker, :current_price, :week_52_high, :week_52_low, :latest_close_date)`, dims); err != nil {
			return err
		}
		if err := insertAll(ctx, tx, `INSERT INTO holdings
			(pos, ticker, shares, avg_cost_basis, account_alias)
			VALUES (:pos, :ticker, :shares, :avg_cost_basis, :account_alias)`, holdings); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO ingest_runs (ingested_at, quotes, snapshots) VALUES (?, ?, ?)`),
			formatTS(in.IngestedAt.UTC()), len(in.Quotes), len(in.Snapshots))
		return err
	})
}

func (r *SQLRecorder) LoadInputs(ctx context.Context) (*model.Inputs, error) {
	in := &model.Inputs{}
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		var ingestedAt string
		if err := tx.GetContext(ctx, &ingestedAt, `SELECT ingested_at FROM ingest_runs`); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNoInputs
			}
			return fmt.Errorf("load ingest run: %w", err)
		}
		t, err := parseTS(ingestedAt)
		if err != nil {
			return err
		}
		in.IngestedAt = t

		var quotes []quoteRow
		if err := tx.SelectContext(ctx, &quotes, `SELECT pos, ticker, side, strike, bid, ask,
			implied_volatility, exp_date, as_of_date FROM option_quotes ORDER BY pos`); err != nil {
			return fmt.Errorf("load quotes: %w", err)
		}
		for _, row := range quotes {
			q, err := row.model()
			if err != nil {
				return err
			}
			in.Quotes = append(in.Quotes, q)
		}

		var hist []histRow
		if err := tx.SelectContext(ctx, &hist, `SELECT pos, ticker, hist_date, open, high, low, close
			FROM stock_hist ORDER BY pos`); err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		for _, row := range hist {
			d, err := parseDate(row.HistDate)
			if err != nil {
				return err
			}
			in.History = append(in.History, model.PriceObservation{Ticker: row.Ticker, Date: d,
				Open: row.Open, High: row.High, Low: row.Low, Close: row.Close})
		}

		var dims []dimRow
		if err := tx.SelectContext(ctx, &dims, `SELECT pos, ticker, current_price, week_52_high,
			week_52_low, latest_close_date FROM stock_dim ORDER BY pos`); err != nil {
			return fmt.Errorf("load snapshots: %w", err)
		}
		for _, row := range dims {
			s, err := row.model()
			if err != nil {
				return err
			}
			in.Snapshots = append(in.Snapshots, s)
		}

		var holdings []holdingRow
		if err := tx.SelectContext(ctx, &holdings, `SELECT pos, ticker, shares, avg_cost_basis,
			account_alias FROM holdings ORDER BY pos`); err != nil {
			return fmt.Errorf("load holdings: %w", err)
		}
		for _, row := range holdings {
			in.Holdings = append(in.Holdings, model.Holding{Ticker: row.Ticker, Shares: row.Shares,
				AvgCostBasis: row.AvgCostBasis, AccountAlias: row.AccountAlias})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return in, nil
}

func (r *SQLRecorder) ReplaceResults(ctx context.Context, res *model.ScreenResult) error {
	candidates := make([]map[string]interface{}, len(res.Candidates))
	for i, c := range res.Candidates {
		candidates[i] = candidateArgs(i, c)
	}
	options := make([]map[string]interface{}, len(res.Options))
	for i, o := range res.Options {
		options[i] = optionArgs(i, o)
	}
	run := runRow{
		RunID:            res.RunID,
		Side:             string(res.Side),
		RanAt:            formatTS(res.RanAt.UTC()),
		Quotes:           res.Stats.Quotes,
		Tickers:          res.Stats.Tickers,
		Candidates:       res.Stats.Candidates,
		MissingSnapshots: res.Stats.MissingSnapshots,
		InvalidQuotes:    res.Stats.InvalidQuotes,
		Ranked:           res.Stats.Ranked,
	}

	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{candidateTable(res.Side), optionTable(res.Side)} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		if err := insertAll(ctx, tx, `INSERT INTO `+candidateTable(res.Side)+`
			(pos, ticker, current_price, week_52_high, week_52_low, latest_close_date,
			 lower_qrt_52wk_bound, lower_qrt_ind, up_vs_pri_day_vs_8day, up_vs_pri_wk_vs_8day, put_candidate_ind)
			VALUES (:pos, :ticker, :current_price, :week_52_high, :week_52_low, :latest_close_date,
			 :lower_qrt_52wk_bound, :lower_qrt_ind, :up_vs_pri_day_vs_8day, :up_vs_pri_wk_vs_8day, :put_candidate_ind)`,
			candidates); err != nil {
			return err
		}
		if err := insertAll(ctx, tx, `INSERT INTO `+optionTable(res.Side)+`
			(pos, ticker, side, strike, bid, ask, implied_volatility, exp_date, as_of_date,
			 mid, upfront_premium, days_til_strike, money_aside, raw_return, annualized_return,
			 put_candidate_ind, price_strike_discount)
			VALUES (:pos, :ticker, :side, :strike, :bid, :ask, :implied_volatility, :exp_date, :as_of_date,
			 :mid, :upfront_premium, :days_til_strike, :money_aside, :raw_return, :annualized_return,
			 :put_candidate_ind, :price_strike_discount)`,
			options); err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO screen_runs
			(run_id, side, ran_at, quotes, tickers, candidates, missing_snapshots, invalid_quotes, ranked)
			VALUES (:run_id, :side, :ran_at, :quotes, :tickers, :candidates, :missing_snapshots, :invalid_quotes, :ranked)`,
			run); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
		return nil
	})
}

func (r *SQLRecorder) LoadResults(ctx context.Context, side model.Side) (*model.ScreenResult, error) {
	var res *model.ScreenResult
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		var run runRow
		err := tx.GetContext(ctx, &run, tx.Rebind(`SELECT run_id, side, ran_at, quotes, tickers, candidates,
			missing_snapshots, invalid_quotes, ranked FROM screen_runs
			WHERE side = ? ORDER BY ran_at DESC LIMIT 1`), string(side))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoResults
		}
		if err != nil {
			return fmt.Errorf("load run: %w", err)
		}
		ranAt, err := parseTS(run.RanAt)
		if err != nil {
			return err
		}
		res = &model.ScreenResult{
			RunID: run.RunID,
			Side:  side,
			RanAt: ranAt,
			Stats: model.ScreenStats{
				Quotes:           run.Quotes,
				Tickers:          run.Tickers,
				Candidates:       run.Candidates,
				MissingSnapshots: run.MissingSnapshots,
				InvalidQuotes:    run.InvalidQuotes,
				Ranked:           run.Ranked,
			},
		}

		var candidates []candidateRow
		if err := tx.SelectContext(ctx, &candidates, `SELECT pos, ticker, current_price,
			week_52_high, week_52_low, latest_close_date, lower_qrt_52wk_bound, lower_qrt_ind,
			up_vs_pri_day_vs_8day, up_vs_pri_wk_vs_8day, put_candidate_ind
			FROM `+candidateTable(side)+` ORDER BY pos`); err != nil {
			return fmt.Errorf("load candidates: %w", err)
		}
		for _, row := range candidates {
			c, err := row.model()
			if err != nil {
				return err
			}
			res.Candidates = append(res.Candidates, c)
		}

		var options []optionRow
		if err := tx.SelectContext(ctx, &options, `SELECT pos, ticker, side, strike, bid, ask,
			implied_volatility, exp_date, as_of_date, mid, upfront_premium, days_til_strike, money_aside,
			raw_return, annualized_return, put_candidate_ind, price_strike_discount
			FROM `+optionTable(side)+` ORDER BY pos`); err != nil {
			return fmt.Errorf("load options: %w", err)
		}
		for _, row := range options {
			o, err := row.model()
			if err != nil {
				return err
			}
			res.Options = append(res.Options, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *SQLRecorder) Close() error {
	logger.Infof("closing %s recorder", r.d.driver)
	return r.db.Close()
}
