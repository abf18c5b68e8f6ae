package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
	_ "time/tzdata" // containers often ship without zoneinfo

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"OptionSentinel/internal/model"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Provider  ProviderConfig  `yaml:"provider"`
	Watchlist WatchlistConfig `yaml:"watchlist"`
	Database  DatabaseConfig  `yaml:"database"`
	Screen    ScreenConfig    `yaml:"screen"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Export    ExportConfig    `yaml:"export"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	API       APIConfig       `yaml:"api"`
	Sentry    SentryConfig    `yaml:"sentry"`
	Proxy     string          `yaml:"proxy" envconfig:"HTTPS_PROXY"`
}

type AppConfig struct {
	Env      string `yaml:"env" envconfig:"APP_ENV"`
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	// Timezone is where ingest timestamps are taken.
	Timezone string `yaml:"timezone" envconfig:"APP_TIMEZONE"`
}

type ProviderConfig struct {
	Kind              string  `yaml:"kind" envconfig:"PROVIDER_KIND"` // yahoo|rest|mock
	BaseURL           string  `yaml:"base_url" envconfig:"PROVIDER_BASE_URL"`
	APIKey            string  `yaml:"api_key" envconfig:"PROVIDER_API_KEY"`
	Expirations       int     `yaml:"expirations" envconfig:"PROVIDER_EXPIRATIONS"`
	HistoryDays       int     `yaml:"history_days" envconfig:"PROVIDER_HISTORY_DAYS"`
	RequestsPerSecond float64 `yaml:"requests_per_second" envconfig:"PROVIDER_RPS"`
	MockPrice         float64 `yaml:"mock_price" envconfig:"PROVIDER_MOCK_PRICE"`
}

type WatchlistConfig struct {
	PutPath      string `yaml:"put_path" envconfig:"WATCHLIST_PUT_PATH"`
	HoldingsPath string `yaml:"holdings_path" envconfig:"WATCHLIST_HOLDINGS_PATH"`
}

type DatabaseConfig struct {
	Driver     string         `yaml:"driver" envconfig:"DATABASE_DRIVER"` // sqlite|postgres|memory
	SQLitePath string         `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
	Postgres   PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	Host     string `yaml:"host" envconfig:"POSTGRES_HOST"`
	Port     int    `yaml:"port" envconfig:"POSTGRES_PORT"`
	User     string `yaml:"user" envconfig:"POSTGRES_USER"`
	Password string `yaml:"password" envconfig:"POSTGRES_PASSWORD"`
	Database string `yaml:"database" envconfig:"POSTGRES_DB"`
	SSLMode  string `yaml:"ssl_mode" envconfig:"POSTGRES_SSL_MODE"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// DSN returns the connection string for the configured driver.
func (c DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return c.Postgres.DSN()
	}
	return c.SQLitePath
}

type ScreenConfig struct {
	Sides []string `yaml:"sides" envconfig:"SCREEN_SIDES"`
	// MissingSnapshot is "drop" or "fail".
	MissingSnapshot string `yaml:"missing_snapshot" envconfig:"SCREEN_MISSING_SNAPSHOT"`
}

type ScheduleConfig struct {
	IngestCron string `yaml:"ingest_cron" envconfig:"CRON_INGEST"`
	ScreenCron string `yaml:"screen_cron" envconfig:"CRON_SCREEN"`
}

type ExportConfig struct {
	Dir string `yaml:"dir" envconfig:"EXPORT_DIR"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token" envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID   int64  `yaml:"chat_id" envconfig:"TELEGRAM_CHAT_ID"`
}

type APIConfig struct {
	Addr string `yaml:"addr" envconfig:"API_ADDR"`
}

type SentryConfig struct {
	DSN         string `yaml:"dsn" envconfig:"SENTRY_DSN"`
	Environment string `yaml:"environment" envconfig:"SENTRY_ENVIRONMENT"`
}

// Load reads config from a YAML file, then applies .env and environment overrides.
// A missing file or .env is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "development"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.Timezone == "" {
		c.App.Timezone = "America/Los_Angeles"
	}
	if c.Provider.Kind == "" {
		c.Provider.Kind = "yahoo"
	}
	if c.Provider.Expirations == 0 {
		c.Provider.Expirations = 3
	}
	if c.Provider.HistoryDays == 0 {
		c.Provider.HistoryDays = 365
	}
	if c.Provider.RequestsPerSecond == 0 {
		c.Provider.RequestsPerSecond = 2
	}
	if c.Watchlist.PutPath == "" {
		c.Watchlist.PutPath = "data/put_watchlist.csv"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/option_sentinel.db"
	}
	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = 5432
	}
	if c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = "disable"
	}
	if len(c.Screen.Sides) == 0 {
		c.Screen.Sides = []string{string(model.SidePut)}
	}
	if c.Screen.MissingSnapshot == "" {
		c.Screen.MissingSnapshot = "drop"
	}
	// after the US close in Pacific time, weekdays
	if c.Schedule.IngestCron == "" {
		c.Schedule.IngestCron = "0 30 13 * * 1-5"
	}
	if c.Schedule.ScreenCron == "" {
		c.Schedule.ScreenCron = "0 0 14 * * 1-5"
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "data/export"
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
	if c.Sentry.Environment == "" {
		c.Sentry.Environment = c.App.Env
	}
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.App.Timezone, err)
	}
	return loc, nil
}

// ScreenSides parses Screen.Sides.
func (c *Config) ScreenSides() ([]model.Side, error) {
	sides := make([]model.Side, 0, len(c.Screen.Sides))
	for _, s := range c.Screen.Sides {
		side, err := model.ParseSide(s)
		if err != nil {
			return nil, err
		}
		sides = append(sides, side)
	}
	return sides, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Provider.Kind {
	case "yahoo", "mock":
	case "rest":
		if c.Provider.BaseURL == "" {
			return fmt.Errorf("provider.base_url is required for the rest provider")
		}
	default:
		return fmt.Errorf("provider.kind %q is not one of yahoo, rest, mock", c.Provider.Kind)
	}
	if c.Provider.Expirations < 0 || c.Provider.HistoryDays < 0 {
		return fmt.Errorf("provider.expirations and provider.history_days must not be negative")
	}

	switch c.Database.Driver {
	case "sqlite", "memory":
	case "postgres":
		if c.Database.Postgres.Host == "" || c.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.host and database.postgres.database are required")
		}
	default:
		return fmt.Errorf("database.driver %q is not one of sqlite, postgres, memory", c.Database.Driver)
	}

	sides, err := c.ScreenSides()
	if err != nil {
		return fmt.Errorf("screen.sides: %w", err)
	}
	for _, s := range sides {
		if s == model.SideCall && c.Watchlist.HoldingsPath == "" {
			return fmt.Errorf("watchlist.holdings_path is required to screen calls")
		}
	}
	if c.Screen.MissingSnapshot != "drop" && c.Screen.MissingSnapshot != "fail" {
		return fmt.Errorf("screen.missing_snapshot must be drop or fail, got %q", c.Screen.MissingSnapshot)
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	for name, spec := range map[string]string{
		"schedule.ingest_cron": c.Schedule.IngestCron,
		"schedule.screen_cron": c.Schedule.ScreenCron,
	} {
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == 0) {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
