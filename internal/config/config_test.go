package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OptionSentinel/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "yahoo", cfg.Provider.Kind)
	assert.Equal(t, 3, cfg.Provider.Expirations)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, []string{"put"}, cfg.Screen.Sides)
	assert.Equal(t, "drop", cfg.Screen.MissingSnapshot)
	assert.Equal(t, "America/Los_Angeles", cfg.App.Timezone)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
app:
  env: production
provider:
  kind: rest
  base_url: http://md.local
  expirations: 2
database:
  driver: postgres
  postgres:
    host: yaml-host
    database: option_data
screen:
  sides: [put, call]
watchlist:
  holdings_path: data/holdings.csv
telegram:
  chat_id: 42
`)
	t.Setenv("TELEGRAM_BOT_TOKEN", "token-from-env")
	t.Setenv("POSTGRES_HOST", "pgdatabase")
	t.Setenv("SCREEN_MISSING_SNAPSHOT", "fail")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, "production", cfg.Sentry.Environment)
	assert.Equal(t, "rest", cfg.Provider.Kind)
	assert.Equal(t, 2, cfg.Provider.Expirations)
	assert.Equal(t, "token-from-env", cfg.Telegram.BotToken)
	assert.Equal(t, int64(42), cfg.Telegram.ChatID)
	assert.Equal(t, "pgdatabase", cfg.Database.Postgres.Host)
	assert.Equal(t, "fail", cfg.Screen.MissingSnapshot)
	assert.Equal(t,
		"host=pgdatabase port=5432 user= password= dbname=option_data sslmode=disable",
		cfg.Database.DSN())

	sides, err := cfg.ScreenSides()
	require.NoError(t, err)
	assert.Equal(t, []model.Side{model.SidePut, model.SideCall}, sides)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "provider: [unterminated"))
	assert.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"unknown provider", func(c *Config) { c.Provider.Kind = "bloomberg" }, "provider.kind"},
		{"rest without url", func(c *Config) { c.Provider.Kind = "rest" }, "base_url"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"postgres without host", func(c *Config) { c.Database.Driver = "postgres" }, "postgres.host"},
		{"bad side", func(c *Config) { c.Screen.Sides = []string{"straddle"} }, "screen.sides"},
		{"calls without holdings", func(c *Config) { c.Screen.Sides = []string{"call"} }, "holdings_path"},
		{"bad policy", func(c *Config) { c.Screen.MissingSnapshot = "ignore" }, "missing_snapshot"},
		{"bad cron", func(c *Config) { c.Schedule.ScreenCron = "every day" }, "schedule.screen_cron"},
		{"half telegram", func(c *Config) { c.Telegram.BotToken = "x" }, "telegram"},
		{"bad timezone", func(c *Config) { c.App.Timezone = "Mars/Olympus" }, "timezone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.applyDefaults()
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}
