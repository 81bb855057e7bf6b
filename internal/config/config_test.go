package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults without file", func(t *testing.T) {
		cfg, err := LoadConfig(t.TempDir())
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1:1234", cfg.Server.Address)
		assert.Equal(t, 60*time.Second, cfg.Server.AlertCheckInterval)
		assert.Equal(t, 60*time.Second, cfg.Quotes.RefreshInterval)
		assert.Equal(t, 10*time.Second, cfg.Quotes.RequestTimeout)
		assert.Equal(t, "stocks.txt", cfg.Quotes.SymbolsFile)
		assert.Equal(t, "stocks.db", cfg.Database.DSN)
		assert.Equal(t, 4, cfg.Database.MaxOpenConns)
		assert.Equal(t, 0, cfg.Status.Port)
	})

	t.Run("File overrides defaults", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "config.yml", `
server:
  address: 0.0.0.0:4000
  alert_check_interval: 5s
quotes:
  symbols_file: /tmp/tickers.txt
  request_delay: 250ms
database:
  dsn: /var/lib/alerts.db
logger:
  level: debug
  format: json
`)

		cfg, err := LoadConfig(dir)
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0:4000", cfg.Server.Address)
		assert.Equal(t, 5*time.Second, cfg.Server.AlertCheckInterval)
		assert.Equal(t, "/tmp/tickers.txt", cfg.Quotes.SymbolsFile)
		assert.Equal(t, 250*time.Millisecond, cfg.Quotes.RequestDelay)
		assert.Equal(t, "/var/lib/alerts.db", cfg.Database.DSN)
		assert.Equal(t, "debug", cfg.Logger.Level)
		assert.Equal(t, "json", cfg.Logger.Format)
	})

	t.Run("Environment overrides file", func(t *testing.T) {
		t.Setenv("DATABASE_DSN", "env.db")
		cfg, err := LoadConfig(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, "env.db", cfg.Database.DSN)
	})

	t.Run("Invalid values rejected", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "config.yml", `
logger:
  level: verbose
`)
		_, err := LoadConfig(dir)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config")
	})
}

func TestLoadSymbols(t *testing.T) {
	t.Run("Normalizes and deduplicates", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "stocks.txt", "aapl\n\n  MSFT  \n# comment\nAAPL\nnflx\n")

		symbols, err := LoadSymbols(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"AAPL", "MSFT", "NFLX"}, symbols)
	})

	t.Run("Empty file", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "stocks.txt", "\n# nothing\n")
		_, err := LoadSymbols(path)
		assert.Error(t, err)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadSymbols(filepath.Join(t.TempDir(), "nope.txt"))
		assert.Error(t, err)
	})
}
