package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
database:
  url: postgres://localhost/medical
`))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Database.ConnectAttempts)
	assert.Equal(t, 3*time.Second, cfg.Database.ConnectDelay)
	assert.Equal(t, DefaultChannels, cfg.Scraper.Channels)
	assert.Equal(t, 100, cfg.Scraper.BackfillLimit)
	assert.Equal(t, int64(20*1024*1024), cfg.Scraper.MaxMediaBytes)
	assert.Equal(t, "data/raw/telegram_media", cfg.Scraper.MediaDir)
	assert.Equal(t, "session.json", cfg.Telegram.SessionFile)
	assert.Equal(t, 60*time.Second, cfg.Detector.Timeout)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigKeepsUnboundedBackfill(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
database:
  url: postgres://localhost/medical
scraper:
  backfill_limit: 0
`))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Scraper.BackfillLimit)
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("MEDPIPE_TEST_DB_URL", "postgres://db:5432/medical")
	t.Setenv("MEDPIPE_TEST_API_HASH", "abc123")

	cfg, err := LoadConfig(writeConfig(t, `
telegram:
  api_id: 42
  api_hash: ${MEDPIPE_TEST_API_HASH}
  phone: "+251900000000"
database:
  driver: sqlite
  url: ${MEDPIPE_TEST_DB_URL}
  connect_delay: 250ms
scraper:
  channels: [who_news]
  max_media_bytes: 1024
detector:
  interval: 5m
`))
	require.NoError(t, err)

	assert.Equal(t, "abc123", cfg.Telegram.APIHash)
	assert.Equal(t, "postgres://db:5432/medical", cfg.Database.URL)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.Database.ConnectDelay)
	assert.Equal(t, []string{"who_news"}, cfg.Scraper.Channels)
	assert.Equal(t, int64(1024), cfg.Scraper.MaxMediaBytes)
	assert.Equal(t, 5*time.Minute, cfg.Detector.Interval)
	assert.NoError(t, cfg.ValidateTelegram())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "scraper: {}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url")

	_, err = LoadConfig(writeConfig(t, "database:\n  url: x\n  driver: mysql\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.driver")

	_, err = LoadConfig(writeConfig(t, "database: [\n"))
	require.Error(t, err)
}

func TestValidateTelegram(t *testing.T) {
	cfg := &Config{}
	err := cfg.ValidateTelegram()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram.api_id")
	assert.Contains(t, err.Error(), "telegram.api_hash")
	assert.Contains(t, err.Error(), "telegram.phone")
}
