package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 5, cfg.RateLimit.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.BaseDelay)
	assert.Equal(t, 5, cfg.RateLimit.MaxFloodWaits)
	assert.Equal(t, 500*time.Millisecond, cfg.RateLimit.PolitenessDelay)

	assert.True(t, cfg.Scrape.Messages)
	assert.Equal(t, 100, cfg.Scrape.MessageLimit)
	assert.False(t, cfg.Scrape.DownloadMedia)

	assert.Equal(t, "output", cfg.Output.Directory)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.Equal(t, "list.txt", cfg.Output.ChannelList)
	assert.Equal(t, "sessions", cfg.Telegram.SessionDir)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TELEGRAM_API_ID", "123456")
	t.Setenv("TELEGRAM_API_HASH", "abc123hash")
	t.Setenv("TELEGRAM_PHONE", "+15551234567")
	t.Setenv("TGSCRAPER_FORMAT", "xlsx")
	t.Setenv("TGSCRAPER_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 123456, cfg.Telegram.APIID)
	assert.Equal(t, "abc123hash", cfg.Telegram.APIHash)
	assert.Equal(t, "+15551234567", cfg.Telegram.Phone)
	assert.Equal(t, "xlsx", cfg.Output.Format)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidAPIID(t *testing.T) {
	t.Setenv("TELEGRAM_API_ID", "not-a-number")

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"zero attempts", func(c *Config) { c.RateLimit.MaxAttempts = 0 }, true},
		{"negative flood waits", func(c *Config) { c.RateLimit.MaxFloodWaits = -1 }, true},
		{"zero message limit", func(c *Config) { c.Scrape.MessageLimit = 0 }, true},
		{"bad format", func(c *Config) { c.Output.Format = "pdf" }, true},
		{"uppercase format accepted", func(c *Config) { c.Output.Format = "XLSX" }, false},
		{"missing channel list", func(c *Config) { c.Output.ChannelList = "" }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"unlimited flood waits", func(c *Config) { c.RateLimit.MaxFloodWaits = 0 }, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultConfig()
			test.mutate(cfg)
			err := cfg.Validate()
			if test.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Telegram.APIID = 42
	cfg.Scrape.MessageLimit = 250
	cfg.Output.Format = "xlsx"
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))

	assert.Equal(t, 42, loaded.Telegram.APIID)
	assert.Equal(t, 250, loaded.Scrape.MessageLimit)
	assert.Equal(t, "xlsx", loaded.Output.Format)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"list":           "channels.txt",
		"output":         "exports",
		"format":         "xlsx",
		"messages":       500,
		"search":         "bitcoin",
		"search-limit":   50,
		"download-media": true,
		"media-limit":    10,
		"monitor":        5 * time.Minute,
		"log-level":      "debug",
	})

	assert.Equal(t, "channels.txt", cfg.Output.ChannelList)
	assert.Equal(t, "exports", cfg.Output.Directory)
	assert.Equal(t, "xlsx", cfg.Output.Format)
	assert.Equal(t, 500, cfg.Scrape.MessageLimit)
	assert.Equal(t, "bitcoin", cfg.Scrape.SearchQuery)
	assert.Equal(t, 50, cfg.Scrape.SearchLimit)
	assert.True(t, cfg.Scrape.DownloadMedia)
	assert.Equal(t, 10, cfg.Scrape.MediaLimit)
	assert.Equal(t, 5*time.Minute, cfg.Scrape.MonitorDuration)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	fileCfg := DefaultConfig()
	fileCfg.Scrape.MessageLimit = 200
	fileCfg.Output.Format = "xlsx"
	require.NoError(t, fileCfg.Save(path))

	t.Setenv("TGSCRAPER_FORMAT", "csv")

	// flags beat env, env beats file
	cfg, err := Load(path, map[string]interface{}{"messages": 300})
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.Scrape.MessageLimit)
	assert.Equal(t, "csv", cfg.Output.Format)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  format: pdf\n"), 0644))

	_, err := Load(path, nil)
	assert.Error(t, err)
}
