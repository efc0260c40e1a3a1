package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the Telegram scraper
type Config struct {
	// Telegram API credentials and session location
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`

	// Retry and politeness configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Per-channel scraping options
	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// TelegramConfig holds Telegram-specific configuration
type TelegramConfig struct {
	APIID      int    `yaml:"api_id" json:"api_id"`
	APIHash    string `yaml:"api_hash" json:"api_hash"`
	Phone      string `yaml:"phone" json:"phone"`
	SessionDir string `yaml:"session_dir" json:"session_dir"`
}

// RateLimitConfig holds retry and politeness configuration
type RateLimitConfig struct {
	// MaxAttempts caps transient-error retries per operation
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	// BaseDelay seeds the exponential backoff for transient errors
	BaseDelay time.Duration `yaml:"base_delay" json:"base_delay"`
	// MaxFloodWaits caps how many flood-wait signals one operation will
	// honor before giving up (0 means unlimited)
	MaxFloodWaits int `yaml:"max_flood_waits" json:"max_flood_waits"`
	// PolitenessDelay is the fixed pause between successive history pages
	PolitenessDelay time.Duration `yaml:"politeness_delay" json:"politeness_delay"`
}

// ScrapeConfig holds per-channel feature gates and limits
type ScrapeConfig struct {
	Messages        bool          `yaml:"messages" json:"messages"`
	MessageLimit    int           `yaml:"message_limit" json:"message_limit"`
	SearchQuery     string        `yaml:"search_query" json:"search_query"`
	SearchLimit     int           `yaml:"search_limit" json:"search_limit"`
	DownloadMedia   bool          `yaml:"download_media" json:"download_media"`
	MediaLimit      int           `yaml:"media_limit" json:"media_limit"`
	MonitorDuration time.Duration `yaml:"monitor_duration" json:"monitor_duration"`
}

// OutputConfig holds artifact and download directory configuration
type OutputConfig struct {
	Directory    string `yaml:"directory" json:"directory"`
	Format       string `yaml:"format" json:"format"`
	DownloadsDir string `yaml:"downloads_dir" json:"downloads_dir"`
	ChannelList  string `yaml:"channel_list" json:"channel_list"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults. The retry
// numbers mirror the service-friendly values the tool has always used:
// 5 attempts, 2s base delay, half-second politeness pause.
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			SessionDir: "sessions",
		},
		RateLimit: RateLimitConfig{
			MaxAttempts:     5,
			BaseDelay:       2 * time.Second,
			MaxFloodWaits:   5,
			PolitenessDelay: 500 * time.Millisecond,
		},
		Scrape: ScrapeConfig{
			Messages:      true,
			MessageLimit:  100,
			SearchLimit:   500,
			DownloadMedia: false,
			MediaLimit:    20,
		},
		Output: OutputConfig{
			Directory:    "output",
			Format:       "csv",
			DownloadsDir: "downloads",
			ChannelList:  "list.txt",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "tgscraper.log",
		},
	}
}

// LoadFromEnv loads configuration from environment variables. The credential
// names match the original TELEGRAM_* convention so existing .env files keep
// working.
func (c *Config) LoadFromEnv() error {
	if apiID := os.Getenv("TELEGRAM_API_ID"); apiID != "" {
		val, err := strconv.Atoi(apiID)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_API_ID: %w", err)
		}
		c.Telegram.APIID = val
	}
	if apiHash := os.Getenv("TELEGRAM_API_HASH"); apiHash != "" {
		c.Telegram.APIHash = apiHash
	}
	if phone := os.Getenv("TELEGRAM_PHONE"); phone != "" {
		c.Telegram.Phone = phone
	}

	if sessionDir := os.Getenv("TGSCRAPER_SESSION_DIR"); sessionDir != "" {
		c.Telegram.SessionDir = sessionDir
	}
	if outputDir := os.Getenv("TGSCRAPER_OUTPUT_DIR"); outputDir != "" {
		c.Output.Directory = outputDir
	}
	if format := os.Getenv("TGSCRAPER_FORMAT"); format != "" {
		c.Output.Format = format
	}
	if list := os.Getenv("TGSCRAPER_CHANNEL_LIST"); list != "" {
		c.Output.ChannelList = list
	}
	if logLevel := os.Getenv("TGSCRAPER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".tgscraper.yaml",
		".tgscraper.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "tgscraper", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "tgscraper", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".tgscraper.yaml"),
		filepath.Join(os.Getenv("HOME"), ".tgscraper.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. Credentials are not checked
// here: they may still arrive from the credential store or an interactive
// prompt after loading.
func (c *Config) Validate() error {
	var errs []error

	if c.RateLimit.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max attempts must be positive"))
	}
	if c.RateLimit.BaseDelay <= 0 {
		errs = append(errs, errors.New("base delay must be positive"))
	}
	if c.RateLimit.MaxFloodWaits < 0 {
		errs = append(errs, errors.New("max flood waits cannot be negative"))
	}
	if c.RateLimit.PolitenessDelay < 0 {
		errs = append(errs, errors.New("politeness delay cannot be negative"))
	}

	if c.Scrape.MessageLimit <= 0 {
		errs = append(errs, errors.New("message limit must be positive"))
	}
	if c.Scrape.SearchLimit <= 0 {
		errs = append(errs, errors.New("search limit must be positive"))
	}
	if c.Scrape.MediaLimit <= 0 {
		errs = append(errs, errors.New("media limit must be positive"))
	}
	if c.Scrape.MonitorDuration < 0 {
		errs = append(errs, errors.New("monitor duration cannot be negative"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.DownloadsDir == "" {
		errs = append(errs, errors.New("downloads directory is required"))
	}
	if c.Output.ChannelList == "" {
		errs = append(errs, errors.New("channel list path is required"))
	}
	switch strings.ToLower(c.Output.Format) {
	case "csv", "xlsx":
	default:
		errs = append(errs, fmt.Errorf("unknown export format: %s", c.Output.Format))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if list, ok := flags["list"].(string); ok && list != "" {
		c.Output.ChannelList = list
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.Directory = outputDir
	}
	if format, ok := flags["format"].(string); ok && format != "" {
		c.Output.Format = format
	}
	if limit, ok := flags["messages"].(int); ok && limit > 0 {
		c.Scrape.MessageLimit = limit
	}
	if query, ok := flags["search"].(string); ok && query != "" {
		c.Scrape.SearchQuery = query
	}
	if limit, ok := flags["search-limit"].(int); ok && limit > 0 {
		c.Scrape.SearchLimit = limit
	}
	if download, ok := flags["download-media"].(bool); ok {
		c.Scrape.DownloadMedia = download
	}
	if limit, ok := flags["media-limit"].(int); ok && limit > 0 {
		c.Scrape.MediaLimit = limit
	}
	if dur, ok := flags["monitor"].(time.Duration); ok && dur > 0 {
		c.Scrape.MonitorDuration = dur
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile, ok := flags["log-file"].(string); ok && logFile != "" {
		c.Logging.File = logFile
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".tgscraper.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
