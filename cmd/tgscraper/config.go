package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"tgscraper/pkg/config"
	"tgscraper/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage Telegram Scraper configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.tgscraper.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the current configuration including values from all sources:
  - Command line flags
  - Environment variables
  - Configuration file
  - Default values

Sensitive values like the API hash are masked for security.`,
	Run: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Required fields
  - Value types and ranges
  - Path accessibility`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = ".tgscraper.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	exampleConfig := `# Telegram Scraper Configuration File
#
# This file contains all available configuration options.
# Credentials can also come from environment variables
# (TELEGRAM_API_ID, TELEGRAM_API_HASH, TELEGRAM_PHONE) or from
# 'tgscraper auth login'.

# Telegram credentials and session location
telegram:
  # API ID from https://my.telegram.org (required)
  api_id: 0

  # API hash from https://my.telegram.org (required)
  api_hash: ""

  # Phone number in international format
  phone: ""

  # Directory for the persistent session file
  session_dir: "sessions"

# Retry and politeness configuration
rate_limit:
  # Maximum retry attempts for transient errors
  max_attempts: 5

  # Base delay for exponential backoff
  base_delay: 2s

  # How many flood waits one operation honors before giving up
  # (0 means unlimited)
  max_flood_waits: 5

  # Fixed pause between history pages
  politeness_delay: 500ms

# Per-channel scraping options
scrape:
  # Scrape message history
  messages: true

  # Messages to scrape per channel
  message_limit: 100

  # Search channels for this query (empty disables search)
  search_query: ""

  # Maximum search results per channel
  search_limit: 500

  # Download media attachments
  download_media: false

  # Recent messages to check for media
  media_limit: 20

  # Monitor each channel for new messages (0 disables)
  monitor_duration: 0s

# Output settings
output:
  # Directory for CSV/XLSX exports
  directory: "output"

  # Export format: csv or xlsx
  format: "csv"

  # Directory for downloaded media
  downloads_dir: "downloads"

  # Channel list file, one username per line
  channel_list: "list.txt"

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log file path (empty logs to stdout only)
  file: "tgscraper.log"
`

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Run 'tgscraper auth login' to store your API credentials")
	fmt.Println("2. Add channel usernames to list.txt")
	fmt.Println("3. Start scraping with 'tgscraper run'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	// Create a sanitized version for display
	displayCfg := *cfg

	if displayCfg.Telegram.APIHash != "" {
		if len(displayCfg.Telegram.APIHash) > 8 {
			displayCfg.Telegram.APIHash = displayCfg.Telegram.APIHash[:4] + "..." + displayCfg.Telegram.APIHash[len(displayCfg.Telegram.APIHash)-4:]
		} else {
			displayCfg.Telegram.APIHash = "***"
		}
	}

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	fmt.Println(ui.Cyan("Current Configuration"))
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (TELEGRAM_*, TGSCRAPER_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (not specified)")
	}
	fmt.Println("4. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if configFile == "" {
		possiblePaths := []string{
			".tgscraper.yaml",
			".tgscraper.yml",
			filepath.Join(os.Getenv("HOME"), ".tgscraper.yaml"),
			filepath.Join(os.Getenv("HOME"), ".config", "tgscraper", "config.yaml"),
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}

		if configFile == "" {
			ui.PrintError("No configuration file found", "Specify a file with --config flag")
			os.Exit(1)
		}
	}

	ui.PrintInfo("Validating configuration", configFile)

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		os.Exit(1)
	}

	warnings := []string{}
	errors := []string{}

	// Credentials may still come from the credential store, so their
	// absence is a warning, not an error
	if cfg.Telegram.APIID == 0 {
		warnings = append(warnings, "Telegram API ID not configured")
	}
	if cfg.Telegram.APIHash == "" {
		warnings = append(warnings, "Telegram API hash not configured")
	}
	if cfg.Telegram.Phone == "" {
		warnings = append(warnings, "Phone number not configured")
	}

	if cfg.Output.Directory != "" {
		if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("Cannot create output directory: %v", err))
		}
	}

	if cfg.Logging.File != "" {
		dir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(dir, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}

	if len(errors) > 0 {
		ui.PrintError("Configuration has errors:", "")
		for _, err := range errors {
			fmt.Printf("  - %s\n", err)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, warn := range warnings {
			fmt.Printf("  - %s\n", warn)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Channel list: %s\n", cfg.Output.ChannelList)
	fmt.Printf("  Output directory: %s\n", cfg.Output.Directory)
	fmt.Printf("  Export format: %s\n", cfg.Output.Format)
	fmt.Printf("  Message limit: %d\n", cfg.Scrape.MessageLimit)
	fmt.Printf("  Max retries: %d\n", cfg.RateLimit.MaxAttempts)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}
