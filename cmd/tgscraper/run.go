package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"tgscraper/pkg/auth"
	"tgscraper/pkg/config"
	"tgscraper/pkg/logger"
	"tgscraper/pkg/scraper"
	"tgscraper/pkg/telegram"
	"tgscraper/pkg/ui"
)

var (
	// Run command flags
	channelList   string
	outputDir     string
	outputFormat  string
	messageLimit  int
	searchQuery   string
	searchLimit   int
	downloadMedia bool
	mediaLimit    int
	monitorFor    time.Duration
	accountPhone  string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape the channels in the channel list",
	Long: `Scrape every channel listed in the channel list file.

For each channel the tool collects metadata, scrapes recent message
history, and optionally searches messages, downloads media, and monitors
for new messages. Results are exported as timestamped CSV or XLSX files.

This command requires Telegram API credentials configured through:
  - Stored credentials (use 'tgscraper auth login' to store)
  - Environment variables (TELEGRAM_API_ID, TELEGRAM_API_HASH, TELEGRAM_PHONE)
  - Configuration file

The first run prompts for the login code Telegram sends to the account;
afterwards the saved session is reused.`,
	Example: `  # Scrape the default list.txt with default settings
  tgscraper run

  # Scrape 500 messages per channel into XLSX files
  tgscraper run --messages 500 --format xlsx

  # Search channels and download media
  tgscraper run --search "crypto" --download-media

  # Monitor each channel for five minutes after scraping
  tgscraper run --monitor 5m

  # Use a specific stored account
  tgscraper run --account +15551234567`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runScrape(cmd)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&channelList, "list", "l", "", "channel list file (default list.txt)")
	runCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for exports (default output)")
	runCmd.Flags().StringVarP(&outputFormat, "format", "f", "", "export format: csv or xlsx (default csv)")
	runCmd.Flags().IntVarP(&messageLimit, "messages", "m", 0, "number of messages to scrape per channel")
	runCmd.Flags().StringVarP(&searchQuery, "search", "s", "", "search channels for this query")
	runCmd.Flags().IntVar(&searchLimit, "search-limit", 0, "maximum search results per channel")
	runCmd.Flags().BoolVarP(&downloadMedia, "download-media", "d", false, "download media attachments")
	runCmd.Flags().IntVar(&mediaLimit, "media-limit", 0, "number of recent messages to check for media")
	runCmd.Flags().DurationVar(&monitorFor, "monitor", 0, "monitor each channel for new messages (e.g. 5m)")
	runCmd.Flags().StringVarP(&accountPhone, "account", "a", "", "use specific stored account by phone number")
}

func runScrape(cmd *cobra.Command) {
	// Build flags map from command line
	flags := make(map[string]interface{})
	if channelList != "" {
		flags["list"] = channelList
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if outputFormat != "" {
		flags["format"] = outputFormat
	}
	if messageLimit > 0 {
		flags["messages"] = messageLimit
	}
	if searchQuery != "" {
		flags["search"] = searchQuery
	}
	if searchLimit > 0 {
		flags["search-limit"] = searchLimit
	}
	if cmd.Flags().Changed("download-media") {
		flags["download-media"] = downloadMedia
	}
	if mediaLimit > 0 {
		flags["media-limit"] = mediaLimit
	}
	if monitorFor > 0 {
		flags["monitor"] = monitorFor
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}
	if logFile != "" {
		flags["log-file"] = logFile
	}

	// Load configuration
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("Telegram Scraper starting")

	if err := resolveCredentials(cfg, log); err != nil {
		os.Exit(1)
	}

	// Interrupt handling: first signal cancels the run, the run winds down
	// and still exits cleanly
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := telegram.Options{
		APIID:      cfg.Telegram.APIID,
		APIHash:    cfg.Telegram.APIHash,
		Phone:      cfg.Telegram.Phone,
		SessionDir: cfg.Telegram.SessionDir,
		Logger:     log,
	}

	err = telegram.Run(ctx, opts, func(ctx context.Context, client telegram.Client) error {
		s, err := scraper.New(client, cfg, log)
		if err != nil {
			return err
		}
		return s.Run(ctx)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			log.Warn("interrupted, shutting down")
			ui.PrintWarning("Interrupted")
			return
		}
		log.WithError(err).Error("scrape run failed")
		ui.PrintError("Scrape run failed", err.Error())
		os.Exit(1)
	}

	log.Info("scrape run completed")
	ui.PrintSuccess("Done")
}

// resolveCredentials fills in API credentials from the credential store when
// config and environment did not provide them.
func resolveCredentials(cfg *config.Config, log logger.Logger) error {
	credManager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		return err
	}

	var account *auth.Account

	if accountPhone != "" {
		account, err = credManager.Retrieve(accountPhone)
		if err != nil {
			ui.PrintError("Account not found", accountPhone)
			ui.PrintInfo("Available accounts", "Use 'tgscraper auth list' to see stored accounts")
			return err
		}
	} else if cfg.Telegram.APIID != 0 && cfg.Telegram.APIHash != "" {
		// Credentials from config or environment
		log.Info("using credentials from configuration")
		return nil
	} else {
		account, err = credManager.RetrieveDefault()
		if err != nil {
			log.Error("no credentials found")
			ui.PrintError("No Telegram API credentials found", "")
			fmt.Println("\nTo store credentials securely, run:")
			fmt.Println("  tgscraper auth login")
			fmt.Println("\nYou can also set environment variables:")
			fmt.Println("  export TELEGRAM_API_ID=your_api_id")
			fmt.Println("  export TELEGRAM_API_HASH=your_api_hash")
			fmt.Println("  export TELEGRAM_PHONE=+15551234567")
			return err
		}
	}

	cfg.Telegram.APIID = account.APIID
	cfg.Telegram.APIHash = account.APIHash
	if account.Phone != "" {
		cfg.Telegram.Phone = account.Phone
	}
	log.WithField("account", account.Phone).Info("using stored credentials")
	ui.PrintInfo("Using account", account.Phone)
	return nil
}
