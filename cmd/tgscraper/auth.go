package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"tgscraper/pkg/auth"
	"tgscraper/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Telegram API credentials",
	Long: `Manage stored Telegram API credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

Never share your API hash or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [phone]",
	Short: "Store Telegram API credentials securely",
	Long: `Store Telegram API credentials securely in the system keychain or an
encrypted file.

You will be prompted for:
  - Phone number in international format (if not provided)
  - API ID
  - API hash

To get these values:
1. Log into https://my.telegram.org with your account
2. Open "API development tools"
3. Create an application if you have none
4. Copy the api_id and api_hash values`,
	Example: `  # Interactive login
  tgscraper auth login

  # Login with phone number
  tgscraper auth login +15551234567`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [phone]",
	Short: "Remove stored credentials",
	Long: `Remove stored Telegram API credentials.

If no phone number is provided, you will be shown a list of stored
accounts to choose from.`,
	Example: `  # Interactive logout
  tgscraper auth logout

  # Logout specific account
  tgscraper auth logout +15551234567`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored Telegram accounts with sanitized credential information.`,
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var phone string
	if len(args) > 0 {
		phone = args[0]
	}

	reader := bufio.NewReader(os.Stdin)

	if phone == "" {
		fmt.Print("Phone number (international format, e.g. +15551234567): ")
		input, err := reader.ReadString('\n')
		if err != nil {
			ui.PrintError("Failed to read phone number", err.Error())
			os.Exit(1)
		}
		phone = strings.TrimSpace(input)
	}

	if phone == "" {
		ui.PrintError("Phone number is required", "")
		os.Exit(1)
	}

	// Check if account already exists
	if existing, _ := manager.Retrieve(phone); existing != nil {
		fmt.Printf("Account '%s' already exists. Update credentials? (y/N): ", phone)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	var apiID int
	for {
		fmt.Print("API ID: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			ui.PrintError("Failed to read API ID", err.Error())
			os.Exit(1)
		}
		apiID, err = strconv.Atoi(strings.TrimSpace(input))
		if err == nil && apiID > 0 {
			break
		}
		fmt.Println("API ID must be a positive number, like 1234567.")
	}

	var apiHash string
	for {
		fmt.Print("API hash (hidden): ")
		apiHash, err = readPassword()
		if err != nil {
			ui.PrintError("Failed to read API hash", err.Error())
			os.Exit(1)
		}
		if len(apiHash) == 32 {
			break
		}
		fmt.Println("That doesn't look like a valid api_hash; it should be 32 hex characters.")
		fmt.Print("Try again? (Y/n): ")
		retry, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(retry)) == "n" {
			os.Exit(1)
		}
	}

	account := &auth.Account{
		Phone:   phone,
		APIID:   apiID,
		APIHash: apiHash,
	}

	if err := manager.Store(account); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Account saved: " + phone)
	fmt.Println("\nThe first scrape run will prompt for the login code Telegram")
	fmt.Println("sends to this account; after that the saved session is reused.")
	fmt.Println("\nStart scraping:")
	fmt.Println("  tgscraper run")
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	if len(args) == 0 {
		accounts, err := manager.List()
		if err != nil || len(accounts) == 0 {
			ui.PrintError("No stored accounts found", "")
			return
		}

		if len(accounts) == 1 {
			account := accounts[0]
			reader := bufio.NewReader(os.Stdin)
			fmt.Printf("Remove account '%s'? (y/N): ", account.Phone)
			input, _ := reader.ReadString('\n')
			if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
				return
			}

			if err := manager.Delete(account.Phone); err != nil {
				ui.PrintError("Failed to remove account", err.Error())
				os.Exit(1)
			}
			ui.PrintSuccess("Account removed: " + account.Phone)
			return
		}

		// Multiple accounts, show menu
		fmt.Println("Select account to remove:")
		for i, account := range accounts {
			fmt.Printf("  %d. %s\n", i+1, account.Phone)
		}
		fmt.Printf("  %d. Remove all accounts\n", len(accounts)+1)
		fmt.Printf("  0. Cancel\n\n")

		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Choice: ")
		input, _ := reader.ReadString('\n')

		var choice int
		fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)

		if choice == 0 {
			return
		} else if choice == len(accounts)+1 {
			fmt.Print("Remove ALL accounts? This cannot be undone! (yes/N): ")
			confirm, _ := reader.ReadString('\n')
			if strings.TrimSpace(confirm) != "yes" {
				return
			}

			if err := manager.DeleteAll(); err != nil {
				ui.PrintError("Failed to remove all accounts", err.Error())
				os.Exit(1)
			}
			ui.PrintSuccess("All accounts removed")
			return
		} else if choice > 0 && choice <= len(accounts) {
			account := accounts[choice-1]
			if err := manager.Delete(account.Phone); err != nil {
				ui.PrintError("Failed to remove account", err.Error())
				os.Exit(1)
			}
			ui.PrintSuccess("Account removed: " + account.Phone)
			return
		} else {
			ui.PrintError("Invalid choice", "")
			os.Exit(1)
		}
	}

	phone := args[0]
	if err := manager.Delete(phone); err != nil {
		ui.PrintError("Failed to remove account", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Account removed: " + phone)
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	accounts, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list accounts", err.Error())
		os.Exit(1)
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'tgscraper auth login' to add an account")
		return
	}

	fmt.Println(ui.Cyan("Stored Accounts"))
	fmt.Println()

	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. Phone: %s\n", i+1, sanitized.Phone)
		fmt.Printf("   API ID: %d\n", sanitized.APIID)
		fmt.Printf("   API Hash: %s\n", sanitized.APIHash)
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

// readPassword reads a secret from stdin without echoing
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return string(password), nil
		}
	}

	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
