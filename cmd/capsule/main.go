package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"capsule-go/internal/app"
	"capsule-go/internal/capsule"
	"capsule-go/internal/config"
	"capsule-go/internal/database/migrations"
	"capsule-go/internal/wallet"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// readConfig loads the config file from the default location.
func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates a CapsuleApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Serve", "CreateCapsule").
func newApp(operation string) (*app.CapsuleApp, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewCapsuleApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readPassphrase takes the passphrase from CAPSULE_PASSPHRASE or prompts on the terminal.
func readPassphrase(prompt string) (string, error) {
	if p := os.Getenv("CAPSULE_PASSPHRASE"); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal for passphrase prompt: set CAPSULE_PASSPHRASE")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:   "capsule",
	Short: "Digital time capsules",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		instanceID := uuid.New().String()
		cfg := config.NewConfig(instanceID, defaults.BaseDir)

		secret, err := app.NewSessionSecret()
		if err != nil {
			return err
		}
		cfg.Server.SessionSecret = hex.EncodeToString(secret)

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Instance ID: %s\n", instanceID)
		fmt.Printf("Base Dir:    %s\n", defaults.BaseDir)
		fmt.Println("Run `capsule db migrate` before first use.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Instance ID: %s\n", cfg.InstanceID)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Listen:      %s\n", cfg.Server.Addr)
		fmt.Printf("Database:    %s\n", cfg.Database.Type)
		fmt.Printf("Staging:     %s\n", cfg.Staging.Type)
		fmt.Printf("Encryption:  %s\n", cfg.Encryption.Type)
		fmt.Printf("Gallery:     %s\n", cfg.Gallery.Source)
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:       %s (%s)\n", v.Name, v.Type)
		}
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		passphrase, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		if os.Getenv("CAPSULE_PASSPHRASE") == "" {
			confirm, err := readPassphrase("Confirm passphrase: ")
			if err != nil {
				return err
			}
			if confirm != passphrase {
				return fmt.Errorf("passphrases do not match")
			}
		}

		if err := app.SetupKeys(cfg, passphrase); err != nil {
			return fmt.Errorf("setting up keys: %w", err)
		}
		fmt.Printf("Keys written to %s\n", filepath.Dir(cfg.Encryption.PrivateKeyPath))
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		db, err := app.OpenDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.MigrateUp(); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
		version, err := migrations.LatestVersion()
		if err != nil {
			return err
		}
		fmt.Printf("Database at schema version %d\n", version)
		return nil
	},
}

var dbSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		db, err := app.OpenDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		schema, err := db.Schema()
		if err != nil {
			return err
		}
		fmt.Print(schema)
		return nil
	},
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup DEST",
	Short: "Copy the database to DEST",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		db, err := app.OpenDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		dest, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}
		if err := db.BackupTo(dest); err != nil {
			return err
		}
		fmt.Printf("Database copied to %s\n", dest)
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web front end",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		unlock, _ := cmd.Flags().GetBool("unlock")

		a, err := newApp("Serve")
		if err != nil {
			return err
		}
		defer a.Close()

		if unlock && a.EncryptionEnabled() {
			passphrase, err := readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
			if err := a.Unlock(passphrase); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return a.Serve(ctx, addr)
	},
}

// create command
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a time capsule",
	RunE: func(cmd *cobra.Command, args []string) error {
		var req app.CreateRequest
		req.Creator, _ = cmd.Flags().GetString("creator")
		req.ContentType, _ = cmd.Flags().GetString("type")
		req.Title, _ = cmd.Flags().GetString("title")
		req.Message, _ = cmd.Flags().GetString("message")
		req.Paths, _ = cmd.Flags().GetStringArray("file")
		req.Recursive, _ = cmd.Flags().GetBool("recursive")
		req.UnlockIn, _ = cmd.Flags().GetString("in")
		req.UnlockDate, _ = cmd.Flags().GetString("unlock")

		a, err := newApp("CreateCapsule")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.CreateCapsule(req)
		if err != nil {
			return fmt.Errorf("creating capsule: %w", err)
		}

		fmt.Printf("Created %s %q\n", c.ContentType, c.Title)
		fmt.Printf("ID:        %s\n", c.ID)
		fmt.Printf("Files:     %d\n", len(c.Files))
		fmt.Printf("Unlocks:   %s\n", c.UnlockAt.Format(capsule.DateLayout))
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List capsules",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("filter")
		search, _ := cmd.Flags().GetString("search")
		as, _ := cmd.Flags().GetString("as")

		a, err := newApp("ListCapsules")
		if err != nil {
			return err
		}
		defer a.Close()

		view, err := a.ListCapsules(filter, search, as)
		if err != nil {
			return err
		}

		if len(view.Capsules) == 0 {
			fmt.Println("No capsules found.")
			return nil
		}

		for _, c := range view.Capsules {
			state := "locked  "
			if c.IsUnlocked(view.Now) {
				state = "unlocked"
			}
			fmt.Printf("%-36s  %s  %-7s  %s  %-13s  %s\n",
				c.ID,
				state,
				c.ContentType,
				c.UnlockAt.Format(capsule.DateLayout),
				wallet.Short(c.Creator),
				strings.TrimSpace(c.Title),
			)
		}
		fmt.Printf("\n%d of %d capsule(s)\n", len(view.Capsules), view.Counts[capsule.FilterAll])
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// db subcommands
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbSchemaCmd)
	dbCmd.AddCommand(dbBackupCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(dbCmd)

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default from config)")
	serveCmd.Flags().Bool("unlock", true, "Prompt for the key passphrase so encrypted files can be served")

	rootCmd.AddCommand(createCmd)
	createCmd.Flags().String("creator", "", "Creator wallet address (0x...)")
	createCmd.Flags().StringP("type", "t", "message", "Content type: message, photo or video")
	createCmd.Flags().String("title", "", "Capsule title")
	createCmd.Flags().StringP("message", "m", "", "Message body")
	createCmd.Flags().StringArrayP("file", "f", nil, "File or directory to attach (repeatable)")
	createCmd.Flags().BoolP("recursive", "r", false, "Recurse into attached directories")
	createCmd.Flags().String("in", "", "Unlock after a number of days or a preset (\"1 Week\", \"1 Month\", \"6 Months\", \"1 Year\")")
	createCmd.Flags().String("unlock", "", "Unlock date (YYYY-MM-DD)")
	createCmd.MarkFlagRequired("creator")

	rootCmd.AddCommand(listCmd)
	listCmd.Flags().String("filter", "all", "all, locked, unlocked or mine")
	listCmd.Flags().StringP("search", "s", "", "Search titles and creators")
	listCmd.Flags().String("as", "", "Viewing account for --filter mine")
}
