package cmd

import (
	"fmt"
	"os"

	"github.com/perpetuallyhorni/instagrab/pkg/storage/sqlite"
	"github.com/perpetuallyhorni/instagrab/tools/instagrab/internal/cli"
	cliconfig "github.com/perpetuallyhorni/instagrab/tools/instagrab/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// cfg stores the application configuration.
	cfg *cliconfig.Config
	// console is the CLI console for output.
	console *cli.Console
	// logger writes to the log file, and to stderr with --debug.
	logger *zap.Logger
	// closeLog flushes the logger and closes the log file.
	closeLog func()
	// database is the post store.
	database *sqlite.DB
	// flagConfigPath is the path to the config file.
	flagConfigPath string
	// flagQuiet enables or disables quiet mode.
	flagQuiet bool
	// version is the version of the application. It is set at build time.
	version = "dev"
)

// SetVersion sets the version of the application.
func SetVersion(v string) {
	version = v
	if rootCmd != nil {
		rootCmd.Version = v
	}
}

var rootCmd = &cobra.Command{
	Use:   "instagrab [URL]",
	Short: "Downloads public Instagram posts and indexes them in SQLite.",
	Long: `Downloads the caption and media of public Instagram posts and records
each post, with its hashtags, in a local SQLite database.

Run 'instagrab URL' or 'instagrab -i links.txt' to ingest posts, or use a command.
For example:
  instagrab https://www.instagram.com/p/ABC123/ --delay 2
  instagrab -i links.txt --output-dir ./downloads
  instagrab export --output data.json
  instagrab query --tag sunset`,
	Args: cobra.MaximumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isLightweight(cmd) {
			return nil
		}

		debug, _ := cmd.Flags().GetBool("debug")
		cleanLogs, _ := cmd.Flags().GetBool("clean-logs")

		var err error
		logger, closeLog, err = setupFileLogger(cleanLogs, debug, args, cfg)
		if err != nil {
			return fmt.Errorf("failed to set up file logger: %w", err)
		}

		database, err = sqlite.New(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("error initializing database: %w", err)
		}
		logger.Debug("database opened", zap.String("path", cfg.DatabasePath))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return shutdown()
	},
	RunE:          runIngest,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// isLightweight reports whether cmd runs without a database or log file.
func isLightweight(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "completion", "edit", "help":
			return true
		}
	}
	return false
}

// shutdown closes the database and log file opened by PersistentPreRunE.
func shutdown() error {
	var err error
	if database != nil {
		err = database.Close()
		database = nil
	}
	if closeLog != nil {
		closeLog()
		closeLog = nil
	}
	return err
}

// init initializes the command line interface.
func init() {
	console = cli.New(false)

	cobra.OnInitialize(func() {
		if flagQuiet {
			console = cli.New(true)
		}

		var err error
		cfg, err = cliconfig.Load(flagConfigPath)
		if err != nil {
			console.Error("Error loading config: %v", err)
			os.Exit(1)
		}

		applyFlagOverrides(rootCmd, cfg)
	})

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	// Persistent flags are available to all subcommands.
	rootCmd.PersistentFlags().StringVarP(&flagConfigPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Quiet mode, no console output except for errors")
	rootCmd.PersistentFlags().Bool("debug", false, "Log debug info to stderr and log file")
	rootCmd.PersistentFlags().Bool("clean-logs", false, "Redact sensitive info (shortcodes, paths) from log files")
	rootCmd.PersistentFlags().String("db", "", "Path to the SQLite database (overrides config)")

	// Ingest flags
	rootCmd.Flags().StringP("input-file", "i", "", "File with post URLs, one or more per line (overrides config)")
	rootCmd.Flags().String("output-dir", "", "Base directory for downloaded posts (overrides config)")
	rootCmd.Flags().Float64("delay", 0, "Seconds to wait after each media request (overrides config)")
	rootCmd.Flags().String("resolver-url", "", "Root URL of the post metadata service (overrides config)")
	rootCmd.Flags().String("bind", "", "Outbound IP addresses or interfaces to bind to, comma-separated (overrides config)")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(editCmd)
}

// Execute executes the root command.
func Execute() error {
	err := rootCmd.Execute()
	// PersistentPostRunE is skipped when RunE fails.
	if closeErr := shutdown(); err == nil {
		err = closeErr
	}
	return err
}
