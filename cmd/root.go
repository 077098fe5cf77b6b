package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the calbridge application
var rootCmd = &cobra.Command{
	Use:   "calbridge",
	Short: "Aggregates Google Calendar data for linked accounts",
	Long: `calbridge resolves stored Google OAuth credentials into authenticated
calendar clients and aggregates events across every calendar an account
can see. Rotated tokens are written back to the credential store
automatically.

Link an account first with 'calbridge link', then query it with
'calbridge calendars' and 'calbridge events'.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// rootOpts holds the settings shared by every subcommand.
var rootOpts appOptions

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "calbridge version %s\n" .Version}}`)

	// A .env file is optional; values already in the environment win.
	_ = godotenv.Load()

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootOpts.dbPath, "db", "", "Path to the credential database. Can also use CALBRIDGE_DB env var. Default: ~/.calbridge/calbridge.db")
	rootCmd.PersistentFlags().StringVar(&rootOpts.logLevel, "log-level", "info", "Log level: debug, info, warn, or error")
	rootCmd.PersistentFlags().StringVar(&rootOpts.metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address for the duration of the command (e.g. :9090)")

	rootCmd.AddCommand(newLinkCmd())
	rootCmd.AddCommand(newCalendarsCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
