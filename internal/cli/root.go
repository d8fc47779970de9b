package cli

import (
	"github.com/spf13/cobra"

	"github.com/headline-goat/funnel-goat/internal/config"
	"github.com/headline-goat/funnel-goat/internal/logging"
)

var (
	dbPath string
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "fg",
	Short: "funnel-goat - self-hosted UTM attribution and funnel tracking",
	Long: `funnel-goat captures UTM attribution and funnel stages for a marketing site
and forwards analytics events to your measurement and tag manager sinks.
Single Go binary, embedded SQLite.

Running without a subcommand starts the server (same as 'fg init').`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	RunE:              runInit, // Default action is to start server
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default $FG_DB_PATH or ./fg.db)")
}

// loadConfig reads the environment, applies flag overrides and configures logging.
func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db") {
		c.DBPath = dbPath
	}

	logging.Init(logging.Config{
		Level:  c.EffectiveLogLevel(),
		Format: c.LogFormat,
		Output: cmd.ErrOrStderr(),
	})
	cfg = c
	return nil
}
