package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/headline-goat/funnel-goat/internal/server"
	"github.com/headline-goat/funnel-goat/internal/store"
)

var sweepIdle time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "End idle sessions",
	Long: `End every session idle for longer than the session TTL. Ending a session
clears its session-scoped attribution and funnel history; visitor first touch
is kept. A running server does this on its own.

Example:
  fg sweep --idle 1h`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepIdle, "idle", 0, "idle time (default $FG_SESSION_TTL or 30m)")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	idle := cfg.SessionTTL
	if sweepIdle > 0 {
		idle = sweepIdle
	}

	return withStore(func(s *store.SQLiteStore) error {
		n, err := server.SweepIdle(context.Background(), s, time.Now().Add(-idle))
		if err != nil {
			return fmt.Errorf("failed to sweep sessions: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ended %d idle session(s).\n", n)
		return nil
	})
}
