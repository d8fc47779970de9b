package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/headline-goat/funnel-goat/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List active sessions",
	Long:  `List active sessions with their visitor and current funnel stage.`,
	RunE:  runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	return withStore(func(s *store.SQLiteStore) error {
		ctx := context.Background()

		sessions, err := s.ListSessions(ctx)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintln(out, "No sessions yet.")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Sessions start when visitors arrive. Add the script to your site:")
			fmt.Fprintln(out, "  <script src=\"YOUR_SERVER/fg.js\" defer></script>")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tVISITOR\tSTAGE\tPAGES\tSTARTED\tLAST SEEN")
		for _, sess := range sessions {
			history := inspect(s, "", sess.ID).History(ctx)
			stage := "-"
			if n := len(history); n > 0 {
				stage = string(history[n-1].Stage)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				sess.ID,
				sess.VisitorID,
				stage,
				len(history),
				sess.StartedAt.Format("2006-01-02 15:04"),
				sess.LastSeenAt.Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	})
}
