package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/headline-goat/funnel-goat/internal/store"
)

var attributionSession string

var attributionCmd = &cobra.Command{
	Use:   "attribution <visitor-id>",
	Short: "Show a visitor's touch attribution",
	Long: `Show the stored first touch of a visitor. With --session, the last and
current touch of that session are included.

Example:
  fg attribution 3f1c9a --session 8b2d44`,
	Args: cobra.ExactArgs(1),
	RunE: runAttribution,
}

func init() {
	attributionCmd.Flags().StringVarP(&attributionSession, "session", "s", "", "session ID")
	rootCmd.AddCommand(attributionCmd)
}

func runAttribution(cmd *cobra.Command, args []string) error {
	return withStore(func(s *store.SQLiteStore) error {
		attr := inspect(s, args[0], attributionSession).Attribution(context.Background())
		return printJSON(cmd.OutOrStdout(), attr)
	})
}
