package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/headline-goat/funnel-goat/internal/attribution"
)

var utmCmd = &cobra.Command{
	Use:   "utm <url>",
	Short: "Show the UTM parameters of a URL",
	Long: `Show the UTM parameters funnel-goat would capture from a landing URL.

Example:
  fg utm "https://example.com/pricing?utm_source=google&utm_medium=cpc"`,
	Args: cobra.ExactArgs(1),
	RunE: runUTM,
}

func init() {
	rootCmd.AddCommand(utmCmd)
}

func runUTM(cmd *cobra.Command, args []string) error {
	params := attribution.ExtractString(args[0])
	if params == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "No UTM parameters.")
		return nil
	}
	return printJSON(cmd.OutOrStdout(), params)
}
