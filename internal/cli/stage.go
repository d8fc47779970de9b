package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var stageCmd = &cobra.Command{
	Use:   "stage <path>...",
	Short: "Resolve paths to funnel stages",
	Long: `Resolve paths to funnel stages using the route table
(FG_ROUTES_FILE, or the built-in table when unset).

Example:
  fg stage / /pricing /docs/install`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStage,
}

func init() {
	rootCmd.AddCommand(stageCmd)
}

func runStage(cmd *cobra.Command, args []string) error {
	routes, err := loadRoutes()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tSTAGE")
	for _, path := range args {
		fmt.Fprintf(w, "%s\t%s\n", path, routes.Resolve(path))
	}
	return w.Flush()
}
