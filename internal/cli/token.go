package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Show admin URL with access token",
	Long: `Show the admin URL with your access token.

Use this when you've scrolled past the startup message. The token changes
every time the server starts.

Example:
  fg token`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(tokenFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no server running. Start with: fg")
		}
		return fmt.Errorf("failed to read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return fmt.Errorf("token file is empty. Restart the server with: fg")
	}

	serverURL := cfg.PublicURL()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sessions: %s/admin/sessions?token=%s\n", serverURL, token)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Tip: Bookmark this URL or run 'fg token' anytime.")
	return nil
}
