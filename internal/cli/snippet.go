package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/headline-goat/funnel-goat/internal/snippets"
)

func init() {
	rootCmd.AddCommand(newSnippetCmd())
}

func newSnippetCmd() *cobra.Command {
	var framework string
	var serverURL string
	var conversionID string

	cmd := &cobra.Command{
		Use:   "snippet",
		Short: "Generate integration code",
		Long:  "Generate copy-paste-ready code that loads the tracking script and reports conversions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error

			// Determine framework
			fw := snippets.Framework(framework)
			if framework == "" {
				fw, err = promptFramework()
				if err != nil {
					return err
				}
			}

			// Determine server URL
			url := serverURL
			if url == "" {
				url, err = promptServerURL()
				if err != nil {
					return err
				}
			}

			files, err := snippets.Generate(fw, snippets.Config{
				ServerURL:    url,
				ConversionID: conversionID,
			})
			if err != nil {
				return fmt.Errorf("failed to generate snippet: %w", err)
			}

			printSnippets(cmd.OutOrStdout(), files)
			return nil
		},
	}

	cmd.Flags().StringVarP(&framework, "framework", "f", "", "framework (html, nextjs, react, vue, svelte, laravel, django)")
	cmd.Flags().StringVarP(&serverURL, "server-url", "s", "", "server URL (e.g., https://fg.example.com)")
	cmd.Flags().StringVarP(&conversionID, "conversion", "c", "signup", "conversion ID used in the example call")

	return cmd
}

func promptServerURL() (string, error) {
	prompt := promptui.Prompt{
		Label:   "Server URL",
		Default: cfg.PublicURL(),
	}

	result, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return "", err
	}

	return strings.TrimRight(result, "/"), nil
}

func printSnippets(w io.Writer, files []snippets.SnippetFile) {
	for i, file := range files {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, strings.Repeat("=", 62))
		fmt.Fprintf(w, " %s\n", file.Filename)
		fmt.Fprintln(w, strings.Repeat("=", 62))
		fmt.Fprintln(w)
		fmt.Fprintln(w, file.Content)
	}
}
