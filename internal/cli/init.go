package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/headline-goat/funnel-goat/internal/snippets"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Start funnel-goat server",
	Long: `Start the funnel-goat server and show integration instructions.

The server provides:
  - Global script at /fg.js
  - Beacon endpoints for navigations, events and conversions
  - Admin endpoints for sessions, funnels and attribution

Sessions are created when the first beacon arrives - no explicit setup needed.

Example:
  fg init
  fg init --port 8080`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default $FG_PORT or 8080)")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default $FG_PORT or 8080)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	// Prompt for framework to show appropriate instructions
	framework, err := promptFramework()
	if err != nil {
		return err
	}

	return serve(cmd.Context(), false, func(port int, token string) {
		printStartupInstructions(framework, port, token)
	})
}

var frameworkChoices = []struct {
	Name      string
	Framework snippets.Framework
}{
	{"HTML (vanilla JavaScript)", snippets.FrameworkHTML},
	{"Next.js", snippets.FrameworkNextJS},
	{"React", snippets.FrameworkReact},
	{"Vue", snippets.FrameworkVue},
	{"Svelte", snippets.FrameworkSvelte},
	{"Laravel", snippets.FrameworkLaravel},
	{"Django", snippets.FrameworkDjango},
}

func frameworkFromIndex(idx int) snippets.Framework {
	if idx < 0 || idx >= len(frameworkChoices) {
		return snippets.FrameworkHTML
	}
	return frameworkChoices[idx].Framework
}

func promptFramework() (snippets.Framework, error) {
	items := make([]string, len(frameworkChoices))
	for i, f := range frameworkChoices {
		items[i] = f.Name
	}

	prompt := promptui.Select{
		Label: "Your framework",
		Items: items,
		Size:  len(items),
	}

	idx, _, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return "", err
	}

	return frameworkFromIndex(idx), nil
}

func printStartupInstructions(framework snippets.Framework, port int, token string) {
	fmt.Println()
	fmt.Printf("Server running at http://localhost:%d\n", port)
	fmt.Printf("Sessions: http://localhost:%d/admin/sessions?token=%s\n", port, token)
	fmt.Println()
	fmt.Println(strings.Repeat("-", 60))
	fmt.Println()

	// Step 1: Deploy
	fmt.Println("1. Deploy funnel-goat to get a public URL")
	fmt.Println()
	fmt.Println("   Options: Fly.io, Cloudflare Tunnel, VPS with Caddy")
	fmt.Println()

	// Step 2: Add script
	fmt.Println("2. Add the script to your site")
	fmt.Println()
	printFrameworkSnippet(framework, fmt.Sprintf("http://localhost:%d", port))
	fmt.Println()

	// Step 3: Sinks
	fmt.Println("3. Point the events at your sinks")
	fmt.Println()
	fmt.Println("   FG_SINK_A_ENDPOINT, FG_SINK_A_ID    measurement collect endpoint")
	fmt.Println("   FG_SINK_B_CONTAINER_ID              tag manager data layer")
	fmt.Println()

	fmt.Println(strings.Repeat("-", 60))
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  sessions               List sessions and their stage")
	fmt.Println("  attribution <vid>      Show first and last touch")
	fmt.Println("  export <sid>           Export a session's funnel history")
	fmt.Println("  token                  Show admin URL")
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")
}

// printFrameworkSnippet prints the first generated file for the framework,
// which is the one that loads the script.
func printFrameworkSnippet(framework snippets.Framework, serverURL string) {
	files, err := snippets.Generate(framework, snippets.Config{ServerURL: serverURL})
	if err != nil || len(files) == 0 {
		fmt.Printf("   <script src=\"%s/fg.js\" defer></script>\n", serverURL)
		return
	}

	fmt.Printf("   %s\n\n", files[0].Filename)
	for _, line := range strings.Split(strings.TrimRight(files[0].Content, "\n"), "\n") {
		fmt.Printf("   %s\n", line)
	}
}
