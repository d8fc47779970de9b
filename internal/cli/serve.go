package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/headline-goat/funnel-goat/internal/logging"
	"github.com/headline-goat/funnel-goat/internal/server"
	"github.com/headline-goat/funnel-goat/internal/store"
)

var port int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the funnel-goat HTTP server.

The server provides:
  - Global script at /fg.js
  - Beacon endpoints for navigations, events and conversions
  - Token-protected admin endpoints for sessions, funnels and attribution
  - Health check and Prometheus metrics

Example:
  fg serve --port 8080`,
	RunE: runServe,
}

func init() {
	// 0 means FG_PORT
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default $FG_PORT or 8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	return serve(cmd.Context(), true, nil)
}

// serve opens the database, wires the sinks and runs the server until
// interrupted. When banner is set it is printed instead of the server's own
// startup message.
func serve(ctx context.Context, printMessages bool, banner func(port int, token string)) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if port != 0 {
		cfg.Port = port
	}
	log := logging.Logger()

	routes, err := loadRoutes()
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	dispatcher, cleanup, err := buildDispatcher(ctx, log)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.New(s, dispatcher, server.Options{
		Port:           cfg.Port,
		TokenFile:      tokenFilePath(),
		SessionTTL:     cfg.SessionTTL,
		AllowedOrigins: cfg.AllowedOrigins,
		Routes:         routes,
		Log:            log.With().Str("component", "server").Logger(),
	})

	if banner != nil {
		banner(cfg.Port, srv.Token())
	}
	return srv.StartWithOptions(ctx, printMessages)
}
