package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/headline-goat/funnel-goat/internal/funnel"
	"github.com/headline-goat/funnel-goat/internal/store"
	"github.com/headline-goat/funnel-goat/internal/telemetry"
)

// Options configures the beacon server.
type Options struct {
	Port           int
	TokenFile      string
	SessionTTL     time.Duration
	AllowedOrigins []string
	Routes         *funnel.RouteTable
	Log            zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	store      *store.SQLiteStore
	dispatcher *telemetry.Dispatcher
	port       int
	token      string
	tokenFile  string
	sessionTTL time.Duration
	routes     *funnel.RouteTable
	router     chi.Router
	locks      *sessionLocks
	log        zerolog.Logger
	now        func() time.Time
	startTime  time.Time
}

func New(s *store.SQLiteStore, d *telemetry.Dispatcher, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Routes == nil {
		opts.Routes = funnel.DefaultRouteTable()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	srv := &Server{
		store:      s,
		dispatcher: d,
		port:       opts.Port,
		token:      generateToken(),
		tokenFile:  opts.TokenFile,
		sessionTTL: opts.SessionTTL,
		routes:     opts.Routes,
		router:     chi.NewRouter(),
		locks:      newSessionLocks(),
		log:        opts.Log,
		now:        opts.Now,
		startTime:  opts.Now(),
	}

	srv.setupRoutes(opts.AllowedOrigins)
	return srv
}

func (s *Server) setupRoutes(origins []string) {
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	// Beacons come from the marketing site's origin; CORS is global so
	// preflight requests are answered before routing.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	// Public endpoints
	r.Get("/health", s.handleHealth)
	r.Get("/fg.js", s.handleGlobalJS)
	r.Handle("/metrics", promhttp.Handler())

	// Beacons
	r.Post("/nav", s.handleNav)
	r.Post("/e", s.handleEvent)
	r.Post("/conversion", s.handleConversion)

	// Admin endpoints (protected)
	r.Route("/admin", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/sessions", s.handleSessions)
		r.Get("/attribution", s.handleAttribution)
		r.Get("/funnel/{sid}", s.handleFunnel)
	})
}

func (s *Server) Start(ctx context.Context) error {
	return s.StartWithOptions(ctx, true)
}

// StartQuiet starts the server without printing startup messages
func (s *Server) StartQuiet(ctx context.Context) error {
	return s.StartWithOptions(ctx, false)
}

// StartWithOptions serves until ctx is cancelled, running the idle session
// sweeper alongside.
func (s *Server) StartWithOptions(ctx context.Context, printMessages bool) error {
	// Write token to file for the token command
	if s.tokenFile != "" {
		if err := os.WriteFile(s.tokenFile, []byte(s.token), 0600); err != nil {
			s.log.Warn().Err(err).Str("file", s.tokenFile).Msg("failed to write token file")
		}
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if printMessages {
		fmt.Println()
		fmt.Printf("funnel-goat running on http://localhost:%d\n", s.port)
		fmt.Printf("Script:   http://localhost:%d/fg.js\n", s.port)
		fmt.Printf("Sessions: http://localhost:%d/admin/sessions?token=%s\n", s.port, s.token)
		fmt.Println()
		fmt.Println("Press Ctrl+C to stop")
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.RunSweeper(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	s.log.Info().Int("port", s.port).Int("sinks", len(s.dispatcher.Available())).Msg("server started")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info().Msg("shutting down")
	return httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) Token() string {
	return s.token
}

func (s *Server) Store() *store.SQLiteStore {
	return s.store
}

func (s *Server) StartTime() time.Time {
	return s.startTime
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func generateToken() string {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a simple token if crypto/rand fails
		return "a1b2c3d4"
	}
	return hex.EncodeToString(bytes)
}
