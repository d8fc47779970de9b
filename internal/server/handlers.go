package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/headline-goat/funnel-goat/internal/funnel"
	"github.com/headline-goat/funnel-goat/internal/pipeline"
	"github.com/headline-goat/funnel-goat/internal/store"
	"github.com/headline-goat/funnel-goat/internal/telemetry"
)

const maxBeaconBytes = 16 << 10

var validate = validator.New()

type HealthResponse struct {
	Status        string   `json:"status"`
	SessionsCount int      `json:"sessions_count"`
	DBSizeBytes   int64    `json:"db_size_bytes"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Sinks         []string `json:"sinks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("health check failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var dbSize int64
	row := s.store.DB().QueryRowContext(ctx, "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
	if err := row.Scan(&dbSize); err != nil {
		s.log.Debug().Err(err).Msg("failed to read database size")
	}

	sinks := []string{}
	for _, sink := range s.dispatcher.Available() {
		sinks = append(sinks, sink.Name())
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		SessionsCount: len(sessions),
		DBSizeBytes:   dbSize,
		UptimeSeconds: int64(s.now().Sub(s.startTime).Seconds()),
		Sinks:         sinks,
	})
}

// Beacon identifies the browsing context a beacon came from.
type Beacon struct {
	VisitorID string `json:"vid" validate:"required,max=64"`
	SessionID string `json:"sid" validate:"required,max=64"`
}

// NavRequest reports a navigation; Address is path plus query string.
type NavRequest struct {
	Beacon
	Address string `json:"address" validate:"required,max=2048"`
	Title   string `json:"title" validate:"max=512"`
}

type EventRequest struct {
	Beacon
	Name       string         `json:"name" validate:"required,max=64"`
	Category   string         `json:"category" validate:"max=64"`
	Properties map[string]any `json:"properties" validate:"max=50"`
}

type ConversionRequest struct {
	Beacon
	ID    string   `json:"id" validate:"required,max=128"`
	Value *float64 `json:"value"`
}

func (s *Server) handleNav(w http.ResponseWriter, r *http.Request) {
	var req NavRequest
	if !s.decodeBeacon(w, r, &req) {
		return
	}

	s.withSession(r.Context(), req.Beacon, func(ctx context.Context, p *pipeline.Telemetry) {
		nav := p.Navigate(ctx, req.Address, req.Title)
		s.log.Debug().Str("sid", req.SessionID).Str("path", nav.Path).Str("stage", string(nav.Stage)).Msg("navigation")
	})

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if !s.decodeBeacon(w, r, &req) {
		return
	}
	if !scalarProperties(req.Properties) {
		http.Error(w, "Properties must be strings, numbers or booleans", http.StatusBadRequest)
		return
	}

	s.withSession(r.Context(), req.Beacon, func(ctx context.Context, p *pipeline.Telemetry) {
		p.Track(telemetry.NewEvent(req.Name, req.Category, req.Properties))
	})

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConversion(w http.ResponseWriter, r *http.Request) {
	var req ConversionRequest
	if !s.decodeBeacon(w, r, &req) {
		return
	}

	s.withSession(r.Context(), req.Beacon, func(ctx context.Context, p *pipeline.Telemetry) {
		p.Conversion(ctx, req.ID, req.Value)
	})

	w.WriteHeader(http.StatusNoContent)
}

// decodeBeacon reads and validates a beacon body. sendBeacon posts text/plain,
// so the content type is not checked.
func (s *Server) decodeBeacon(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBeaconBytes)).Decode(v); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(v); err != nil {
		http.Error(w, "Missing or invalid fields", http.StatusBadRequest)
		return false
	}
	return true
}

// withSession runs fn with the pipeline of the beacon's session, holding the
// session lock so navigations of one session never interleave.
func (s *Server) withSession(ctx context.Context, b Beacon, fn func(context.Context, *pipeline.Telemetry)) {
	unlock := s.locks.lock(b.SessionID)
	defer unlock()

	if err := s.store.TouchSession(ctx, b.SessionID, b.VisitorID, s.now()); err != nil {
		s.log.Warn().Err(err).Str("sid", b.SessionID).Msg("failed to record session activity")
	}
	fn(ctx, s.pipelineFor(b.VisitorID, b.SessionID))
}

func (s *Server) pipelineFor(visitorID, sessionID string) *pipeline.Telemetry {
	// Leave a tier nil (not a typed nil pointer) when its scope is unknown.
	var session, durable store.KV
	if sessionID != "" {
		session = s.store.Session(sessionID)
	}
	if visitorID != "" {
		durable = s.store.Durable(visitorID)
	}

	scope := map[string]any{}
	if visitorID != "" {
		scope["client_id"] = visitorID
	}
	if sessionID != "" {
		scope["session_id"] = sessionID
	}

	return pipeline.New(telemetry.NewScope(s.dispatcher, scope), store.NewAdapter(session, durable), pipeline.Options{
		Routes: s.routes,
		Now:    s.now,
		Log:    s.log,
	})
}

func scalarProperties(props map[string]any) bool {
	for _, v := range props {
		switch v.(type) {
		case string, float64, bool:
		default:
			return false
		}
	}
	return true
}

type sessionResponse struct {
	*store.Session
	Stage   funnel.Stage   `json:"stage,omitempty"`
	History []funnel.Entry `json:"history,omitempty"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list sessions")
		http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}

	response := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		item := sessionResponse{Session: sess}
		history := s.pipelineFor("", sess.ID).History(r.Context())
		if n := len(history); n > 0 {
			item.Stage = history[n-1].Stage
		}
		response = append(response, item)
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleFunnel(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")

	sess, err := s.store.GetSession(r.Context(), sid)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("sid", sid).Msg("failed to get session")
		http.Error(w, "Failed to get session", http.StatusInternalServerError)
		return
	}

	history := s.pipelineFor(sess.VisitorID, sess.ID).History(r.Context())
	item := sessionResponse{Session: sess, History: history}
	if n := len(history); n > 0 {
		item.Stage = history[n-1].Stage
	}
	if item.History == nil {
		item.History = []funnel.Entry{}
	}

	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleAttribution(w http.ResponseWriter, r *http.Request) {
	vid := r.URL.Query().Get("vid")
	sid := r.URL.Query().Get("sid")
	if vid == "" && sid == "" {
		http.Error(w, "vid or sid parameter required", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, s.pipelineFor(vid, sid).Attribution(r.Context()))
}

// Sweep ends sessions idle for longer than the session TTL.
func (s *Server) Sweep(ctx context.Context) (int, error) {
	return SweepIdle(ctx, s.store, s.now().Add(-s.sessionTTL))
}

// RunSweeper sweeps idle sessions until ctx is cancelled.
func (s *Server) RunSweeper(ctx context.Context) {
	interval := s.sessionTTL / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.log.Warn().Err(err).Msg("session sweep failed")
				continue
			}
			if n > 0 {
				s.log.Info().Int("ended", n).Msg("ended idle sessions")
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
