package funnel

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/headline-goat/funnel-goat/internal/metrics"
	"github.com/headline-goat/funnel-goat/internal/store"
	"github.com/headline-goat/funnel-goat/internal/telemetry"
)

// Tracker turns navigations into funnel events and history entries for one
// session. Calls for the same session must not run concurrently.
type Tracker struct {
	storage *store.Adapter
	routes  *RouteTable
	emit    telemetry.Emitter
	now     func() time.Time
	log     zerolog.Logger
}

// NewTracker builds a tracker. A nil routes table uses DefaultRouteTable and a
// nil now uses time.Now.
func NewTracker(storage *store.Adapter, routes *RouteTable, emit telemetry.Emitter, now func() time.Time, log zerolog.Logger) *Tracker {
	if routes == nil {
		routes = DefaultRouteTable()
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{storage: storage, routes: routes, emit: emit, now: now, log: log}
}

// OnNavigate records a visit to path. It emits the stage presence event, then
// a progression event when the stage differs from the previous visit, and
// appends the visit to the session history. It returns the resolved stage.
//
// A corrupt history is replaced by a fresh one. When the history cannot be
// read at all, only the presence event goes out: the stored entries are left
// untouched and this visit is not recorded.
func (t *Tracker) OnNavigate(ctx context.Context, path string) Stage {
	stage := t.routes.Resolve(path)

	persist := true
	history, err := t.load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrCorrupt):
		t.log.Warn().Err(err).Msg("corrupt funnel history, starting over")
		history = nil
	default:
		t.log.Warn().Err(err).Str("path", path).Msg("funnel history unreadable, visit not recorded")
		history = nil
		persist = false
	}

	ts := t.now().UnixMilli()
	var prev *Entry
	if n := len(history); n > 0 {
		prev = &history[n-1]
		// history stays ordered even if the wall clock steps back
		if ts < prev.Timestamp {
			ts = prev.Timestamp
		}
	}

	t.emit.Dispatch(telemetry.NewEvent(stage.EventName(), telemetry.CategoryConversion, map[string]any{
		"stage":     string(stage),
		"path":      path,
		"timestamp": ts,
	}))

	if prev != nil && prev.Stage != stage {
		t.emit.Dispatch(telemetry.NewEvent(telemetry.EventFunnelProgression, telemetry.CategoryConversion, map[string]any{
			"fromStage": string(prev.Stage),
			"toStage":   string(stage),
			"path":      path,
		}))
		metrics.FunnelProgressions.WithLabelValues(string(prev.Stage), string(stage)).Inc()
	}

	if !persist {
		return stage
	}

	history = append(history, Entry{Stage: stage, Path: path, Timestamp: ts})
	if err := t.storage.Save(ctx, store.TierSession, store.KeyFunnelHistory, history); err != nil {
		t.log.Warn().Err(err).Str("path", path).Msg("failed to persist funnel history")
	}

	return stage
}

// History returns the session's visits in order. Missing, unreadable and
// corrupt history all read as empty.
func (t *Tracker) History(ctx context.Context) []Entry {
	history, err := t.load(ctx)
	if err != nil {
		t.log.Debug().Err(err).Msg("funnel history unavailable")
		return nil
	}
	return history
}

func (t *Tracker) load(ctx context.Context) ([]Entry, error) {
	var history []Entry
	ok, err := t.storage.Load(ctx, store.TierSession, store.KeyFunnelHistory, &history)
	if err != nil || !ok {
		return nil, err
	}
	return history, nil
}

// Routes returns the table the tracker resolves paths with.
func (t *Tracker) Routes() *RouteTable {
	return t.routes
}
