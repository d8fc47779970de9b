// Package pipeline ties attribution, funnel tracking and event dispatch
// together for one browsing context.
package pipeline

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/headline-goat/funnel-goat/internal/attribution"
	"github.com/headline-goat/funnel-goat/internal/funnel"
	"github.com/headline-goat/funnel-goat/internal/store"
	"github.com/headline-goat/funnel-goat/internal/telemetry"
)

// Property prefixes for touch attribution attached to conversions.
const (
	PrefixFirstTouch = "first_touch_"
	PrefixLastTouch  = "last_touch_"
)

type Options struct {
	Routes *funnel.RouteTable
	Now    func() time.Time
	Log    zerolog.Logger
}

// Telemetry is the pipeline of one browsing context. It is not safe for
// concurrent use; callers serialize navigations of the same session.
type Telemetry struct {
	emit   telemetry.Emitter
	utm    *attribution.Coordinator
	funnel *funnel.Tracker
}

// New builds the pipeline over storage, emitting through emit.
func New(emit telemetry.Emitter, storage *store.Adapter, opts Options) *Telemetry {
	return &Telemetry{
		emit:   emit,
		utm:    attribution.NewCoordinator(storage, opts.Log.With().Str("component", "attribution").Logger()),
		funnel: funnel.NewTracker(storage, opts.Routes, emit, opts.Now, opts.Log.With().Str("component", "funnel").Logger()),
	}
}

// Navigation is what one navigation produced.
type Navigation struct {
	Path  string              `json:"path"`
	Stage funnel.Stage        `json:"stage"`
	UTM   *attribution.Params `json:"utm,omitempty"`
}

// Navigate handles a navigation to address (path with optional query). Tags
// are persisted before the funnel events go out, and the page view is sent last.
func (t *Telemetry) Navigate(ctx context.Context, address, title string) Navigation {
	utm := t.utm.Capture(ctx, address)

	path := pathOf(address)
	stage := t.funnel.OnNavigate(ctx, path)

	t.emit.Dispatch(telemetry.PageViewEvent(path, title))

	return Navigation{Path: path, Stage: stage, UTM: utm}
}

// Track dispatches a caller-built event.
func (t *Telemetry) Track(ev telemetry.Event) {
	t.emit.Dispatch(ev)
}

// Conversion reports a conversion with the visitor's first touch and the
// session's last touch attached as first_touch_utm_* and last_touch_utm_*.
func (t *Telemetry) Conversion(ctx context.Context, conversionID string, value *float64) {
	ev := telemetry.ConversionEvent(conversionID, value)
	for k, v := range t.utm.FirstTouch(ctx).Map() {
		ev.Properties[PrefixFirstTouch+k] = v
	}
	for k, v := range t.utm.LastTouch(ctx).Map() {
		ev.Properties[PrefixLastTouch+k] = v
	}
	t.emit.Dispatch(ev)
}

// Attribution is the stored touch state of a browsing context.
type Attribution struct {
	FirstTouch *attribution.Params `json:"first_touch"`
	LastTouch  *attribution.Params `json:"last_touch"`
	Current    *attribution.Params `json:"current"`
}

func (t *Telemetry) Attribution(ctx context.Context) Attribution {
	return Attribution{
		FirstTouch: t.utm.FirstTouch(ctx),
		LastTouch:  t.utm.LastTouch(ctx),
		Current:    t.utm.Current(ctx),
	}
}

func (t *Telemetry) History(ctx context.Context) []funnel.Entry {
	return t.funnel.History(ctx)
}

// pathOf returns the path of address. Addresses url.Parse rejects, such as a
// path with a stray '%', keep their raw text before the query.
func pathOf(address string) string {
	p := address
	if u, err := url.Parse(address); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	return p
}
