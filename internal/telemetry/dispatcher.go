package telemetry

import (
	"fmt"
	"maps"

	"github.com/rs/zerolog"

	"github.com/headline-goat/funnel-goat/internal/metrics"
)

// Config controls sink routing and diagnostics.
type Config struct {
	// SinkAID is forwarded to sink A as send_to.
	SinkAID string
	// SinkBContainerID names the data layer container of sink B.
	SinkBContainerID string
	// Debug enables diagnostics; nil means "same as Development".
	Debug *bool
	// DisableInDev turns every sink off when Development is set.
	DisableInDev bool
	Development  bool
}

func (c Config) debug() bool {
	if c.Debug != nil {
		return *c.Debug
	}
	return c.Development
}

func (c Config) disabled() bool {
	return c.DisableInDev && c.Development
}

// Emitter accepts events. Dispatcher and Scope implement it.
type Emitter interface {
	Dispatch(ev Event)
}

// Dispatcher routes events to its sinks. It holds no mutable state and is
// safe for concurrent use.
type Dispatcher struct {
	cfg   Config
	sinks []Sink
	log   zerolog.Logger
}

func NewDispatcher(cfg Config, log zerolog.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{cfg: cfg, sinks: sinks, log: log}
}

// Debug reports whether diagnostics are on.
func (d *Dispatcher) Debug() bool {
	return d.cfg.debug()
}

// Available returns the sinks that would receive an event right now.
func (d *Dispatcher) Available() []Sink {
	if d.cfg.disabled() {
		return nil
	}
	var out []Sink
	for _, s := range d.sinks {
		if s != nil && available(s) {
			out = append(out, s)
		}
	}
	return out
}

// available reports s.Available(), treating a panicking check as unavailable.
func available(s Sink) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return s.Available()
}

// Dispatch forwards ev to every available sink. It never fails: problems are
// logged when debug is on and dropped otherwise.
func (d *Dispatcher) Dispatch(ev Event) {
	err := d.dispatch(ev)
	if err == nil || !d.cfg.debug() {
		return
	}

	switch err {
	case ErrNoSink:
		d.log.Debug().Str("event", ev.Name).Str("category", ev.Category).
			Interface("properties", ev.Properties).Msg("no analytics sink available, event skipped")
	default:
		d.log.Debug().Err(err).Str("event", ev.Name).Msg("analytics dispatch failed")
	}
}

func (d *Dispatcher) dispatch(ev Event) error {
	if ev.Name == "" {
		return ErrEmptyName
	}

	sinks := d.Available()
	if len(sinks) == 0 {
		metrics.EventsSkipped.Inc()
		return ErrNoSink
	}

	var failures []SinkFailure
	for _, s := range sinks {
		if err := d.send(s, ev); err != nil {
			metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			failures = append(failures, SinkFailure{Sink: s.Name(), Err: err})
			continue
		}
		metrics.EventsDispatched.WithLabelValues(s.Name()).Inc()
	}

	if len(failures) > 0 {
		return &DispatchError{Event: ev.Name, Failures: failures}
	}
	return nil
}

// send isolates one sink call, turning a panic into an error.
func (d *Dispatcher) send(s Sink, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return s.Send(ev)
}

func (d *Dispatcher) TrackPageView(path, title string) {
	d.Dispatch(PageViewEvent(path, title))
}

func (d *Dispatcher) TrackConversion(conversionID string, value *float64) {
	d.Dispatch(ConversionEvent(conversionID, value))
}

func (d *Dispatcher) TrackCTAClick(elementID string) {
	d.Dispatch(CTAClickEvent(elementID))
}

func (d *Dispatcher) TrackCodeCopy(snippetID string) {
	d.Dispatch(CodeCopyEvent(snippetID))
}

func (d *Dispatcher) TrackHeroCTA(action string) {
	d.Dispatch(HeroCTAEvent(action))
}

// Scope adds base properties (such as visitor and session ids) to every event
// it forwards. Properties set on the event win over the base.
type Scope struct {
	next Emitter
	base map[string]any
}

func NewScope(next Emitter, base map[string]any) *Scope {
	return &Scope{next: next, base: maps.Clone(base)}
}

func (s *Scope) Dispatch(ev Event) {
	props := maps.Clone(s.base)
	if props == nil {
		props = make(map[string]any, len(ev.Properties))
	}
	maps.Copy(props, ev.Properties)
	s.next.Dispatch(Event{Name: ev.Name, Category: ev.Category, Properties: props})
}
