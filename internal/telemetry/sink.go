package telemetry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyName = errors.New("event name is empty")

	// ErrNoSink is returned by the internal dispatch when every sink is missing or disabled.
	ErrNoSink = errors.New("no analytics sink available")
)

// Sink is one analytics collection endpoint.
type Sink interface {
	Name() string
	// Available reports whether the sink's integration point is present.
	Available() bool
	Send(ev Event) error
}

// SinkFailure is the error one sink returned (or the panic it raised) for an event.
type SinkFailure struct {
	Sink string
	Err  error
}

// DispatchError collects the per-sink failures of one dispatch.
type DispatchError struct {
	Event    string
	Failures []SinkFailure
}

func (e *DispatchError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Sink, f.Err)
	}
	return fmt.Sprintf("dispatch %s: %s", e.Event, strings.Join(parts, "; "))
}

func (e *DispatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
