// Package metrics exposes Prometheus counters for the telemetry pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fg_events_dispatched_total",
			Help: "Events handed to an analytics sink",
		},
		[]string{"sink"},
	)

	EventsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fg_events_skipped_total",
			Help: "Events dropped because no sink was available",
		},
	)

	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fg_sink_errors_total",
			Help: "Sink calls that failed or panicked",
		},
		[]string{"sink"},
	)

	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fg_storage_errors_total",
			Help: "Storage reads and writes that failed",
		},
		[]string{"tier", "op"},
	)

	UTMCaptures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fg_utm_captures_total",
			Help: "Navigations carrying campaign tags, by touch slot written",
		},
		[]string{"touch"},
	)

	FunnelProgressions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fg_funnel_progressions_total",
			Help: "Funnel stage changes between consecutive navigations",
		},
		[]string{"from", "to"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fg_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	SessionsEnded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fg_sessions_ended_total",
			Help: "Sessions removed after going idle",
		},
	)
)
