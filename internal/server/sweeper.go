package server

import (
	"context"
	"time"

	"github.com/headline-goat/funnel-goat/internal/metrics"
	"github.com/headline-goat/funnel-goat/internal/store"
)

// SweepIdle ends every session last seen before idleSince. Ending a session
// clears its session tier; the visitor's durable tier is kept.
func SweepIdle(ctx context.Context, s *store.SQLiteStore, idleSince time.Time) (int, error) {
	n, err := s.SweepSessions(ctx, idleSince)
	metrics.SessionsEnded.Add(float64(n))
	return n, err
}
