package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrCorrupt marks stored content that could not be decoded.
	ErrCorrupt = errors.New("corrupt stored value")

	// ErrUnavailable marks a storage tier that cannot be read or written.
	ErrUnavailable = errors.New("storage unavailable")

	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Tier names the lifetime of a key-value store.
type Tier string

const (
	// TierSession is cleared when the browsing session ends.
	TierSession Tier = "session"

	// TierDurable survives across sessions.
	TierDurable Tier = "durable"
)

// Persisted slot names.
const (
	KeyFirstTouchUTM = "first_touch_utm"
	KeyLastTouchUTM  = "last_touch_utm"
	KeyCurrentUTM    = "current_utm"
	KeyFunnelHistory = "funnel_history"
)

// KV is a string key-value store scoped to one visitor or one session.
type KV interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// SetIfAbsent writes only when the key does not exist and reports whether it wrote.
	SetIfAbsent(ctx context.Context, key, value string) (bool, error)
}
