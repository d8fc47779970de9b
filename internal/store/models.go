package store

import "time"

// Session is one browsing session of a visitor.
type Session struct {
	ID         string    `json:"id"`
	VisitorID  string    `json:"visitor_id"`
	StartedAt  time.Time `json:"started_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// Slot is one stored key of a visitor or session scope.
type Slot struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
