package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS durable_kv (
    visitor_id TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (unixepoch()),
    PRIMARY KEY (visitor_id, key)
);

CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    visitor_id TEXT NOT NULL,
    started_at INTEGER NOT NULL DEFAULT (unixepoch()),
    last_seen_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_sessions_visitor ON sessions(visitor_id);
CREATE INDEX IF NOT EXISTS idx_sessions_last_seen ON sessions(last_seen_at);

CREATE TABLE IF NOT EXISTS session_kv (
    session_id TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (unixepoch()),
    PRIMARY KEY (session_id, key)
);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Single writer connection; concurrent beacons queue in the pool
	db.SetMaxOpenConns(1)

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Durable returns the durable tier of one visitor.
func (s *SQLiteStore) Durable(visitorID string) *ScopedKV {
	return &ScopedKV{db: s.db, table: "durable_kv", scopeColumn: "visitor_id", scope: visitorID}
}

// Session returns the session tier of one browsing session.
func (s *SQLiteStore) Session(sessionID string) *ScopedKV {
	return &ScopedKV{db: s.db, table: "session_kv", scopeColumn: "session_id", scope: sessionID}
}

// TouchSession records activity on a session, creating it on first sight.
func (s *SQLiteStore) TouchSession(ctx context.Context, sessionID, visitorID string, at time.Time) error {
	now := at.Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, visitor_id, started_at, last_seen_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET last_seen_at = excluded.last_seen_at`,
		sessionID, visitorID, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	var startedAt, lastSeenAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, visitor_id, started_at, last_seen_at FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.VisitorID, &startedAt, &lastSeenAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	sess.StartedAt = time.Unix(startedAt, 0)
	sess.LastSeenAt = time.Unix(lastSeenAt, 0)
	return &sess, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, visitor_id, started_at, last_seen_at FROM sessions ORDER BY last_seen_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		var startedAt, lastSeenAt int64
		if err := rows.Scan(&sess.ID, &sess.VisitorID, &startedAt, &lastSeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess.StartedAt = time.Unix(startedAt, 0)
		sess.LastSeenAt = time.Unix(lastSeenAt, 0)
		sessions = append(sessions, &sess)
	}

	return sessions, rows.Err()
}

// EndSession clears the session tier of a session, as closing the browser would.
func (s *SQLiteStore) EndSession(ctx context.Context, id string) error {
	return s.endSession(ctx, `DELETE FROM sessions WHERE id = ?`, id)
}

// EndIdleSession ends a session only if it is still idle since idleSince. A
// session touched in the meantime is left alone and ErrNotFound is returned.
func (s *SQLiteStore) EndIdleSession(ctx context.Context, id string, idleSince time.Time) error {
	return s.endSession(ctx, `DELETE FROM sessions WHERE id = ? AND last_seen_at < ?`, id, idleSince.Unix())
}

// endSession deletes the session row with query and, when a row matched,
// its session values in the same transaction.
func (s *SQLiteStore) endSession(ctx context.Context, query, id string, args ...any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_kv WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session values: %w", err)
	}

	return tx.Commit()
}

// SweepSessions ends every session last seen before idleSince and returns how many ended.
func (s *SQLiteStore) SweepSessions(ctx context.Context, idleSince time.Time) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE last_seen_at < ?`, idleSince.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to find idle sessions: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	// Re-checked per session: a beacon may have arrived since the SELECT.
	ended := 0
	for _, id := range ids {
		err := s.EndIdleSession(ctx, id, idleSince)
		switch {
		case err == nil:
			ended++
		case !errors.Is(err, ErrNotFound):
			return ended, err
		}
	}
	return ended, nil
}

// Slots lists the stored keys of a visitor (durable tier) or session (session tier).
func (s *SQLiteStore) Slots(ctx context.Context, tier Tier, scope string) ([]Slot, error) {
	var kv *ScopedKV
	switch tier {
	case TierDurable:
		kv = s.Durable(scope)
	case TierSession:
		kv = s.Session(scope)
	default:
		return nil, fmt.Errorf("unknown tier %q", tier)
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT key, value, updated_at FROM %s WHERE %s = ? ORDER BY key`, kv.table, kv.scopeColumn),
		scope,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		var slot Slot
		var updatedAt int64
		if err := rows.Scan(&slot.Key, &slot.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slot.UpdatedAt = time.Unix(updatedAt, 0)
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// ScopedKV is a KV over one scope of a SQLite table.
type ScopedKV struct {
	db          *sql.DB
	table       string
	scopeColumn string
	scope       string
}

func (k *ScopedKV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := k.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT value FROM %s WHERE %s = ? AND key = ?`, k.table, k.scopeColumn),
		k.scope, key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, true, nil
}

func (k *ScopedKV) Set(ctx context.Context, key, value string) error {
	_, err := k.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(%s, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			k.table, k.scopeColumn, k.scopeColumn),
		k.scope, key, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (k *ScopedKV) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	// INSERT OR IGNORE keeps the first writer
	result, err := k.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT OR IGNORE INTO %s (%s, key, value, updated_at) VALUES (?, ?, ?, ?)`,
			k.table, k.scopeColumn),
		k.scope, key, value, time.Now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}
