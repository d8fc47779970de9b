package testutil

import (
	"path/filepath"
	"testing"

	"github.com/headline-goat/funnel-goat/internal/store"
)

// SetupTestStore creates a test database and returns the store.
// Uses t.TempDir() for automatic cleanup on test completion.
func SetupTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// MemoryAdapter returns a storage adapter over fresh in-memory tiers.
func MemoryAdapter() (*store.Adapter, *store.MemoryKV, *store.MemoryKV) {
	session := store.NewMemoryKV()
	durable := store.NewMemoryKV()
	return store.NewAdapter(session, durable), session, durable
}
