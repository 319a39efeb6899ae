package service_test

import (
	"database/sql"
	"testing"

	"chatcore/internal/domain"
	"chatcore/internal/store/sqlite"
)

// newTestStore opens an in-memory SQLite-backed domain.Store for service
// tests. A single open connection keeps the in-memory database alive for
// the lifetime of the test (see modernc.org/sqlite ":memory:" semantics).
func newTestStore(t *testing.T) domain.Store {
	store, _ := newTestStoreWithDB(t)
	return store
}

// newTestStoreWithDB additionally exposes the underlying *sql.DB, for tests
// that need to backdate rows directly (e.g. simulating an expired edit
// window) beyond what the domain.Store interface allows.
func newTestStoreWithDB(t *testing.T) (domain.Store, *sql.DB) {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := sqlite.Migrate(db); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return sqlite.NewStore(db), db
}
