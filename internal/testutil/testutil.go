// Package testutil provides testing utilities for store-backed tests.
package testutil

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"

	"github.com/gatherr/gatherr/internal/database"
)

// TestDB wraps a migrated test database.
type TestDB struct {
	DB     *database.DB
	Store  *database.Store
	Conn   *sql.DB
	Logger zerolog.Logger
}

// NewTestDB creates a migrated database in t.TempDir(). Cleanup is
// registered on the test.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dbPath := t.TempDir() + "/test.db"
	logger := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)

	db, err := database.New(dbPath)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return &TestDB{
		DB:     db,
		Store:  database.NewStore(db.Conn()),
		Conn:   db.Conn(),
		Logger: logger,
	}
}

// NewTestLogger creates a test logger that outputs to t.Log.
func NewTestLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}

// NopLogger returns a no-op logger for tests that don't need output.
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}
