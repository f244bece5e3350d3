package service_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/msomdec/typing-exam/internal/repository/sqlite"
)

// testBcryptCost keeps password hashing fast in tests.
const testBcryptCost = 4

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
