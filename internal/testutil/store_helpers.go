package testutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/sessionvault/legacymigrate/internal/migration"
	"github.com/sessionvault/legacymigrate/internal/migrations"
	"github.com/sessionvault/legacymigrate/internal/store"
)

// TestLogger returns a logger that drops everything below error level.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// OpenTestStore opens an empty store in a temporary directory. No migration
// is applied. The store is closed when the test completes.
func OpenTestStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewTestStore opens a temporary store with the full schema and no legacy
// data.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()
	st := OpenTestStore(t)
	MustMigrate(t, st, migrations.Deps{})
	return st
}

// MustMigrate runs every migration unit against st and fails the test if
// the run fails.
func MustMigrate(t *testing.T, st *store.Store, deps migrations.Deps) *migration.RunResult {
	t.Helper()
	runner, err := migration.New(st, migrations.All(deps), migration.WithLogger(TestLogger()))
	MustNoErr(t, err, "create migration runner")
	result, err := runner.Run(context.Background())
	MustNoErr(t, err, "run migrations")
	return result
}
