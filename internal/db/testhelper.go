package db

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"sqlzibar/internal/config"
)

// OpenTestSQLite opens a hardened SQLite write/read pool pair in t.TempDir(),
// brings the engine schema and host tables to the latest version on the
// write pool, and registers cleanup.
//
// Tests that don't need the read/write split can use writeDB for everything.
// Core data is not seeded; tests that need it run the seeder explicitly.
func OpenTestSQLite(t *testing.T) (writeDB, readDB *sql.DB) {
	t.Helper()
	return OpenTestSQLiteWithOptions(t, config.DefaultOptions())
}

// OpenTestSQLiteWithOptions is OpenTestSQLite with custom engine options,
// for tests exercising renamed tables or non-default schemas.
func OpenTestSQLiteWithOptions(t *testing.T, opts config.Options) (writeDB, readDB *sql.DB) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.sqlite")

	writeDB, readDB, err := OpenSQLitePair(path, 4)
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = readDB.Close()
		_ = writeDB.Close()
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := NewMigrator(writeDB, opts, logger).Run(context.Background()); err != nil {
		t.Fatalf("run engine schema: %v", err)
	}
	if err := RunHostMigrations(writeDB); err != nil {
		t.Fatalf("run host migrations: %v", err)
	}

	return writeDB, readDB
}
