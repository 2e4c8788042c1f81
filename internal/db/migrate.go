package db

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// RunHostMigrations executes all pending goose migrations for the host-owned
// business tables. These are separate from the engine schema: the engine's
// tables are renameable and versioned through Migrator, while the reference
// host's tables are plain embedded SQL.
func RunHostMigrations(db *sql.DB) error {
	goose.SetBaseFS(EmbedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}
