package db

import "embed"

// EmbedMigrations contains the embedded SQL migration files for host-owned
// business tables. Engine tables are managed by Migrator instead.
//
//go:embed migrations/*.sql
var EmbedMigrations embed.FS
