package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"sqlzibar/internal/config"
)

// EngineSchemaVersion is the schema version this build migrates to.
const EngineSchemaVersion = 5

// versionTableName tracks the engine schema version. Unlike the engine
// tables it is not renameable: it is how two builds agree on what has
// already been applied.
const versionTableName = "SqlzibarSchema"

// Migrator brings the engine-owned tables to the current schema version.
//
// Steps are applied in order, each inside its own write transaction: the
// version row is re-read under the transaction, the step's DDL runs only if
// the version is still behind, and the single Version row is advanced with
// `UPDATE ... WHERE Version < ?`. All object creation is guarded with IF NOT
// EXISTS, so two processes migrating the same store concurrently both
// succeed and leave identical state.
//
// Host-owned business tables are not managed here; see RunHostMigrations.
type Migrator struct {
	db     *sql.DB
	schema string
	tables config.TableNames // schema-qualified
	raw    config.TableNames // physical names without schema prefix
	logger *slog.Logger
}

// NewMigrator creates a Migrator over the write pool.
func NewMigrator(db *sql.DB, opts config.Options, logger *slog.Logger) *Migrator {
	schema := opts.Schema
	if schema == "dbo" {
		schema = ""
	}
	return &Migrator{
		db:     db,
		schema: schema,
		tables: opts.Tables(),
		raw:    opts.TableNames.WithDefaults(),
		logger: logger.With("component", "schema"),
	}
}

// Run applies all pending schema steps.
func (m *Migrator) Run(ctx context.Context) error {
	if err := m.ensureVersionTable(ctx); err != nil {
		return fmt.Errorf("ensure version table: %w", err)
	}
	for _, step := range m.steps() {
		applied, err := m.applyStep(ctx, step)
		if err != nil {
			return fmt.Errorf("apply schema step %d (%s): %w", step.version, step.name, err)
		}
		if applied {
			m.logger.Info("applied engine schema step", "version", step.version, "name", step.name)
		}
	}
	return nil
}

// Version reports the current schema version, 0 when the store is empty.
func (m *Migrator) Version(ctx context.Context) (int, error) {
	var v int
	err := m.db.QueryRowContext(ctx, "SELECT Version FROM "+m.qual(versionTableName)).Scan(&v)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return 0, nil
		}
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func (m *Migrator) qual(name string) string {
	if m.schema == "" {
		return name
	}
	return m.schema + "." + name
}

func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	vt := m.qual(versionTableName)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (Version INTEGER NOT NULL)", vt)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (Version) SELECT 0 WHERE NOT EXISTS (SELECT 1 FROM %s)", vt, vt)); err != nil {
		return err
	}
	return tx.Commit()
}

type schemaStep struct {
	version int
	name    string
	stmts   []string
}

func (m *Migrator) applyStep(ctx context.Context, step schemaStep) (bool, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	vt := m.qual(versionTableName)

	// Re-check under the write transaction so concurrent migrators cannot
	// both apply the same step.
	var current int
	if err := tx.QueryRowContext(ctx, "SELECT Version FROM "+vt).Scan(&current); err != nil {
		return false, fmt.Errorf("read schema version: %w", err)
	}
	if current >= step.version {
		return false, nil
	}

	for _, stmt := range step.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return false, fmt.Errorf("exec schema statement: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		"UPDATE %s SET Version = ? WHERE Version < ?", vt), step.version, step.version); err != nil {
		return false, fmt.Errorf("advance schema version: %w", err)
	}
	return true, tx.Commit()
}

// createIndex builds guarded index DDL. SQLite index names live in the
// schema namespace, so the prefix goes on the index name while the table
// stays unqualified.
func (m *Migrator) createIndex(table string, cols ...string) string {
	name := fmt.Sprintf("ix_%s_%s", table, strings.Join(cols, "_"))
	if m.schema != "" {
		name = m.schema + "." + name
	}
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", name, table, strings.Join(cols, ", "))
}

func (m *Migrator) steps() []schemaStep {
	t := m.tables
	r := m.raw

	return []schemaStep{
		{
			version: 1,
			name:    "principal tables",
			stmts: []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	Id   TEXT PRIMARY KEY,
	Name TEXT NOT NULL UNIQUE
)`, t.PrincipalTypes),
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	Id              TEXT PRIMARY KEY,
	PrincipalTypeId TEXT NOT NULL REFERENCES %s(Id),
	DisplayName     TEXT NOT NULL,
	OrganizationId  TEXT,
	ExternalRef     TEXT UNIQUE,
	CreatedAt       TEXT NOT NULL
)`, t.Principals, r.PrincipalTypes),
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	Id          TEXT PRIMARY KEY,
	PrincipalId TEXT NOT NULL UNIQUE REFERENCES %s(Id) ON DELETE CASCADE,
	Email       TEXT NOT NULL UNIQUE,
	CreatedAt   TEXT NOT NULL
)`, t.Users, r.Principals),
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	Id          TEXT PRIMARY KEY,
	PrincipalId TEXT NOT NULL UNIQUE REFERENCES %s(Id) ON DELETE CASCADE,
	Purpose     TEXT NOT NULL DEFAULT '',
	CreatedAt   TEXT NOT NULL
)`, t.Agents, r.Principals),
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	Id          TEXT PRIMARY KEY,
	PrincipalId TEXT NOT NULL UNIQUE REFERENCES %s(Id) ON DELETE CASCADE,
	Description TEXT NOT NULL DEFAULT '',
	TokenHash   TEXT UNIQUE,
	CreatedAt   TEXT NOT NULL
)`, t.ServiceAccounts, r.Principals),
			},
		},
		{
			version: 2,
			name:    "group tables",
			stmts: []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	Id          TEXT PRIMARY KEY,
	Name        TEXT NOT NULL UNIQUE,
	PrincipalId TEXT NOT NULL UNIQUE REFERENCES %s(Id) ON DELETE CASCADE,
	CreatedAt   TEXT NOT NULL
)`, t.UserGroups, r.Principals),
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	PrincipalId TEXT NOT NULL REFERENCES %s(Id) ON DELETE CASCADE,
	UserGroupId TEXT NOT NULL REFERENCES %s(Id) ON DELETE CASCADE,
	CreatedAt   TEXT NOT NULL,
	PRIMARY KEY (PrincipalId, UserGroupId)
)`, t.UserGroupMemberships, r.Principals, r.UserGroups),
			},
		},
		{
			version: 3,
			name:    "resource tables",
			stmts: []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	Id   TEXT PRIMARY KEY,
	Name TEXT NOT NULL
)`, t.ResourceTypes),
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	Id             TEXT PRIMARY KEY,
	ParentId       TEXT REFERENCES %s(Id),
	Name           TEXT NOT NULL,
	ResourceTypeId TEXT NOT NULL REFERENCES %s(Id),
	IsActive       INTEGER NOT NULL DEFAULT 1,
	CreatedAt      TEXT NOT NULL
)`, t.Resources, r.Resources, r.ResourceTypes),
			},
		},
		{
			version: 4,
			name:    "role and grant tables",
			stmts: []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	Id        TEXT PRIMARY KEY,
	Key       TEXT NOT NULL UNIQUE,
	Name      TEXT NOT NULL,
	IsVirtual INTEGER NOT NULL DEFAULT 0,
	CreatedAt TEXT NOT NULL
)`, t.Roles),
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	Id             TEXT PRIMARY KEY,
	Key            TEXT NOT NULL UNIQUE,
	Name           TEXT NOT NULL,
	ResourceTypeId TEXT REFERENCES %s(Id),
	CreatedAt      TEXT NOT NULL
)`, t.Permissions, r.ResourceTypes),
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	RoleId       TEXT NOT NULL REFERENCES %s(Id) ON DELETE CASCADE,
	PermissionId TEXT NOT NULL REFERENCES %s(Id) ON DELETE CASCADE,
	PRIMARY KEY (RoleId, PermissionId)
)`, t.RolePermissions, r.Roles, r.Permissions),
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	Id            TEXT PRIMARY KEY,
	PrincipalId   TEXT NOT NULL REFERENCES %s(Id) ON DELETE CASCADE,
	ResourceId    TEXT NOT NULL REFERENCES %s(Id) ON DELETE CASCADE,
	RoleId        TEXT NOT NULL REFERENCES %s(Id),
	EffectiveFrom TEXT,
	EffectiveTo   TEXT,
	CreatedAt     TEXT NOT NULL
)`, t.Grants, r.Principals, r.Resources, r.Roles),
			},
		},
		{
			version: 5,
			name:    "access path indexes",
			stmts: []string{
				m.createIndex(r.Grants, "PrincipalId", "RoleId"),
				m.createIndex(r.Grants, "ResourceId"),
				m.createIndex(r.Resources, "ParentId"),
				m.createIndex(r.UserGroupMemberships, "PrincipalId"),
				m.createIndex(r.RolePermissions, "PermissionId"),
			},
		},
	}
}
