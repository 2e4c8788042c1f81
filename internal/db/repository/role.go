package repository

import (
	"context"
	"database/sql"
	"fmt"

	"sqlzibar/internal/config"
	"sqlzibar/internal/domain"
)

// RoleRepo persists roles, permissions, and their bindings.
type RoleRepo struct {
	db *sql.DB
	t  config.TableNames
}

// NewRoleRepo creates a RoleRepo over the write pool.
func NewRoleRepo(db *sql.DB, opts config.Options) *RoleRepo {
	return &RoleRepo{db: db, t: opts.Tables()}
}

// Create inserts a role.
func (r *RoleRepo) Create(ctx context.Context, role *domain.Role) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (Id, Key, Name, IsVirtual, CreatedAt) VALUES (?, ?, ?, ?, ?)`, r.t.Roles),
		role.ID, role.Key, role.Name, boolToInt(role.IsVirtual), FormatTime(role.CreatedAt))
	return MapDBError(err)
}

// Ensure upserts a role keyed by its natural id.
func (r *RoleRepo) Ensure(ctx context.Context, role *domain.Role) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (Id, Key, Name, IsVirtual, CreatedAt) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (Id) DO NOTHING`, r.t.Roles),
		role.ID, role.Key, role.Name, boolToInt(role.IsVirtual), FormatTime(role.CreatedAt))
	return MapDBError(err)
}

func scanRoleRow(scan func(dest ...any) error) (*domain.Role, error) {
	var role domain.Role
	var virtual int64
	var created string
	if err := scan(&role.ID, &role.Key, &role.Name, &virtual, &created); err != nil {
		return nil, MapDBError(err)
	}
	role.IsVirtual = virtual != 0
	t, err := ParseTime(created)
	if err != nil {
		return nil, err
	}
	role.CreatedAt = t
	return &role, nil
}

// GetByKey returns the role with the given external key.
func (r *RoleRepo) GetByKey(ctx context.Context, key string) (*domain.Role, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT Id, Key, Name, IsVirtual, CreatedAt FROM %s WHERE Key = ?`, r.t.Roles), key)
	return scanRoleRow(row.Scan)
}

// GetByID returns the role with the given id.
func (r *RoleRepo) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT Id, Key, Name, IsVirtual, CreatedAt FROM %s WHERE Id = ?`, r.t.Roles), id)
	return scanRoleRow(row.Scan)
}

// List returns roles ordered by key.
func (r *RoleRepo) List(ctx context.Context, limit int) ([]domain.Role, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT Id, Key, Name, IsVirtual, CreatedAt FROM %s ORDER BY Key LIMIT ?`, r.t.Roles),
		clampLimit(limit))
	if err != nil {
		return nil, MapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Role
	for rows.Next() {
		role, err := scanRoleRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *role)
	}
	return out, rows.Err()
}

// CreatePermission inserts a permission.
func (r *RoleRepo) CreatePermission(ctx context.Context, p *domain.Permission) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (Id, Key, Name, ResourceTypeId, CreatedAt) VALUES (?, ?, ?, ?, ?)`, r.t.Permissions),
		p.ID, p.Key, p.Name, nullableStrArg(p.ResourceTypeID), FormatTime(p.CreatedAt))
	return MapDBError(err)
}

// EnsurePermission upserts a permission keyed by its natural id.
func (r *RoleRepo) EnsurePermission(ctx context.Context, p *domain.Permission) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (Id, Key, Name, ResourceTypeId, CreatedAt) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (Id) DO NOTHING`, r.t.Permissions),
		p.ID, p.Key, p.Name, nullableStrArg(p.ResourceTypeID), FormatTime(p.CreatedAt))
	return MapDBError(err)
}

func scanPermissionRow(scan func(dest ...any) error) (*domain.Permission, error) {
	var p domain.Permission
	var typeID sql.NullString
	var created string
	if err := scan(&p.ID, &p.Key, &p.Name, &typeID, &created); err != nil {
		return nil, MapDBError(err)
	}
	p.ResourceTypeID = nullableStrFromDB(typeID)
	t, err := ParseTime(created)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = t
	return &p, nil
}

// GetPermissionByKey returns the permission with the given external key.
func (r *RoleRepo) GetPermissionByKey(ctx context.Context, key string) (*domain.Permission, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT Id, Key, Name, ResourceTypeId, CreatedAt FROM %s WHERE Key = ?`, r.t.Permissions), key)
	return scanPermissionRow(row.Scan)
}

// ListPermissions returns permissions ordered by key.
func (r *RoleRepo) ListPermissions(ctx context.Context, limit int) ([]domain.Permission, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT Id, Key, Name, ResourceTypeId, CreatedAt FROM %s ORDER BY Key LIMIT ?`, r.t.Permissions),
		clampLimit(limit))
	if err != nil {
		return nil, MapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Permission
	for rows.Next() {
		p, err := scanPermissionRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// AttachPermission binds a permission to a role; re-attaching is a no-op.
func (r *RoleRepo) AttachPermission(ctx context.Context, roleID, permissionID string) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (RoleId, PermissionId) VALUES (?, ?)
		 ON CONFLICT (RoleId, PermissionId) DO NOTHING`, r.t.RolePermissions),
		roleID, permissionID)
	return MapDBError(err)
}

// AttachPermissionToVirtualRoles binds a permission to every virtual role.
func (r *RoleRepo) AttachPermissionToVirtualRoles(ctx context.Context, permissionID string) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (RoleId, PermissionId)
		 SELECT Id, ? FROM %s WHERE IsVirtual = 1
		 ON CONFLICT (RoleId, PermissionId) DO NOTHING`, r.t.RolePermissions, r.t.Roles),
		permissionID)
	return MapDBError(err)
}
