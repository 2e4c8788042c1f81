package repository

import (
	"context"
	"database/sql"
	"fmt"

	"sqlzibar/internal/config"
	"sqlzibar/internal/domain"
)

// GroupRepo persists user groups and memberships.
type GroupRepo struct {
	db *sql.DB
	t  config.TableNames
}

// NewGroupRepo creates a GroupRepo over the write pool.
func NewGroupRepo(db *sql.DB, opts config.Options) *GroupRepo {
	return &GroupRepo{db: db, t: opts.Tables()}
}

// Create inserts the group and its backing principal atomically.
func (r *GroupRepo) Create(ctx context.Context, p *domain.Principal, g *domain.UserGroup) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return MapDBError(err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (Id, PrincipalTypeId, DisplayName, OrganizationId, ExternalRef, CreatedAt)
		 VALUES (?, ?, ?, ?, ?, ?)`, r.t.Principals),
		p.ID, p.PrincipalTypeID, p.DisplayName,
		nullableStrArg(p.OrganizationID), nullableStrArg(p.ExternalRef), FormatTime(p.CreatedAt)); err != nil {
		return MapDBError(err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (Id, Name, PrincipalId, CreatedAt) VALUES (?, ?, ?, ?)`, r.t.UserGroups),
		g.ID, g.Name, g.PrincipalID, FormatTime(g.CreatedAt)); err != nil {
		return MapDBError(err)
	}
	return MapDBError(tx.Commit())
}

func scanGroupRow(scan func(dest ...any) error) (*domain.UserGroup, error) {
	var g domain.UserGroup
	var created string
	if err := scan(&g.ID, &g.Name, &g.PrincipalID, &created); err != nil {
		return nil, MapDBError(err)
	}
	t, err := ParseTime(created)
	if err != nil {
		return nil, err
	}
	g.CreatedAt = t
	return &g, nil
}

// GetByID returns the group with the given id.
func (r *GroupRepo) GetByID(ctx context.Context, id string) (*domain.UserGroup, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT Id, Name, PrincipalId, CreatedAt FROM %s WHERE Id = ?`, r.t.UserGroups), id)
	return scanGroupRow(row.Scan)
}

// GetByName returns the group with the given name.
func (r *GroupRepo) GetByName(ctx context.Context, name string) (*domain.UserGroup, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT Id, Name, PrincipalId, CreatedAt FROM %s WHERE Name = ?`, r.t.UserGroups), name)
	return scanGroupRow(row.Scan)
}

// List returns groups ordered by name.
func (r *GroupRepo) List(ctx context.Context, limit int) ([]domain.UserGroup, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT Id, Name, PrincipalId, CreatedAt FROM %s ORDER BY Name, Id LIMIT ?`, r.t.UserGroups),
		clampLimit(limit))
	if err != nil {
		return nil, MapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.UserGroup
	for rows.Next() {
		g, err := scanGroupRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// AddMember inserts a membership row. Adding an existing membership is a
// conflict; the type invariant (no group members) is enforced by the service
// before this call.
func (r *GroupRepo) AddMember(ctx context.Context, m *domain.UserGroupMembership) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (PrincipalId, UserGroupId, CreatedAt) VALUES (?, ?, ?)`, r.t.UserGroupMemberships),
		m.PrincipalID, m.UserGroupID, FormatTime(m.CreatedAt))
	return MapDBError(err)
}

// RemoveMember deletes a membership row; removing an absent row is a no-op.
func (r *GroupRepo) RemoveMember(ctx context.Context, principalID, groupID string) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE PrincipalId = ? AND UserGroupId = ?`, r.t.UserGroupMemberships),
		principalID, groupID)
	return MapDBError(err)
}

// GroupsForPrincipal returns the groups that directly contain the principal,
// ordered by group creation so principal resolution is deterministic.
func (r *GroupRepo) GroupsForPrincipal(ctx context.Context, principalID string) ([]domain.UserGroup, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT g.Id, g.Name, g.PrincipalId, g.CreatedAt
		 FROM %s m
		 JOIN %s g ON g.Id = m.UserGroupId
		 WHERE m.PrincipalId = ?
		 ORDER BY g.CreatedAt, g.Id`, r.t.UserGroupMemberships, r.t.UserGroups),
		principalID)
	if err != nil {
		return nil, MapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.UserGroup
	for rows.Next() {
		g, err := scanGroupRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// ListMembers returns the member principals of a group ordered by display
// name.
func (r *GroupRepo) ListMembers(ctx context.Context, groupID string, limit int) ([]domain.Principal, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT p.Id, p.PrincipalTypeId, p.DisplayName, p.OrganizationId, p.ExternalRef, p.CreatedAt
		 FROM %s m
		 JOIN %s p ON p.Id = m.PrincipalId
		 WHERE m.UserGroupId = ?
		 ORDER BY p.DisplayName, p.Id LIMIT ?`, r.t.UserGroupMemberships, r.t.Principals),
		groupID, clampLimit(limit))
	if err != nil {
		return nil, MapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Principal
	for rows.Next() {
		p, err := scanPrincipalRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
