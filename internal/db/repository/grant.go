package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sqlzibar/internal/config"
	"sqlzibar/internal/domain"
)

// GrantRepo persists grants. Grants are never deleted; ending a grant closes
// its validity window.
type GrantRepo struct {
	db *sql.DB
	t  config.TableNames
}

// NewGrantRepo creates a GrantRepo over the write pool.
func NewGrantRepo(db *sql.DB, opts config.Options) *GrantRepo {
	return &GrantRepo{db: db, t: opts.Tables()}
}

// Create inserts a grant.
func (r *GrantRepo) Create(ctx context.Context, g *domain.Grant) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (Id, PrincipalId, ResourceId, RoleId, EffectiveFrom, EffectiveTo, CreatedAt)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`, r.t.Grants),
		g.ID, g.PrincipalID, g.ResourceID, g.RoleID,
		nullableTimeArg(g.EffectiveFrom), nullableTimeArg(g.EffectiveTo), FormatTime(g.CreatedAt))
	return MapDBError(err)
}

// Ensure upserts a grant keyed by its natural id.
func (r *GrantRepo) Ensure(ctx context.Context, g *domain.Grant) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (Id, PrincipalId, ResourceId, RoleId, EffectiveFrom, EffectiveTo, CreatedAt)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (Id) DO NOTHING`, r.t.Grants),
		g.ID, g.PrincipalID, g.ResourceID, g.RoleID,
		nullableTimeArg(g.EffectiveFrom), nullableTimeArg(g.EffectiveTo), FormatTime(g.CreatedAt))
	return MapDBError(err)
}

func scanGrantRow(scan func(dest ...any) error) (*domain.Grant, error) {
	var g domain.Grant
	var from, to sql.NullString
	var created string
	if err := scan(&g.ID, &g.PrincipalID, &g.ResourceID, &g.RoleID, &from, &to, &created); err != nil {
		return nil, MapDBError(err)
	}
	var err error
	if g.EffectiveFrom, err = nullableTimeFromDB(from); err != nil {
		return nil, err
	}
	if g.EffectiveTo, err = nullableTimeFromDB(to); err != nil {
		return nil, err
	}
	t, err := ParseTime(created)
	if err != nil {
		return nil, err
	}
	g.CreatedAt = t
	return &g, nil
}

const grantColumns = "Id, PrincipalId, ResourceId, RoleId, EffectiveFrom, EffectiveTo, CreatedAt"

// GetByID returns the grant with the given id.
func (r *GrantRepo) GetByID(ctx context.Context, id string) (*domain.Grant, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT %s FROM %s WHERE Id = ?`, grantColumns, r.t.Grants), id)
	return scanGrantRow(row.Scan)
}

// End closes the grant's validity window at the given moment. Ending an
// already-ended grant moves the window only backward, never forward.
func (r *GrantRepo) End(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET EffectiveTo = ?
		 WHERE Id = ? AND (EffectiveTo IS NULL OR EffectiveTo > ?)`, r.t.Grants),
		FormatTime(at), id, FormatTime(at))
	if err != nil {
		return MapDBError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return MapDBError(err)
	}
	if n == 0 {
		// Distinguish an unknown id from an already-ended grant.
		var exists int64
		if err := r.db.QueryRowContext(ctx, fmt.Sprintf(
			`SELECT COUNT(*) FROM %s WHERE Id = ?`, r.t.Grants), id).Scan(&exists); err != nil {
			return MapDBError(err)
		}
		if exists == 0 {
			return &domain.NotFoundError{Message: "grant not found"}
		}
	}
	return nil
}

func (r *GrantRepo) queryGrants(ctx context.Context, query string, args ...any) ([]domain.Grant, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Grant
	for rows.Next() {
		g, err := scanGrantRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// ListForPrincipal returns the principal's grants, newest first.
func (r *GrantRepo) ListForPrincipal(ctx context.Context, principalID string, limit int) ([]domain.Grant, error) {
	return r.queryGrants(ctx, fmt.Sprintf(
		`SELECT %s FROM %s WHERE PrincipalId = ?
		 ORDER BY CreatedAt DESC, Id LIMIT ?`, grantColumns, r.t.Grants),
		principalID, clampLimit(limit))
}

// ListRecent returns the most recently created grants.
func (r *GrantRepo) ListRecent(ctx context.Context, limit int) ([]domain.Grant, error) {
	return r.queryGrants(ctx, fmt.Sprintf(
		`SELECT %s FROM %s ORDER BY CreatedAt DESC, Id LIMIT ?`, grantColumns, r.t.Grants),
		clampLimit(limit))
}

// ListExpiringBetween returns grants whose window closes in [from, to),
// for the maintenance report.
func (r *GrantRepo) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]domain.Grant, error) {
	return r.queryGrants(ctx, fmt.Sprintf(
		`SELECT %s FROM %s
		 WHERE EffectiveTo IS NOT NULL AND EffectiveTo >= ? AND EffectiveTo < ?
		 ORDER BY EffectiveTo, Id`, grantColumns, r.t.Grants),
		FormatTime(from), FormatTime(to))
}

// CountActive returns the number of grants active at the given moment.
func (r *GrantRepo) CountActive(ctx context.Context, at time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM %s
		 WHERE (EffectiveFrom IS NULL OR EffectiveFrom <= ?)
		   AND (EffectiveTo IS NULL OR EffectiveTo > ?)`, r.t.Grants),
		FormatTime(at), FormatTime(at)).Scan(&n)
	return n, MapDBError(err)
}
