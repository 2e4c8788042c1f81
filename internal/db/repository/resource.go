package repository

import (
	"context"
	"database/sql"
	"fmt"

	"sqlzibar/internal/config"
	"sqlzibar/internal/domain"
)

// ResourceRepo persists the resource hierarchy.
type ResourceRepo struct {
	db *sql.DB
	t  config.TableNames
}

// NewResourceRepo creates a ResourceRepo over the write pool.
func NewResourceRepo(db *sql.DB, opts config.Options) *ResourceRepo {
	return &ResourceRepo{db: db, t: opts.Tables()}
}

// Create inserts a resource row.
func (r *ResourceRepo) Create(ctx context.Context, res *domain.Resource) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (Id, ParentId, Name, ResourceTypeId, IsActive, CreatedAt)
		 VALUES (?, ?, ?, ?, ?, ?)`, r.t.Resources),
		res.ID, nullableStrArg(res.ParentID), res.Name, res.ResourceTypeID,
		boolToInt(res.IsActive), FormatTime(res.CreatedAt))
	return MapDBError(err)
}

// Ensure upserts a resource keyed by its natural id. Existing rows are left
// untouched so repeated seeding cannot move or rename a resource.
func (r *ResourceRepo) Ensure(ctx context.Context, res *domain.Resource) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (Id, ParentId, Name, ResourceTypeId, IsActive, CreatedAt)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (Id) DO NOTHING`, r.t.Resources),
		res.ID, nullableStrArg(res.ParentID), res.Name, res.ResourceTypeID,
		boolToInt(res.IsActive), FormatTime(res.CreatedAt))
	return MapDBError(err)
}

func scanResourceRow(scan func(dest ...any) error) (*domain.Resource, error) {
	var res domain.Resource
	var parent sql.NullString
	var active int64
	var created string
	if err := scan(&res.ID, &parent, &res.Name, &res.ResourceTypeID, &active, &created); err != nil {
		return nil, MapDBError(err)
	}
	res.ParentID = nullableStrFromDB(parent)
	res.IsActive = active != 0
	t, err := ParseTime(created)
	if err != nil {
		return nil, err
	}
	res.CreatedAt = t
	return &res, nil
}

// GetByID returns the resource with the given id.
func (r *ResourceRepo) GetByID(ctx context.Context, id string) (*domain.Resource, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT Id, ParentId, Name, ResourceTypeId, IsActive, CreatedAt
		 FROM %s WHERE Id = ?`, r.t.Resources), id)
	return scanResourceRow(row.Scan)
}

// SetActive flips the IsActive flag. Descendants are unaffected.
func (r *ResourceRepo) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET IsActive = ? WHERE Id = ?`, r.t.Resources),
		boolToInt(active), id)
	if err != nil {
		return MapDBError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return MapDBError(err)
	}
	if n == 0 {
		return &domain.NotFoundError{Message: "resource not found"}
	}
	return nil
}

// Children returns the direct children of a resource, ordered by name.
func (r *ResourceRepo) Children(ctx context.Context, parentID string) ([]domain.Resource, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT Id, ParentId, Name, ResourceTypeId, IsActive, CreatedAt
		 FROM %s WHERE ParentId = ? ORDER BY Name, Id`, r.t.Resources), parentID)
	if err != nil {
		return nil, MapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Resource
	for rows.Next() {
		res, err := scanResourceRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// AncestorChain returns the target resource first, then each parent up to
// the root. Empty when the id is unknown.
func (r *ResourceRepo) AncestorChain(ctx context.Context, id string) ([]domain.Resource, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`WITH RECURSIVE chain(Id, ParentId, Name, ResourceTypeId, IsActive, CreatedAt, Depth) AS (
			SELECT Id, ParentId, Name, ResourceTypeId, IsActive, CreatedAt, 0
			FROM %s WHERE Id = ?
			UNION ALL
			SELECT r.Id, r.ParentId, r.Name, r.ResourceTypeId, r.IsActive, r.CreatedAt, c.Depth + 1
			FROM %s r JOIN chain c ON r.Id = c.ParentId
		 )
		 SELECT Id, ParentId, Name, ResourceTypeId, IsActive, CreatedAt
		 FROM chain ORDER BY Depth`, r.t.Resources, r.t.Resources), id)
	if err != nil {
		return nil, MapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Resource
	for rows.Next() {
		res, err := scanResourceRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// Count returns the total number of resources.
func (r *ResourceRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.t.Resources)).Scan(&n)
	return n, MapDBError(err)
}

// CreateType inserts a resource type.
func (r *ResourceRepo) CreateType(ctx context.Context, t *domain.ResourceType) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (Id, Name) VALUES (?, ?)`, r.t.ResourceTypes), t.ID, t.Name)
	return MapDBError(err)
}

// EnsureType upserts a resource type keyed by its natural id.
func (r *ResourceRepo) EnsureType(ctx context.Context, t *domain.ResourceType) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (Id, Name) VALUES (?, ?)
		 ON CONFLICT (Id) DO NOTHING`, r.t.ResourceTypes), t.ID, t.Name)
	return MapDBError(err)
}

// GetTypeByID returns the resource type with the given id.
func (r *ResourceRepo) GetTypeByID(ctx context.Context, id string) (*domain.ResourceType, error) {
	var t domain.ResourceType
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT Id, Name FROM %s WHERE Id = ?`, r.t.ResourceTypes), id).Scan(&t.ID, &t.Name)
	if err != nil {
		return nil, MapDBError(err)
	}
	return &t, nil
}

// ListTypes returns all resource types ordered by id.
func (r *ResourceRepo) ListTypes(ctx context.Context) ([]domain.ResourceType, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT Id, Name FROM %s ORDER BY Id`, r.t.ResourceTypes))
	if err != nil {
		return nil, MapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.ResourceType
	for rows.Next() {
		var t domain.ResourceType
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, MapDBError(err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
