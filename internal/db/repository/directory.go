package repository

import (
	"context"
	"database/sql"

	"sqlzibar/internal/domain"
)

// DirectoryRepo stores the demo chains and locations. These are host-owned
// tables created by the goose migrations, so names are fixed rather than
// templated.
type DirectoryRepo struct {
	db *sql.DB
}

// NewDirectoryRepo creates a DirectoryRepo.
func NewDirectoryRepo(db *sql.DB) *DirectoryRepo {
	return &DirectoryRepo{db: db}
}

// CreateChain inserts a chain row.
func (r *DirectoryRepo) CreateChain(ctx context.Context, c *domain.Chain) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO Chains (Id, ResourceId, Name, City, CreatedAt)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.ResourceID, c.Name, c.City, FormatTime(c.CreatedAt),
	)
	return MapDBError(err)
}

func scanChainRow(scan func(dest ...any) error) (*domain.Chain, error) {
	var c domain.Chain
	var createdAt string
	if err := scan(&c.ID, &c.ResourceID, &c.Name, &c.City, &createdAt); err != nil {
		return nil, err
	}
	t, err := ParseTime(createdAt)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = t
	return &c, nil
}

// GetChainByID returns a chain by id.
func (r *DirectoryRepo) GetChainByID(ctx context.Context, id string) (*domain.Chain, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT Id, ResourceId, Name, City, CreatedAt
		FROM Chains WHERE Id = ?`, id)
	c, err := scanChainRow(row.Scan)
	if err != nil {
		return nil, MapDBError(err)
	}
	return c, nil
}

// GetChainByResourceID returns the chain backed by a resource.
func (r *DirectoryRepo) GetChainByResourceID(ctx context.Context, resourceID string) (*domain.Chain, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT Id, ResourceId, Name, City, CreatedAt
		FROM Chains WHERE ResourceId = ?`, resourceID)
	c, err := scanChainRow(row.Scan)
	if err != nil {
		return nil, MapDBError(err)
	}
	return c, nil
}

// CountChains counts all chains.
func (r *DirectoryRepo) CountChains(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM Chains`).Scan(&n); err != nil {
		return 0, MapDBError(err)
	}
	return n, nil
}

// CreateLocation inserts a location row.
func (r *DirectoryRepo) CreateLocation(ctx context.Context, l *domain.Location) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO Locations (Id, ResourceId, ChainId, Name, City, CreatedAt)
		VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, l.ResourceID, l.ChainID, l.Name, l.City, FormatTime(l.CreatedAt),
	)
	return MapDBError(err)
}

func scanLocationRow(scan func(dest ...any) error) (*domain.Location, error) {
	var l domain.Location
	var createdAt string
	if err := scan(&l.ID, &l.ResourceID, &l.ChainID, &l.Name, &l.City, &createdAt); err != nil {
		return nil, err
	}
	t, err := ParseTime(createdAt)
	if err != nil {
		return nil, err
	}
	l.CreatedAt = t
	return &l, nil
}

// GetLocationByID returns a location by id.
func (r *DirectoryRepo) GetLocationByID(ctx context.Context, id string) (*domain.Location, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT Id, ResourceId, ChainId, Name, City, CreatedAt
		FROM Locations WHERE Id = ?`, id)
	l, err := scanLocationRow(row.Scan)
	if err != nil {
		return nil, MapDBError(err)
	}
	return l, nil
}

// ListLocationsByChain returns a chain's locations ordered by name.
func (r *DirectoryRepo) ListLocationsByChain(ctx context.Context, chainID string, limit int) ([]domain.Location, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT Id, ResourceId, ChainId, Name, City, CreatedAt
		FROM Locations WHERE ChainId = ?
		ORDER BY Name, Id LIMIT ?`, chainID, clampLimit(limit))
	if err != nil {
		return nil, MapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	var locations []domain.Location
	for rows.Next() {
		l, err := scanLocationRow(rows.Scan)
		if err != nil {
			return nil, MapDBError(err)
		}
		locations = append(locations, *l)
	}
	return locations, rows.Err()
}

// CountLocations counts all locations.
func (r *DirectoryRepo) CountLocations(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM Locations`).Scan(&n); err != nil {
		return 0, MapDBError(err)
	}
	return n, nil
}
