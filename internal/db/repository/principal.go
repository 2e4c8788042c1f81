package repository

import (
	"context"
	"database/sql"
	"fmt"

	"sqlzibar/internal/config"
	"sqlzibar/internal/domain"
)

// PrincipalRepo persists principals and their extension rows.
type PrincipalRepo struct {
	db *sql.DB
	t  config.TableNames
}

// NewPrincipalRepo creates a PrincipalRepo over the write pool.
func NewPrincipalRepo(db *sql.DB, opts config.Options) *PrincipalRepo {
	return &PrincipalRepo{db: db, t: opts.Tables()}
}

func (r *PrincipalRepo) insertPrincipal(ctx context.Context, tx *sql.Tx, p *domain.Principal) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (Id, PrincipalTypeId, DisplayName, OrganizationId, ExternalRef, CreatedAt)
		 VALUES (?, ?, ?, ?, ?, ?)`, r.t.Principals),
		p.ID, p.PrincipalTypeID, p.DisplayName,
		nullableStrArg(p.OrganizationID), nullableStrArg(p.ExternalRef), FormatTime(p.CreatedAt))
	return err
}

// CreateUser inserts the principal and its user extension atomically.
func (r *PrincipalRepo) CreateUser(ctx context.Context, p *domain.Principal, u *domain.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return MapDBError(err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := r.insertPrincipal(ctx, tx, p); err != nil {
		return MapDBError(err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (Id, PrincipalId, Email, CreatedAt) VALUES (?, ?, ?, ?)`, r.t.Users),
		u.ID, u.PrincipalID, u.Email, FormatTime(u.CreatedAt)); err != nil {
		return MapDBError(err)
	}
	return MapDBError(tx.Commit())
}

// CreateAgent inserts the principal and its agent extension atomically.
func (r *PrincipalRepo) CreateAgent(ctx context.Context, p *domain.Principal, a *domain.Agent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return MapDBError(err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := r.insertPrincipal(ctx, tx, p); err != nil {
		return MapDBError(err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (Id, PrincipalId, Purpose, CreatedAt) VALUES (?, ?, ?, ?)`, r.t.Agents),
		a.ID, a.PrincipalID, a.Purpose, FormatTime(a.CreatedAt)); err != nil {
		return MapDBError(err)
	}
	return MapDBError(tx.Commit())
}

// CreateServiceAccount inserts the principal and its service-account
// extension atomically.
func (r *PrincipalRepo) CreateServiceAccount(ctx context.Context, p *domain.Principal, sa *domain.ServiceAccount) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return MapDBError(err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := r.insertPrincipal(ctx, tx, p); err != nil {
		return MapDBError(err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (Id, PrincipalId, Description, TokenHash, CreatedAt) VALUES (?, ?, ?, ?, ?)`, r.t.ServiceAccounts),
		sa.ID, sa.PrincipalID, sa.Description, nullableStrArg(sa.TokenHash), FormatTime(sa.CreatedAt)); err != nil {
		return MapDBError(err)
	}
	return MapDBError(tx.Commit())
}

func scanPrincipalRow(scan func(dest ...any) error) (*domain.Principal, error) {
	var p domain.Principal
	var org, ref sql.NullString
	var created string
	if err := scan(&p.ID, &p.PrincipalTypeID, &p.DisplayName, &org, &ref, &created); err != nil {
		return nil, MapDBError(err)
	}
	p.OrganizationID = nullableStrFromDB(org)
	p.ExternalRef = nullableStrFromDB(ref)
	t, err := ParseTime(created)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = t
	return &p, nil
}

// GetByID returns the principal with the given id.
func (r *PrincipalRepo) GetByID(ctx context.Context, id string) (*domain.Principal, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT Id, PrincipalTypeId, DisplayName, OrganizationId, ExternalRef, CreatedAt
		 FROM %s WHERE Id = ?`, r.t.Principals), id)
	return scanPrincipalRow(row.Scan)
}

// GetByExternalRef returns the principal carrying the given external
// reference, for hosts that key principals on an IdP subject.
func (r *PrincipalRepo) GetByExternalRef(ctx context.Context, ref string) (*domain.Principal, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT Id, PrincipalTypeId, DisplayName, OrganizationId, ExternalRef, CreatedAt
		 FROM %s WHERE ExternalRef = ?`, r.t.Principals), ref)
	return scanPrincipalRow(row.Scan)
}

// GetServiceAccountByTokenHash looks up a service account by the SHA-256 hex
// of its API key.
func (r *PrincipalRepo) GetServiceAccountByTokenHash(ctx context.Context, hash string) (*domain.ServiceAccount, error) {
	var sa domain.ServiceAccount
	var tokenHash sql.NullString
	var created string
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT Id, PrincipalId, Description, TokenHash, CreatedAt
		 FROM %s WHERE TokenHash = ?`, r.t.ServiceAccounts), hash).
		Scan(&sa.ID, &sa.PrincipalID, &sa.Description, &tokenHash, &created)
	if err != nil {
		return nil, MapDBError(err)
	}
	sa.TokenHash = nullableStrFromDB(tokenHash)
	t, err := ParseTime(created)
	if err != nil {
		return nil, err
	}
	sa.CreatedAt = t
	return &sa, nil
}

// List returns principals ordered by creation, newest first.
func (r *PrincipalRepo) List(ctx context.Context, limit int) ([]domain.Principal, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT Id, PrincipalTypeId, DisplayName, OrganizationId, ExternalRef, CreatedAt
		 FROM %s ORDER BY CreatedAt DESC, Id LIMIT ?`, r.t.Principals), clampLimit(limit))
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

// Count returns the total number of principals.
func (r *PrincipalRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.t.Principals)).Scan(&n)
	return n, MapDBError(err)
}

// EnsureType upserts a principal type keyed by its natural id.
func (r *PrincipalRepo) EnsureType(ctx context.Context, t domain.PrincipalType) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (Id, Name) VALUES (?, ?)
		 ON CONFLICT (Id) DO NOTHING`, r.t.PrincipalTypes),
		t.ID, t.Name)
	return MapDBError(err)
}
