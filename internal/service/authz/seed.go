package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sqlzibar/internal/config"
	"sqlzibar/internal/domain"
)

// Display names for the seeded rows. The ids live in the domain package
// because callers reference them.
const (
	systemAdminRoleName       = "System Administrator"
	systemAdminPermissionName = "Full administrative access"
	dashboardViewName         = "View the operations dashboard"
	systemAdminGrantID        = "grant-system-admin-root"
)

// Seeder installs the rows every deployment needs: the principal types, the
// root resource type and resource, the system_admin virtual role with its
// permissions, and the break-glass system-admin account granted at the
// root. Every write is an upsert keyed on a natural id, so running it on
// every startup, or from several replicas at once, is safe: existing rows
// are never moved or renamed.
type Seeder struct {
	opts       config.Options
	principals domain.PrincipalRepository
	resources  domain.ResourceRepository
	roles      domain.RoleRepository
	grants     domain.GrantRepository
	logger     *slog.Logger
}

// NewSeeder creates a Seeder.
func NewSeeder(
	opts config.Options,
	principals domain.PrincipalRepository,
	resources domain.ResourceRepository,
	roles domain.RoleRepository,
	grants domain.GrantRepository,
	logger *slog.Logger,
) *Seeder {
	return &Seeder{
		opts:       opts,
		principals: principals,
		resources:  resources,
		roles:      roles,
		grants:     grants,
		logger:     logger.With("component", "seed"),
	}
}

// Run applies the core seed.
func (s *Seeder) Run(ctx context.Context) error {
	now := time.Now().UTC()

	types := []string{
		domain.PrincipalTypeUser,
		domain.PrincipalTypeServiceAccount,
		domain.PrincipalTypeGroup,
		domain.PrincipalTypeAgent,
	}
	for _, id := range types {
		if err := s.principals.EnsureType(ctx, domain.PrincipalType{ID: id, Name: id}); err != nil {
			return fmt.Errorf("seed principal type %s: %w", id, err)
		}
	}

	if err := s.resources.EnsureType(ctx, &domain.ResourceType{ID: domain.ResourceTypeRoot, Name: "Root"}); err != nil {
		return fmt.Errorf("seed root resource type: %w", err)
	}
	if err := s.resources.Ensure(ctx, &domain.Resource{
		ID:             s.opts.RootResourceID,
		Name:           s.opts.RootResourceName,
		ResourceTypeID: domain.ResourceTypeRoot,
		IsActive:       true,
		CreatedAt:      now,
	}); err != nil {
		return fmt.Errorf("seed root resource %s: %w", s.opts.RootResourceID, err)
	}

	if err := s.roles.Ensure(ctx, &domain.Role{
		ID:        domain.RoleKeySystemAdmin,
		Key:       domain.RoleKeySystemAdmin,
		Name:      systemAdminRoleName,
		IsVirtual: true,
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("seed role %s: %w", domain.RoleKeySystemAdmin, err)
	}

	permissions := []domain.Permission{
		{ID: domain.PermissionSystemAdmin, Key: domain.PermissionSystemAdmin, Name: systemAdminPermissionName, CreatedAt: now},
		{ID: domain.PermissionDashboardView, Key: domain.PermissionDashboardView, Name: dashboardViewName, CreatedAt: now},
	}
	for i := range permissions {
		p := &permissions[i]
		if err := s.roles.EnsurePermission(ctx, p); err != nil {
			return fmt.Errorf("seed permission %s: %w", p.Key, err)
		}
		if err := s.roles.AttachPermission(ctx, domain.RoleKeySystemAdmin, p.ID); err != nil {
			return fmt.Errorf("attach %s to %s: %w", p.Key, domain.RoleKeySystemAdmin, err)
		}
	}

	if err := s.ensureSystemAdminAccount(ctx, now); err != nil {
		return err
	}

	if err := s.grants.Ensure(ctx, &domain.Grant{
		ID:          systemAdminGrantID,
		PrincipalID: domain.SystemAdminPrincipalID,
		ResourceID:  s.opts.RootResourceID,
		RoleID:      domain.RoleKeySystemAdmin,
		CreatedAt:   now,
	}); err != nil {
		return fmt.Errorf("seed system admin grant: %w", err)
	}

	s.logger.Info("core data seeded", "root_resource", s.opts.RootResourceID)
	return nil
}

// ensureSystemAdminAccount creates the seeded service account once. The
// account carries no token hash until an operator sets one; it exists so
// the root grant has a holder from day one.
func (s *Seeder) ensureSystemAdminAccount(ctx context.Context, now time.Time) error {
	_, err := s.principals.GetByID(ctx, domain.SystemAdminPrincipalID)
	if err == nil {
		return nil
	}
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		return fmt.Errorf("look up system admin principal: %w", err)
	}

	p := &domain.Principal{
		ID:              domain.SystemAdminPrincipalID,
		PrincipalTypeID: domain.PrincipalTypeServiceAccount,
		DisplayName:     "System Admin",
		CreatedAt:       now,
	}
	sa := &domain.ServiceAccount{
		ID:          domain.SystemAdminPrincipalID,
		PrincipalID: p.ID,
		Description: "Seeded break-glass administrator",
		CreatedAt:   now,
	}
	if err := s.principals.CreateServiceAccount(ctx, p, sa); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			// Another replica created it between our check and insert.
			return nil
		}
		return fmt.Errorf("seed system admin principal: %w", err)
	}
	return nil
}
