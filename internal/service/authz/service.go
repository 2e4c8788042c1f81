package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sqlzibar/internal/domain"
)

// Service answers access questions. Every operation captures one timestamp
// at entry and evaluates against that instant, so a decision reflects a
// single snapshot of the grant graph.
type Service struct {
	resolver   *Resolver
	principals domain.PrincipalRepository
	roles      domain.RoleRepository
	access     domain.AccessRepository
	logger     *slog.Logger
}

// NewService creates the decision service.
func NewService(
	resolver *Resolver,
	principals domain.PrincipalRepository,
	roles domain.RoleRepository,
	access domain.AccessRepository,
	logger *slog.Logger,
) *Service {
	return &Service{
		resolver:   resolver,
		principals: principals,
		roles:      roles,
		access:     access,
		logger:     logger.With("component", "authz"),
	}
}

// accessQuery resolves the permission key and principal set into the query
// every decision form evaluates. Unknown keys and principals are caller
// errors; they never become silent denials.
func (s *Service) accessQuery(ctx context.Context, principalID, permissionKey string) (domain.AccessQuery, error) {
	at := time.Now().UTC()

	perm, err := s.roles.GetPermissionByKey(ctx, permissionKey)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return domain.AccessQuery{}, domain.ErrUnknownPermission("permission %q is not registered", permissionKey)
		}
		return domain.AccessQuery{}, fmt.Errorf("get permission %s: %w", permissionKey, err)
	}

	principalIDs, err := s.resolver.ResolvePrincipalIDs(ctx, principalID)
	if err != nil {
		return domain.AccessQuery{}, err
	}
	if len(principalIDs) == 0 {
		return domain.AccessQuery{}, domain.ErrUnknownPrincipal("unknown principal %q", principalID)
	}

	return domain.AccessQuery{
		PrincipalIDs:   principalIDs,
		PermissionID:   perm.ID,
		ResourceTypeID: perm.ResourceTypeID,
		At:             at,
	}, nil
}

// CheckAccess reports whether the principal holds the permission on the
// resource, directly or through an ancestor. Unknown resource ids are an
// ordinary denial, not an error.
func (s *Service) CheckAccess(ctx context.Context, principalID, permissionKey, resourceID string) (bool, error) {
	q, err := s.accessQuery(ctx, principalID, permissionKey)
	if err != nil {
		return false, err
	}

	allowed, err := s.access.IsResourceAccessible(ctx, q, resourceID)
	if err != nil {
		return false, fmt.Errorf("check access for %s on %s: %w", principalID, resourceID, err)
	}

	s.logger.Debug("access checked",
		"principal", principalID,
		"permission", permissionKey,
		"resource", resourceID,
		"allowed", allowed,
	)
	return allowed, nil
}

// HasCapability reports whether the principal holds the permission on at
// least one resource, without naming any. Useful for showing or hiding
// whole UI areas.
func (s *Service) HasCapability(ctx context.Context, principalID, permissionKey string) (bool, error) {
	q, err := s.accessQuery(ctx, principalID, permissionKey)
	if err != nil {
		return false, err
	}

	ok, err := s.access.HasAnyAccessible(ctx, q)
	if err != nil {
		return false, fmt.Errorf("check capability %s for %s: %w", permissionKey, principalID, err)
	}
	return ok, nil
}

// ResolveAccessibleResources materializes the ids of every resource the
// principal can reach with the permission. Prefer AccessibleResourcesQuery
// when the result feeds another query.
func (s *Service) ResolveAccessibleResources(ctx context.Context, principalID, permissionKey string) ([]string, error) {
	q, err := s.accessQuery(ctx, principalID, permissionKey)
	if err != nil {
		return nil, err
	}

	ids, err := s.access.AccessibleResources(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("resolve accessible resources for %s: %w", principalID, err)
	}
	return ids, nil
}

// AccessibleResourcesQuery returns the accessible-resource set as a filter
// that composes into a larger statement, so list endpoints can restrict
// and paginate in one round trip instead of materializing ids first.
func (s *Service) AccessibleResourcesQuery(ctx context.Context, principalID, permissionKey string) (domain.ResourceFilter, error) {
	q, err := s.accessQuery(ctx, principalID, permissionKey)
	if err != nil {
		return domain.ResourceFilter{}, err
	}
	return s.access.ComposeFilter(q), nil
}
