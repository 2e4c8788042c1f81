// Package directory is the reference business domain built on the engine:
// chains and their locations, each backed by a resource so grants and
// permission-scoped listings apply to them.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sqlzibar/internal/domain"
	"sqlzibar/internal/service/authz"
	"sqlzibar/internal/service/listing"
)

// Resource types and permission keys the directory registers.
const (
	ResourceTypeChain    = "chain"
	ResourceTypeLocation = "location"

	PermissionChainView    = "CHAIN_VIEW"
	PermissionChainEdit    = "CHAIN_EDIT"
	PermissionLocationView = "LOCATION_VIEW"
)

// Service owns the demo business entities. Writes go through the
// administrative service so every chain and location gets a backing
// resource; reads go through the listing executor so callers only see what
// their grants reach.
type Service struct {
	repo   domain.DirectoryRepository
	admin  *authz.AdminService
	exec   *listing.Executor
	logger *slog.Logger
}

// NewService creates the directory service.
func NewService(repo domain.DirectoryRepository, admin *authz.AdminService, exec *listing.Executor, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		admin:  admin,
		exec:   exec,
		logger: logger.With("component", "directory"),
	}
}

// Register declares the directory's resource types and permissions. It is
// safe to run on every startup; existing registrations are kept.
func (s *Service) Register(ctx context.Context) error {
	types := []struct{ id, name string }{
		{ResourceTypeChain, "Chain"},
		{ResourceTypeLocation, "Location"},
	}
	for _, t := range types {
		if _, err := s.admin.CreateResourceType(ctx, t.id, t.name); ignoreConflict(err) != nil {
			return fmt.Errorf("register resource type %s: %w", t.id, err)
		}
	}

	chainType := ResourceTypeChain
	locationType := ResourceTypeLocation
	permissions := []struct {
		key, name string
		scope     *string
	}{
		{PermissionChainView, "View chains", &chainType},
		{PermissionChainEdit, "Edit chains", &chainType},
		{PermissionLocationView, "View locations", &locationType},
	}
	for _, p := range permissions {
		if _, err := s.admin.CreatePermission(ctx, p.key, p.name, p.scope); ignoreConflict(err) != nil {
			return fmt.Errorf("register permission %s: %w", p.key, err)
		}
	}
	return nil
}

// CreateChain creates a chain and its backing resource under the given
// parent.
func (s *Service) CreateChain(ctx context.Context, req *domain.CreateChainRequest) (*domain.Chain, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resource, err := s.admin.CreateResource(ctx, &domain.CreateResourceRequest{
		ParentID:       req.ParentResourceID,
		Name:           req.Name,
		ResourceTypeID: ResourceTypeChain,
	})
	if err != nil {
		return nil, err
	}

	chain := &domain.Chain{
		ID:         domain.NewID(),
		ResourceID: resource.ID,
		Name:       req.Name,
		City:       req.City,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateChain(ctx, chain); err != nil {
		return nil, fmt.Errorf("create chain %s: %w", req.Name, err)
	}

	s.logger.Info("chain created", "chain", chain.ID, "resource", chain.ResourceID)
	return chain, nil
}

// GetChain returns a chain by id.
func (s *Service) GetChain(ctx context.Context, id string) (*domain.Chain, error) {
	return s.repo.GetChainByID(ctx, id)
}

// CreateLocation creates a location and its backing resource under the
// chain's resource, so grants on the chain cascade to it.
func (s *Service) CreateLocation(ctx context.Context, req *domain.CreateLocationRequest) (*domain.Location, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	chain, err := s.repo.GetChainByID(ctx, req.ChainID)
	if err != nil {
		return nil, fmt.Errorf("get chain %s: %w", req.ChainID, err)
	}

	resource, err := s.admin.CreateResource(ctx, &domain.CreateResourceRequest{
		ParentID:       chain.ResourceID,
		Name:           req.Name,
		ResourceTypeID: ResourceTypeLocation,
	})
	if err != nil {
		return nil, err
	}

	location := &domain.Location{
		ID:         domain.NewID(),
		ResourceID: resource.ID,
		ChainID:    chain.ID,
		Name:       req.Name,
		City:       req.City,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateLocation(ctx, location); err != nil {
		return nil, fmt.Errorf("create location %s: %w", req.Name, err)
	}

	s.logger.Info("location created", "location", location.ID, "chain", chain.ID)
	return location, nil
}

// Locations returns a chain's locations without permission scoping; use
// ListLocations for caller-facing reads.
func (s *Service) Locations(ctx context.Context, chainID string, limit int) ([]domain.Location, error) {
	return s.repo.ListLocationsByChain(ctx, chainID, limit)
}

// ChainQuery parameterizes a permission-scoped chain listing.
type ChainQuery struct {
	PrincipalID    string
	Search         string
	City           string
	SortKey        string
	SortDescending bool
	PageSize       int
	Cursor         string
}

// ListChains returns the chains the principal may see, one page at a time.
func (s *Service) ListChains(ctx context.Context, q ChainQuery) (*listing.Page[domain.Chain], error) {
	spec := listing.Specification{
		PrincipalID:    q.PrincipalID,
		PermissionKey:  PermissionChainView,
		Search:         q.Search,
		SortKey:        q.SortKey,
		SortDescending: q.SortDescending,
		PageSize:       q.PageSize,
		Cursor:         q.Cursor,
	}
	if q.City != "" {
		spec.Filter = listing.Predicate{Expr: "City = ?", Args: []any{q.City}}
	}
	return listing.Execute(ctx, s.exec, chainBinding(), spec)
}

// LocationQuery parameterizes a permission-scoped location listing.
type LocationQuery struct {
	PrincipalID    string
	ChainID        string
	Search         string
	SortKey        string
	SortDescending bool
	PageSize       int
	Cursor         string
}

// ListLocations returns the locations the principal may see.
func (s *Service) ListLocations(ctx context.Context, q LocationQuery) (*listing.Page[domain.Location], error) {
	spec := listing.Specification{
		PrincipalID:    q.PrincipalID,
		PermissionKey:  PermissionLocationView,
		Search:         q.Search,
		SortKey:        q.SortKey,
		SortDescending: q.SortDescending,
		PageSize:       q.PageSize,
		Cursor:         q.Cursor,
	}
	if q.ChainID != "" {
		spec.Filter = listing.Predicate{Expr: "ChainId = ?", Args: []any{q.ChainID}}
	}
	return listing.Execute(ctx, s.exec, locationBinding(), spec)
}

// Counts reports entity totals for the dashboard.
func (s *Service) Counts(ctx context.Context) (chains, locations int64, err error) {
	chains, err = s.repo.CountChains(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("count chains: %w", err)
	}
	locations, err = s.repo.CountLocations(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("count locations: %w", err)
	}
	return chains, locations, nil
}

func ignoreConflict(err error) error {
	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		return nil
	}
	return err
}
