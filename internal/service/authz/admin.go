package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sqlzibar/internal/domain"
)

// AdminService maintains the grant graph: principals, groups, resources,
// roles, permissions, and grants. Decisions never pass through here; this
// is the write side.
type AdminService struct {
	principals domain.PrincipalRepository
	groups     domain.GroupRepository
	resources  domain.ResourceRepository
	roles      domain.RoleRepository
	grants     domain.GrantRepository
	logger     *slog.Logger
}

// NewAdminService creates the administrative service.
func NewAdminService(
	principals domain.PrincipalRepository,
	groups domain.GroupRepository,
	resources domain.ResourceRepository,
	roles domain.RoleRepository,
	grants domain.GrantRepository,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		principals: principals,
		groups:     groups,
		resources:  resources,
		roles:      roles,
		grants:     grants,
		logger:     logger.With("component", "authz-admin"),
	}
}

// CreatePrincipal creates a principal and its type-specific extension row in
// one transaction. Groups are rejected here; CreateGroup owns those.
func (s *AdminService) CreatePrincipal(ctx context.Context, req *domain.CreatePrincipalRequest) (*domain.Principal, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &domain.Principal{
		ID:              domain.NewID(),
		PrincipalTypeID: req.PrincipalTypeID,
		DisplayName:     req.DisplayName,
		OrganizationID:  req.OrganizationID,
		ExternalRef:     req.ExternalRef,
		CreatedAt:       now,
	}

	var err error
	switch req.PrincipalTypeID {
	case domain.PrincipalTypeUser:
		err = s.principals.CreateUser(ctx, p, &domain.User{
			ID:          domain.NewID(),
			PrincipalID: p.ID,
			Email:       req.Email,
			CreatedAt:   now,
		})
	case domain.PrincipalTypeAgent:
		err = s.principals.CreateAgent(ctx, p, &domain.Agent{
			ID:          domain.NewID(),
			PrincipalID: p.ID,
			Purpose:     req.Purpose,
			CreatedAt:   now,
		})
	case domain.PrincipalTypeServiceAccount:
		err = s.principals.CreateServiceAccount(ctx, p, &domain.ServiceAccount{
			ID:          domain.NewID(),
			PrincipalID: p.ID,
			Description: req.Description,
			TokenHash:   req.TokenHash,
			CreatedAt:   now,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("create %s principal: %w", req.PrincipalTypeID, err)
	}

	s.logger.Info("principal created", "principal", p.ID, "type", p.PrincipalTypeID)
	return p, nil
}

// GetPrincipal returns a principal by id.
func (s *AdminService) GetPrincipal(ctx context.Context, id string) (*domain.Principal, error) {
	return s.principals.GetByID(ctx, id)
}

// ListPrincipals returns recently created principals.
func (s *AdminService) ListPrincipals(ctx context.Context, limit int) ([]domain.Principal, error) {
	return s.principals.List(ctx, limit)
}

// CreateGroup creates a group and its backing principal in one transaction,
// so a group can never exist without an id that grants can target.
func (s *AdminService) CreateGroup(ctx context.Context, name string, organizationID *string) (*domain.UserGroup, error) {
	if name == "" {
		return nil, domain.ErrValidation("group name is required")
	}

	now := time.Now().UTC()
	p := &domain.Principal{
		ID:              domain.NewID(),
		PrincipalTypeID: domain.PrincipalTypeGroup,
		DisplayName:     name,
		OrganizationID:  organizationID,
		CreatedAt:       now,
	}
	g := &domain.UserGroup{
		ID:          domain.NewID(),
		Name:        name,
		PrincipalID: p.ID,
		CreatedAt:   now,
	}
	if err := s.groups.Create(ctx, p, g); err != nil {
		return nil, fmt.Errorf("create group %s: %w", name, err)
	}

	s.logger.Info("group created", "group", g.ID, "name", name)
	return g, nil
}

// GetGroup returns a group by id.
func (s *AdminService) GetGroup(ctx context.Context, id string) (*domain.UserGroup, error) {
	return s.groups.GetByID(ctx, id)
}

// ListGroups returns groups ordered by name.
func (s *AdminService) ListGroups(ctx context.Context, limit int) ([]domain.UserGroup, error) {
	return s.groups.List(ctx, limit)
}

// GroupMembers returns the member principals of a group.
func (s *AdminService) GroupMembers(ctx context.Context, groupID string, limit int) ([]domain.Principal, error) {
	if _, err := s.groups.GetByID(ctx, groupID); err != nil {
		return nil, err
	}
	return s.groups.ListMembers(ctx, groupID, limit)
}

// CreateResourceType registers a resource type.
func (s *AdminService) CreateResourceType(ctx context.Context, id, name string) (*domain.ResourceType, error) {
	if id == "" || name == "" {
		return nil, domain.ErrValidation("resource type id and name are required")
	}
	t := &domain.ResourceType{ID: id, Name: name}
	if err := s.resources.CreateType(ctx, t); err != nil {
		return nil, fmt.Errorf("create resource type %s: %w", id, err)
	}
	return t, nil
}

// ListResourceTypes returns all registered resource types.
func (s *AdminService) ListResourceTypes(ctx context.Context) ([]domain.ResourceType, error) {
	return s.resources.ListTypes(ctx)
}

// CreateResource creates a resource under an existing parent. Only the
// seeder may create parentless resources, which keeps the hierarchy a
// single tree.
func (s *AdminService) CreateResource(ctx context.Context, req *domain.CreateResourceRequest) (*domain.Resource, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.resources.GetByID(ctx, req.ParentID); err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil, domain.ErrValidation("parent resource %q does not exist", req.ParentID)
		}
		return nil, fmt.Errorf("get parent resource %s: %w", req.ParentID, err)
	}
	if _, err := s.resources.GetTypeByID(ctx, req.ResourceTypeID); err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil, domain.ErrValidation("resource type %q is not registered", req.ResourceTypeID)
		}
		return nil, fmt.Errorf("get resource type %s: %w", req.ResourceTypeID, err)
	}

	parentID := req.ParentID
	r := &domain.Resource{
		ID:             domain.NewID(),
		ParentID:       &parentID,
		Name:           req.Name,
		ResourceTypeID: req.ResourceTypeID,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.resources.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create resource %s: %w", req.Name, err)
	}

	s.logger.Info("resource created", "resource", r.ID, "type", r.ResourceTypeID, "parent", req.ParentID)
	return r, nil
}

// GetResource returns a resource by id.
func (s *AdminService) GetResource(ctx context.Context, id string) (*domain.Resource, error) {
	return s.resources.GetByID(ctx, id)
}

// ResourceChildren returns the direct children of a resource.
func (s *AdminService) ResourceChildren(ctx context.Context, parentID string) ([]domain.Resource, error) {
	return s.resources.Children(ctx, parentID)
}

// ResourceAncestors returns the resource and its ancestors up to the root.
func (s *AdminService) ResourceAncestors(ctx context.Context, id string) ([]domain.Resource, error) {
	return s.resources.AncestorChain(ctx, id)
}

// SetResourceActive toggles a resource's active flag. Inactive resources
// still cascade access to their descendants; the flag is advisory for
// callers that list them.
func (s *AdminService) SetResourceActive(ctx context.Context, id string, active bool) error {
	if err := s.resources.SetActive(ctx, id, active); err != nil {
		return fmt.Errorf("set resource %s active=%t: %w", id, active, err)
	}
	s.logger.Info("resource active flag set", "resource", id, "active", active)
	return nil
}

// CreateRole registers a concrete role. Virtual roles are seeded, never
// created here.
func (s *AdminService) CreateRole(ctx context.Context, key, name string) (*domain.Role, error) {
	if key == "" || name == "" {
		return nil, domain.ErrValidation("role key and name are required")
	}
	r := &domain.Role{
		ID:        domain.NewID(),
		Key:       key,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.roles.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create role %s: %w", key, err)
	}
	return r, nil
}

// ListRoles returns roles ordered by key.
func (s *AdminService) ListRoles(ctx context.Context, limit int) ([]domain.Role, error) {
	return s.roles.List(ctx, limit)
}

// CreatePermission registers a permission key and attaches it to every
// virtual role, so system_admin keeps covering the full permission set as
// hosts add their own keys.
func (s *AdminService) CreatePermission(ctx context.Context, key, name string, resourceTypeID *string) (*domain.Permission, error) {
	if key == "" || name == "" {
		return nil, domain.ErrValidation("permission key and name are required")
	}
	if resourceTypeID != nil {
		if _, err := s.resources.GetTypeByID(ctx, *resourceTypeID); err != nil {
			var nf *domain.NotFoundError
			if errors.As(err, &nf) {
				return nil, domain.ErrValidation("resource type %q is not registered", *resourceTypeID)
			}
			return nil, fmt.Errorf("get resource type %s: %w", *resourceTypeID, err)
		}
	}

	p := &domain.Permission{
		ID:             domain.NewID(),
		Key:            key,
		Name:           name,
		ResourceTypeID: resourceTypeID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.roles.CreatePermission(ctx, p); err != nil {
		return nil, fmt.Errorf("create permission %s: %w", key, err)
	}
	if err := s.roles.AttachPermissionToVirtualRoles(ctx, p.ID); err != nil {
		return nil, fmt.Errorf("attach %s to virtual roles: %w", key, err)
	}
	return p, nil
}

// ListPermissions returns permissions ordered by key.
func (s *AdminService) ListPermissions(ctx context.Context, limit int) ([]domain.Permission, error) {
	return s.roles.ListPermissions(ctx, limit)
}

// AttachPermissionToRole links an existing permission to an existing role.
// Attaching twice is a no-op.
func (s *AdminService) AttachPermissionToRole(ctx context.Context, roleKey, permissionKey string) error {
	role, err := s.roles.GetByKey(ctx, roleKey)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return domain.ErrUnknownRole("unknown role %q", roleKey)
		}
		return fmt.Errorf("get role %s: %w", roleKey, err)
	}
	perm, err := s.roles.GetPermissionByKey(ctx, permissionKey)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return domain.ErrUnknownPermission("permission %q is not registered", permissionKey)
		}
		return fmt.Errorf("get permission %s: %w", permissionKey, err)
	}
	if err := s.roles.AttachPermission(ctx, role.ID, perm.ID); err != nil {
		return fmt.Errorf("attach %s to %s: %w", permissionKey, roleKey, err)
	}
	return nil
}

// CreateGrant gives a principal a role on a resource, optionally bounded by
// an effective window. The grant cascades to the resource's descendants at
// decision time.
func (s *AdminService) CreateGrant(ctx context.Context, req *domain.CreateGrantRequest) (*domain.Grant, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	role, err := s.roles.GetByKey(ctx, req.RoleKey)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil, domain.ErrUnknownRole("unknown role %q", req.RoleKey)
		}
		return nil, fmt.Errorf("get role %s: %w", req.RoleKey, err)
	}
	if _, err := s.principals.GetByID(ctx, req.PrincipalID); err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil, domain.ErrUnknownPrincipal("unknown principal %q", req.PrincipalID)
		}
		return nil, fmt.Errorf("get principal %s: %w", req.PrincipalID, err)
	}
	if _, err := s.resources.GetByID(ctx, req.ResourceID); err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil, domain.ErrValidation("resource %q does not exist", req.ResourceID)
		}
		return nil, fmt.Errorf("get resource %s: %w", req.ResourceID, err)
	}

	g := &domain.Grant{
		ID:            domain.NewID(),
		PrincipalID:   req.PrincipalID,
		ResourceID:    req.ResourceID,
		RoleID:        role.ID,
		EffectiveFrom: req.EffectiveFrom,
		EffectiveTo:   req.EffectiveTo,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.grants.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("create grant: %w", err)
	}

	s.logger.Info("grant created",
		"grant", g.ID,
		"principal", g.PrincipalID,
		"role", req.RoleKey,
		"resource", g.ResourceID,
	)
	return g, nil
}

// EndGrant closes a grant's effective window now. Ending an unknown grant
// fails; ending an already-ended grant is a no-op.
func (s *AdminService) EndGrant(ctx context.Context, grantID string) error {
	if err := s.grants.End(ctx, grantID, time.Now().UTC()); err != nil {
		return fmt.Errorf("end grant %s: %w", grantID, err)
	}
	s.logger.Info("grant ended", "grant", grantID)
	return nil
}

// GrantsForPrincipal returns a principal's grants, newest first.
func (s *AdminService) GrantsForPrincipal(ctx context.Context, principalID string, limit int) ([]domain.Grant, error) {
	return s.grants.ListForPrincipal(ctx, principalID, limit)
}

// RecentGrants returns the newest grants across all principals.
func (s *AdminService) RecentGrants(ctx context.Context, limit int) ([]domain.Grant, error) {
	return s.grants.ListRecent(ctx, limit)
}

// Stats summarizes the graph for the dashboard.
type Stats struct {
	Principals   int64
	Resources    int64
	ActiveGrants int64
}

// GraphStats counts principals, resources, and currently active grants.
func (s *AdminService) GraphStats(ctx context.Context) (*Stats, error) {
	principals, err := s.principals.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count principals: %w", err)
	}
	resources, err := s.resources.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count resources: %w", err)
	}
	grants, err := s.grants.CountActive(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("count active grants: %w", err)
	}
	return &Stats{Principals: principals, Resources: resources, ActiveGrants: grants}, nil
}
