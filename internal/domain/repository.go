package domain

import (
	"context"
	"time"
)

// PrincipalRepository persists principals and their extension rows. Create
// methods insert the principal and its extension atomically.
type PrincipalRepository interface {
	CreateUser(ctx context.Context, p *Principal, u *User) error
	CreateAgent(ctx context.Context, p *Principal, a *Agent) error
	CreateServiceAccount(ctx context.Context, p *Principal, sa *ServiceAccount) error
	GetByID(ctx context.Context, id string) (*Principal, error)
	GetByExternalRef(ctx context.Context, ref string) (*Principal, error)
	GetServiceAccountByTokenHash(ctx context.Context, hash string) (*ServiceAccount, error)
	List(ctx context.Context, limit int) ([]Principal, error)
	Count(ctx context.Context) (int64, error)
	EnsureType(ctx context.Context, t PrincipalType) error
}

// GroupRepository persists user groups and memberships. A group is itself a
// principal; Create inserts both rows atomically.
type GroupRepository interface {
	Create(ctx context.Context, p *Principal, g *UserGroup) error
	GetByID(ctx context.Context, id string) (*UserGroup, error)
	GetByName(ctx context.Context, name string) (*UserGroup, error)
	List(ctx context.Context, limit int) ([]UserGroup, error)
	AddMember(ctx context.Context, m *UserGroupMembership) error
	RemoveMember(ctx context.Context, principalID, groupID string) error
	GroupsForPrincipal(ctx context.Context, principalID string) ([]UserGroup, error)
	ListMembers(ctx context.Context, groupID string, limit int) ([]Principal, error)
}

// ResourceRepository persists the resource hierarchy.
type ResourceRepository interface {
	Create(ctx context.Context, r *Resource) error
	Ensure(ctx context.Context, r *Resource) error
	GetByID(ctx context.Context, id string) (*Resource, error)
	SetActive(ctx context.Context, id string, active bool) error
	Children(ctx context.Context, parentID string) ([]Resource, error)
	// AncestorChain returns the target resource first, then each parent up
	// to the root. Empty when the id is unknown.
	AncestorChain(ctx context.Context, id string) ([]Resource, error)
	Count(ctx context.Context) (int64, error)
	CreateType(ctx context.Context, t *ResourceType) error
	EnsureType(ctx context.Context, t *ResourceType) error
	GetTypeByID(ctx context.Context, id string) (*ResourceType, error)
	ListTypes(ctx context.Context) ([]ResourceType, error)
}

// RoleRepository persists roles, permissions, and their bindings.
type RoleRepository interface {
	Create(ctx context.Context, r *Role) error
	Ensure(ctx context.Context, r *Role) error
	GetByKey(ctx context.Context, key string) (*Role, error)
	GetByID(ctx context.Context, id string) (*Role, error)
	List(ctx context.Context, limit int) ([]Role, error)
	CreatePermission(ctx context.Context, p *Permission) error
	EnsurePermission(ctx context.Context, p *Permission) error
	GetPermissionByKey(ctx context.Context, key string) (*Permission, error)
	ListPermissions(ctx context.Context, limit int) ([]Permission, error)
	// AttachPermission is idempotent; re-attaching an existing pair is a no-op.
	AttachPermission(ctx context.Context, roleID, permissionID string) error
	// AttachPermissionToVirtualRoles binds a permission to every virtual
	// role, so engine-maintained roles stay complete as permissions are
	// added.
	AttachPermissionToVirtualRoles(ctx context.Context, permissionID string) error
}

// GrantRepository persists grants. Grants are never deleted; EndGrant closes
// the validity window instead.
type GrantRepository interface {
	Create(ctx context.Context, g *Grant) error
	Ensure(ctx context.Context, g *Grant) error
	GetByID(ctx context.Context, id string) (*Grant, error)
	End(ctx context.Context, id string, at time.Time) error
	ListForPrincipal(ctx context.Context, principalID string, limit int) ([]Grant, error)
	ListRecent(ctx context.Context, limit int) ([]Grant, error)
	ListExpiringBetween(ctx context.Context, from, to time.Time) ([]Grant, error)
	CountActive(ctx context.Context, at time.Time) (int64, error)
}

// AccessRepository computes the set of resources reachable through cascading
// grants. All four forms evaluate the same relation: anchors (active grants
// whose role carries the permission, held by a resolved principal) extended
// to every descendant.
type AccessRepository interface {
	// AccessibleResources materializes the reachable set.
	AccessibleResources(ctx context.Context, q AccessQuery) ([]string, error)
	// IsResourceAccessible refines the set to a single target.
	IsResourceAccessible(ctx context.Context, q AccessQuery, resourceID string) (bool, error)
	// HasAnyAccessible reports whether the set is non-empty.
	HasAnyAccessible(ctx context.Context, q AccessQuery) (bool, error)
	// ComposeFilter returns the relation as a predicate for embedding in
	// business queries.
	ComposeFilter(q AccessQuery) ResourceFilter
	// TraceChain returns the target's ancestor chain joined with every
	// grant active at the snapshot and held by one of the principals. The
	// whole chain comes back in a single statement so a grant committed
	// mid-trace cannot partially appear. Permission filtering happens in
	// the caller, which needs the ineligible grants for the explanation.
	TraceChain(ctx context.Context, resourceID string, principalIDs []string, at time.Time) ([]TraceChainRow, error)
}
