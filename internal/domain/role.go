package domain

import "time"

// Seeded role and permission keys. TEST-prefixed keys used in the test suite
// are fixtures, not seed data.
const (
	RoleKeySystemAdmin = "system_admin"

	PermissionSystemAdmin   = "SYSTEM_ADMIN"
	PermissionDashboardView = "DASHBOARD_VIEW"
)

// Role is a named bundle of permissions. Key is the stable external
// identifier. IsVirtual marks engine-maintained roles whose permission set
// is kept current automatically (system_admin); hosts administer only
// concrete roles.
type Role struct {
	ID        string
	Key       string
	Name      string
	IsVirtual bool
	CreatedAt time.Time
}

// Permission is a capability key gating an operation. A non-nil
// ResourceTypeID scopes the permission to resources of that type; the
// cascade itself stays type-agnostic and only the final membership test
// applies the filter.
type Permission struct {
	ID             string
	Key            string
	Name           string
	ResourceTypeID *string
	CreatedAt      time.Time
}

// RolePermission links a role to a permission it carries.
type RolePermission struct {
	RoleID       string
	PermissionID string
}
