package domain

import (
	"fmt"
	"time"
)

// AccessQuery is the resolved input to the resource-access computation: the
// caller's principal set, the permission (already looked up so unknown keys
// fail before any tree walk), and the snapshot moment. Every lookup inside
// one query uses the same At, so a decision is consistent even when grants
// are written concurrently.
type AccessQuery struct {
	PrincipalIDs []string
	PermissionID string
	// ResourceTypeID restricts the final membership test when the permission
	// is scoped to one resource type. The cascade itself is type-agnostic.
	ResourceTypeID *string
	At             time.Time
}

// ResourceFilter is the query-composable form of the accessible-resource set.
// Expr contains exactly one %s placeholder for the column holding the
// business row's resource id; Args follow the expression's placeholders.
type ResourceFilter struct {
	Expr string
	Args []any
}

// Apply renders the filter against a concrete column reference. The caller
// appends Args to its statement arguments in the same order.
func (f ResourceFilter) Apply(column string) string {
	return fmt.Sprintf(f.Expr, column)
}

// PathGrant is one active grant found on the ancestor chain of a trace
// target, annotated with everything the trace needs in a single row.
type PathGrant struct {
	GrantID        string
	ResourceID     string
	Depth          int
	PrincipalID    string
	RoleID         string
	RoleKey        string
	RoleName       string
	RoleIsVirtual  bool
	EffectiveFrom  *time.Time
	EffectiveTo    *time.Time
	PermissionKeys []string
}

// TraceChainRow is one row of the trace query: a resource on the target's
// ancestor chain plus at most one eligible grant found there. Resources
// without eligible grants appear once with a nil Grant; resources with
// several appear once per grant.
type TraceChainRow struct {
	ResourceID     string
	ResourceName   string
	ResourceTypeID string
	TypeName       string
	IsActive       bool
	Depth          int
	Grant          *PathGrant
}
