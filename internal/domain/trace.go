package domain

import "time"

// AccessTrace is a structured explanation of a single access decision. It is
// produced by the same anchor query the decision runs, then annotated; trace
// generation never mutates state and is safe for nonexistent inputs.
type AccessTrace struct {
	Resource   TraceResource   `json:"resource"`
	Principal  TracePrincipal  `json:"principal"`
	Permission TracePermission `json:"permission"`

	AccessGranted bool      `json:"accessGranted"`
	CheckedAt     time.Time `json:"checkedAt"`

	// Path is the ancestor chain from the target resource up to the root,
	// depth 0 being the target itself.
	Path []PathNode `json:"path"`

	GrantsUsed        []GrantTrace     `json:"grantsUsed"`
	RolesUsed         []RoleTrace      `json:"rolesUsed"`
	PrincipalsChecked []PrincipalCheck `json:"principalsChecked"`

	DecisionSummary string `json:"decisionSummary"`

	// DenialReason and Suggestion are populated only when access is denied
	// for a well-formed request; error outcomes populate neither.
	DenialReason string `json:"denialReason,omitempty"`
	Suggestion   string `json:"suggestion,omitempty"`
}

// TraceResource identifies the trace target.
type TraceResource struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	TypeName string `json:"typeName"`
	Found    bool   `json:"found"`
}

// TracePrincipal identifies the caller being traced.
type TracePrincipal struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Found       bool   `json:"found"`
}

// TracePermission identifies the permission being traced.
type TracePermission struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Found bool   `json:"found"`
}

// PathNode is one resource on the ancestor chain with everything found there.
type PathNode struct {
	ResourceID   string `json:"resourceId"`
	ResourceName string `json:"resourceName"`
	TypeName     string `json:"typeName"`
	Depth        int    `json:"depth"` // 0 = target, increasing toward root
	IsActive     bool   `json:"isActive"`

	// Grants holds every active grant at this node held by any resolved
	// principal, whether or not its role carries the traced permission.
	Grants []GrantTrace `json:"grants"`

	// EffectivePermissions lists the distinct permission keys conferred at
	// this node by those grants.
	EffectivePermissions []string `json:"effectivePermissions"`
}

// GrantTrace annotates one grant encountered on the path.
type GrantTrace struct {
	GrantID              string     `json:"grantId"`
	ResourceID           string     `json:"resourceId"`
	PrincipalID          string     `json:"principalId"`
	PrincipalName        string     `json:"principalName"`
	ViaGroup             bool       `json:"viaGroup"`
	GroupName            string     `json:"groupName,omitempty"`
	RoleID               string     `json:"roleId"`
	RoleKey              string     `json:"roleKey"`
	EffectiveFrom        *time.Time `json:"effectiveFrom,omitempty"`
	EffectiveTo          *time.Time `json:"effectiveTo,omitempty"`
	ContributedToDecision bool      `json:"contributedToDecision"`
}

// RoleTrace annotates one role seen among the path's grants.
type RoleTrace struct {
	RoleID      string `json:"roleId"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	IsVirtual   bool   `json:"isVirtual"`
	Contributed bool   `json:"contributed"`
}

// PrincipalCheck records one identity in the resolved principal set.
type PrincipalCheck struct {
	PrincipalID string `json:"principalId"`
	DisplayName string `json:"displayName"`
	ViaGroup    bool   `json:"viaGroup"`
	GroupName   string `json:"groupName,omitempty"`
}
