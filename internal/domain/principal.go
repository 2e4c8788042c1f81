package domain

import "time"

// Principal type ids. These are a closed enumeration populated by the seeder;
// the id doubles as the name.
const (
	PrincipalTypeUser           = "user"
	PrincipalTypeServiceAccount = "service_account"
	PrincipalTypeGroup          = "group"
	PrincipalTypeAgent          = "agent"
)

// SystemAdminPrincipalID is the seeded break-glass service account. It holds
// the system_admin role at the root resource and is treated by the decision
// logic like any other principal.
const SystemAdminPrincipalID = "system-admin"

// PrincipalType is one of the seeded identity kinds.
type PrincipalType struct {
	ID   string
	Name string
}

// Principal is an identity that can hold grants: a user, service account,
// automated agent, or group. Exactly one extension row (User, Agent,
// ServiceAccount, or UserGroup) accompanies each principal.
type Principal struct {
	ID              string
	PrincipalTypeID string
	DisplayName     string
	OrganizationID  *string
	ExternalRef     *string
	CreatedAt       time.Time
}

// IsGroup reports whether the principal is a group.
func (p *Principal) IsGroup() bool {
	return p.PrincipalTypeID == PrincipalTypeGroup
}

// User is the extension row for a user principal.
type User struct {
	ID          string
	PrincipalID string
	Email       string
	CreatedAt   time.Time
}

// Agent is the extension row for an automated-agent principal.
type Agent struct {
	ID          string
	PrincipalID string
	Purpose     string
	CreatedAt   time.Time
}

// ServiceAccount is the extension row for a service-account principal.
// TokenHash stores an opaque SHA-256 hex of the account's key; the engine
// never sees or verifies the key itself.
type ServiceAccount struct {
	ID          string
	PrincipalID string
	Description string
	TokenHash   *string
	CreatedAt   time.Time
}

// UserGroup is the extension row for a group principal. Grants assigned to
// the group's PrincipalID confer access to its members.
type UserGroup struct {
	ID          string
	Name        string
	PrincipalID string
	CreatedAt   time.Time
}

// UserGroupMembership links a member principal to a group. Members must be
// of type user, service_account, or agent; never group.
type UserGroupMembership struct {
	PrincipalID string
	UserGroupID string
	CreatedAt   time.Time
}

// CreatePrincipalRequest carries the administrative input for a new principal.
type CreatePrincipalRequest struct {
	PrincipalTypeID string
	DisplayName     string
	OrganizationID  *string
	ExternalRef     *string

	// Extension fields; which ones apply depends on PrincipalTypeID.
	Email       string // user
	Purpose     string // agent
	Description string // service_account
	TokenHash   *string
}

// Validate checks the request for administrative-input errors.
func (r *CreatePrincipalRequest) Validate() error {
	switch r.PrincipalTypeID {
	case PrincipalTypeUser, PrincipalTypeServiceAccount, PrincipalTypeAgent:
	case PrincipalTypeGroup:
		return ErrValidation("groups are created via CreateGroup, not CreatePrincipal")
	default:
		return ErrValidation("unknown principal type %q", r.PrincipalTypeID)
	}
	if r.DisplayName == "" {
		return ErrValidation("display name is required")
	}
	return nil
}
