package domain

import "time"

// Grant binds (principal, resource, role) with an optional validity window.
// Grants are the only source of authorization and are purely additive; there
// are no deny rules. A grant cascades to every descendant of its resource.
type Grant struct {
	ID            string
	PrincipalID   string
	ResourceID    string
	RoleID        string
	EffectiveFrom *time.Time
	EffectiveTo   *time.Time
	CreatedAt     time.Time
}

// ActiveAt reports whether the grant is active at time t: EffectiveFrom is
// nil or <= t, and EffectiveTo is nil or > t.
func (g *Grant) ActiveAt(t time.Time) bool {
	if g.EffectiveFrom != nil && g.EffectiveFrom.After(t) {
		return false
	}
	if g.EffectiveTo != nil && !g.EffectiveTo.After(t) {
		return false
	}
	return true
}

// CreateGrantRequest carries the administrative input for a new grant.
type CreateGrantRequest struct {
	PrincipalID   string
	ResourceID    string
	RoleKey       string
	EffectiveFrom *time.Time
	EffectiveTo   *time.Time
}

// Validate checks the request for administrative-input errors.
func (r *CreateGrantRequest) Validate() error {
	if r.PrincipalID == "" {
		return ErrValidation("principal id is required")
	}
	if r.ResourceID == "" {
		return ErrValidation("resource id is required")
	}
	if r.RoleKey == "" {
		return ErrValidation("role key is required")
	}
	if r.EffectiveFrom != nil && r.EffectiveTo != nil && !r.EffectiveTo.After(*r.EffectiveFrom) {
		return ErrValidation("effectiveTo must be after effectiveFrom")
	}
	return nil
}
