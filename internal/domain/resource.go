package domain

import "time"

// ResourceTypeRoot is the seeded type of the hierarchy root. Hosts register
// their own types (agency, team, project, ...) through CreateResourceType.
const ResourceTypeRoot = "root"

// ResourceType classifies resources; permissions may be scoped to one type.
type ResourceType struct {
	ID   string
	Name string
}

// Resource is a node in the hierarchy to which grants attach. The graph is a
// forest with exactly one parentless node, the configured root. Deactivating
// a resource suppresses it in access queries without touching descendants.
type Resource struct {
	ID             string
	ParentID       *string
	Name           string
	ResourceTypeID string
	IsActive       bool
	CreatedAt      time.Time
}

// CreateResourceRequest carries the administrative input for a new resource.
// The root is seeder-only, so ParentID is mandatory here.
type CreateResourceRequest struct {
	ParentID       string
	Name           string
	ResourceTypeID string
}

// Validate checks the request for administrative-input errors.
func (r *CreateResourceRequest) Validate() error {
	if r.ParentID == "" {
		return ErrValidation("parent resource id is required")
	}
	if r.Name == "" {
		return ErrValidation("resource name is required")
	}
	if r.ResourceTypeID == "" {
		return ErrValidation("resource type id is required")
	}
	return nil
}
