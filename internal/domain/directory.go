package domain

import (
	"context"
	"time"
)

// Chain is a demo business entity: a brand owning locations. Each chain is
// backed by a resource row, which is what grants and listings target.
type Chain struct {
	ID         string    `json:"id"`
	ResourceID string    `json:"resourceId"`
	Name       string    `json:"name"`
	City       string    `json:"city"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Location is a demo business entity: one site of a chain.
type Location struct {
	ID         string    `json:"id"`
	ResourceID string    `json:"resourceId"`
	ChainID    string    `json:"chainId"`
	Name       string    `json:"name"`
	City       string    `json:"city"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CreateChainRequest creates a chain under an existing resource.
type CreateChainRequest struct {
	ParentResourceID string `json:"parentResourceId"`
	Name             string `json:"name"`
	City             string `json:"city"`
}

// Validate checks the request.
func (r *CreateChainRequest) Validate() error {
	if r.ParentResourceID == "" {
		return ErrValidation("parent resource id is required")
	}
	if r.Name == "" {
		return ErrValidation("chain name is required")
	}
	return nil
}

// CreateLocationRequest creates a location under a chain.
type CreateLocationRequest struct {
	ChainID string `json:"chainId"`
	Name    string `json:"name"`
	City    string `json:"city"`
}

// Validate checks the request.
func (r *CreateLocationRequest) Validate() error {
	if r.ChainID == "" {
		return ErrValidation("chain id is required")
	}
	if r.Name == "" {
		return ErrValidation("location name is required")
	}
	return nil
}

// DirectoryRepository stores the demo business entities in the host-owned
// tables.
type DirectoryRepository interface {
	CreateChain(ctx context.Context, c *Chain) error
	GetChainByID(ctx context.Context, id string) (*Chain, error)
	GetChainByResourceID(ctx context.Context, resourceID string) (*Chain, error)
	CountChains(ctx context.Context) (int64, error)

	CreateLocation(ctx context.Context, l *Location) error
	GetLocationByID(ctx context.Context, id string) (*Location, error)
	ListLocationsByChain(ctx context.Context, chainID string, limit int) ([]Location, error)
	CountLocations(ctx context.Context) (int64, error)
}
