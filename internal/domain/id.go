package domain

import "github.com/google/uuid"

// NewID generates a UUIDv7 string for application-owned entities.
// Seeded enumerations (principal types, resource types, the root resource)
// use fixed natural ids instead.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
