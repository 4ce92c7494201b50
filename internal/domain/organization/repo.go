package organization

import (
	"context"
)

// Repository defines the interface for organization storage.
type Repository interface {
	// FindByTaxID returns a NotFound AppError when nothing is stored.
	FindByTaxID(ctx context.Context, taxID string) (*Organization, error)

	// Create returns a Duplicate AppError when the tax id or id already exists.
	Create(ctx context.Context, org *Organization) error
}

// Searcher looks organizations up in the upstream registry.
type Searcher interface {
	// SearchByTaxID returns a NotFound AppError when the registry has no match.
	SearchByTaxID(ctx context.Context, taxID string) (*Profile, error)
}

// Cache is an optional process-local tax id lookup.
type Cache interface {
	Get(taxID string) (*Organization, bool)
	Set(org *Organization)
}
