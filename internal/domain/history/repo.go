package history

import (
	"context"
	"time"
)

// Repository defines the interface for history storage.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error

	// ListByTaxID returns the newest entries for taxID, newest first.
	ListByTaxID(ctx context.Context, taxID string, limit int) ([]*Entry, error)

	// DeleteBefore removes entries finished before cutoff and returns how many were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
