package report

import (
	"context"
	"time"
)

// Repository defines the interface for report storage.
type Repository interface {
	// LatestYearReports returns every report of the organization's most recent
	// fiscal year ordered by submission date. Empty when nothing is stored.
	LatestYearReports(ctx context.Context, orgID int64) ([]*Report, error)

	// ReportsForYear returns the reports of one year ordered by submission date.
	ReportsForYear(ctx context.Context, orgID int64, year int) ([]*Report, error)

	// MissingYears returns the requested years that have no reports, ascending and unique.
	MissingYears(ctx context.Context, orgID int64, years []int) ([]int, error)

	// LastUpdated returns the newest updated_at across all of the organization's reports.
	LastUpdated(ctx context.Context, orgID int64) (time.Time, bool, error)

	// Reconcile upserts the upstream years by natural key. Nothing is deleted.
	Reconcile(ctx context.Context, orgID int64, years []YearCorrections, now time.Time) (ReconcileResult, error)
}

// Fetcher lists an organization's reports in the upstream registry.
type Fetcher interface {
	FetchReports(ctx context.Context, orgID int64) ([]YearCorrections, error)
}
