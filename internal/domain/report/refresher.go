package report

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"bfoproxy/internal/core/tx"
	"bfoproxy/pkg/logger"
)

// Refresher reads reports through the store, refreshing from upstream when
// the policy says the stored copy is missing or stale.
type Refresher struct {
	repo    Repository
	fetcher Fetcher
	txm     tx.Manager
	policy  Policy
	now     func() time.Time
	group   singleflight.Group
}

// NewRefresher creates a refresher.
func NewRefresher(repo Repository, fetcher Fetcher, txm tx.Manager, policy Policy) *Refresher {
	if txm == nil {
		txm = tx.Passthrough
	}
	if policy.Scope == "" {
		policy.Scope = ScopeYearGap
	}
	return &Refresher{
		repo:    repo,
		fetcher: fetcher,
		txm:     txm,
		policy:  policy,
		now:     time.Now,
	}
}

// WithClock replaces the time source.
func (r *Refresher) WithClock(now func() time.Time) *Refresher {
	r.now = now
	return r
}

// Refresh returns stored reports for the requested years, fetching upstream first when needed.
//
// With no years it returns the latest stored year (at most one entry, none when
// nothing exists). Otherwise it returns one entry per requested year in the
// caller's order, duplicates included.
func (r *Refresher) Refresh(ctx context.Context, orgID int64, years []int) ([]YearReports, error) {
	now := r.now()
	if len(years) == 0 {
		return r.latest(ctx, orgID, now)
	}
	return r.explicit(ctx, orgID, years, now)
}

func (r *Refresher) latest(ctx context.Context, orgID int64, now time.Time) ([]YearReports, error) {
	reports, err := r.repo.LatestYearReports(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load latest year: %w", err)
	}

	snap := Snapshot{Latest: reports}
	if err := r.fillOrganizationScope(ctx, orgID, &snap); err != nil {
		return nil, err
	}

	if d := Decide(r.policy, snap, now); d.Refresh {
		if err := r.sync(ctx, orgID, d, now); err != nil {
			return nil, err
		}
		if reports, err = r.repo.LatestYearReports(ctx, orgID); err != nil {
			return nil, fmt.Errorf("reload latest year: %w", err)
		}
	}

	if len(reports) == 0 {
		return nil, nil
	}
	return []YearReports{{Year: reports[0].Year, Reports: reports}}, nil
}

func (r *Refresher) explicit(ctx context.Context, orgID int64, years []int, now time.Time) ([]YearReports, error) {
	missing, err := r.repo.MissingYears(ctx, orgID, UniqueYears(years))
	if err != nil {
		return nil, fmt.Errorf("find missing years: %w", err)
	}

	snap := Snapshot{Explicit: true, Missing: missing}
	if err := r.fillOrganizationScope(ctx, orgID, &snap); err != nil {
		return nil, err
	}

	if d := Decide(r.policy, snap, now); d.Refresh {
		if err := r.sync(ctx, orgID, d, now); err != nil {
			return nil, err
		}
	}

	loaded := make(map[int][]*Report, len(years))
	out := make([]YearReports, 0, len(years))
	for _, y := range years {
		reports, ok := loaded[y]
		if !ok {
			if reports, err = r.repo.ReportsForYear(ctx, orgID, y); err != nil {
				return nil, fmt.Errorf("load year %d: %w", y, err)
			}
			loaded[y] = reports
		}
		out = append(out, YearReports{Year: y, Reports: reports})
	}
	return out, nil
}

func (r *Refresher) fillOrganizationScope(ctx context.Context, orgID int64, snap *Snapshot) error {
	if r.policy.Scope != ScopeOrganization {
		return nil
	}
	last, ok, err := r.repo.LastUpdated(ctx, orgID)
	if err != nil {
		return fmt.Errorf("load last update: %w", err)
	}
	snap.LastUpdated, snap.HasAnyReport = last, ok
	return nil
}

// sync fetches every upstream year and reconciles it into the store.
// Concurrent syncs of one organization share a single upstream call. The
// shared call is detached from the cancellation of whichever request started
// it; the upstream client timeout bounds it instead. Each caller stops
// waiting when its own ctx is done.
func (r *Refresher) sync(ctx context.Context, orgID int64, d Decision, now time.Time) error {
	ch := r.group.DoChan(strconv.FormatInt(orgID, 10), func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		logger.Info(ctx, "refreshing reports from upstream", "organization_id", orgID, "reason", d.Reason)

		years, err := r.fetcher.FetchReports(ctx, orgID)
		if err != nil {
			return nil, err
		}

		var result ReconcileResult
		err = r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
			var err error
			result, err = r.repo.Reconcile(ctx, orgID, years, now)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("reconcile reports: %w", err)
		}

		logger.Info(ctx, "reports reconciled",
			"organization_id", orgID,
			"years", len(years),
			"inserted", result.Inserted,
			"updated", result.Updated,
		)
		return result, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			logger.Debug(ctx, "joined in-flight refresh", "organization_id", orgID)
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}
