package report

import (
	"time"
)

// Scope selects which stored reports decide staleness.
type Scope string

const (
	// ScopeYearGap refreshes latest-year requests when the latest year is old
	// and explicit-year requests only when a year is missing.
	ScopeYearGap Scope = "year_gap"

	// ScopeOrganization additionally refreshes any request when the
	// organization's newest report is old or it has none.
	ScopeOrganization Scope = "organization"
)

// Policy is the refresh policy.
type Policy struct {
	MaxAge time.Duration
	Scope  Scope
}

// Snapshot is what the store currently holds for a request.
type Snapshot struct {
	// Explicit is true when the caller asked for specific years.
	Explicit bool

	// Latest holds the latest-year reports (latest-year mode only).
	Latest []*Report

	// Missing holds requested years without reports (explicit mode only).
	Missing []int

	// LastUpdated is the organization-wide newest update; filled for ScopeOrganization.
	LastUpdated  time.Time
	HasAnyReport bool
}

// Refresh reasons.
const (
	ReasonNone              = ""
	ReasonNoReports         = "no_reports"
	ReasonStale             = "stale"
	ReasonMissingYears      = "missing_years"
	ReasonOrganizationStale = "organization_stale"
)

// Decision is the outcome of Decide.
type Decision struct {
	Refresh bool
	Reason  string
}

func refresh(reason string) Decision {
	return Decision{Refresh: true, Reason: reason}
}

// Decide reports whether an upstream round-trip is needed.
func Decide(p Policy, s Snapshot, now time.Time) Decision {
	threshold := now.Add(-p.MaxAge)

	if s.Explicit {
		if len(s.Missing) > 0 {
			return refresh(ReasonMissingYears)
		}
	} else {
		newest, ok := NewestUpdate(s.Latest)
		if !ok {
			return refresh(ReasonNoReports)
		}
		if newest.Before(threshold) {
			return refresh(ReasonStale)
		}
	}

	if p.Scope == ScopeOrganization {
		if !s.HasAnyReport {
			return refresh(ReasonNoReports)
		}
		if s.LastUpdated.Before(threshold) {
			return refresh(ReasonOrganizationStale)
		}
	}

	return Decision{}
}
