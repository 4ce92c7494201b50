// Package disclosure answers report requests: tax id in, organization profile
// and per-year reports out.
package disclosure

import (
	"context"
	"time"

	appctx "bfoproxy/internal/core/context"
	"bfoproxy/internal/domain/organization"
	"bfoproxy/internal/domain/report"
	"bfoproxy/pkg/logger"
)

// Query is a report request. Empty Years selects the latest stored year.
type Query struct {
	TaxID string
	Years []int
}

// Response is the assembled answer.
type Response struct {
	TaxID        string
	Organization organization.Profile
	Periods      []report.YearReports
}

// OrganizationResolver maps a tax id to an organization.
type OrganizationResolver interface {
	Resolve(ctx context.Context, taxID string) (*organization.Organization, error)
}

// ReportSource returns reports for an organization.
type ReportSource interface {
	Refresh(ctx context.Context, orgID int64, years []int) ([]report.YearReports, error)
}

// Service is the request facade.
type Service struct {
	orgs    OrganizationResolver
	reports ReportSource
	now     func() time.Time
}

// NewService creates a new disclosure service.
func NewService(orgs OrganizationResolver, reports ReportSource) *Service {
	return &Service{orgs: orgs, reports: reports, now: time.Now}
}

// GetReport validates q, resolves the organization and returns its reports.
func (s *Service) GetReport(ctx context.Context, q Query) (*Response, error) {
	if err := organization.ValidateTaxID(q.TaxID); err != nil {
		return nil, err
	}
	if err := report.ValidateYears(q.Years, s.now()); err != nil {
		return nil, err
	}

	org, err := s.orgs.Resolve(ctx, q.TaxID)
	if err != nil {
		return nil, err
	}

	if subject := appctx.GetSubject(ctx); subject != nil {
		subject.OrganizationID = org.ID
	} else {
		ctx = appctx.WithSubject(ctx, &appctx.Subject{TaxID: q.TaxID, OrganizationID: org.ID})
	}

	periods, err := s.reports.Refresh(ctx, org.ID, q.Years)
	if err != nil {
		return nil, err
	}
	if periods == nil {
		periods = []report.YearReports{}
	}

	logger.Debug(ctx, "report assembled", "periods", len(periods))

	return &Response{
		TaxID:        q.TaxID,
		Organization: org.Profile(),
		Periods:      periods,
	}, nil
}
