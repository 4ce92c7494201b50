package disclosure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bfoproxy/internal/core/apperror"
	appctx "bfoproxy/internal/core/context"
	"bfoproxy/internal/domain/organization"
	"bfoproxy/internal/domain/report"
)

type mockResolver struct{ mock.Mock }

func (m *mockResolver) Resolve(ctx context.Context, taxID string) (*organization.Organization, error) {
	args := m.Called(ctx, taxID)
	org, _ := args.Get(0).(*organization.Organization)
	return org, args.Error(1)
}

type mockSource struct{ mock.Mock }

func (m *mockSource) Refresh(ctx context.Context, orgID int64, years []int) ([]report.YearReports, error) {
	args := m.Called(ctx, orgID, years)
	periods, _ := args.Get(0).([]report.YearReports)
	return periods, args.Error(1)
}

var sber = &organization.Organization{ID: 6622458, TaxID: "7707083893", ShortName: "ПАО СБЕРБАНК", City: "Москва"}

func newService(orgs OrganizationResolver, src ReportSource) *Service {
	s := NewService(orgs, src)
	s.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestGetReport_LatestYear(t *testing.T) {
	orgs := &mockResolver{}
	orgs.On("Resolve", mock.Anything, "7707083893").Return(sber, nil)
	src := &mockSource{}
	src.On("Refresh", mock.Anything, int64(6622458), []int(nil)).
		Return([]report.YearReports{{Year: 2023, Reports: []*report.Report{{Year: 2023}}}}, nil)

	resp, err := newService(orgs, src).GetReport(context.Background(), Query{TaxID: "7707083893"})
	require.NoError(t, err)

	assert.Equal(t, "7707083893", resp.TaxID)
	assert.Equal(t, "ПАО СБЕРБАНК", resp.Organization.ShortName)
	require.Len(t, resp.Periods, 1)
	assert.Equal(t, 2023, resp.Periods[0].Year)
}

func TestGetReport_EmptyLatestYieldsNoPeriods(t *testing.T) {
	orgs := &mockResolver{}
	orgs.On("Resolve", mock.Anything, "7707083893").Return(sber, nil)
	src := &mockSource{}
	src.On("Refresh", mock.Anything, int64(6622458), []int(nil)).Return(nil, nil)

	resp, err := newService(orgs, src).GetReport(context.Background(), Query{TaxID: "7707083893"})
	require.NoError(t, err)
	assert.NotNil(t, resp.Periods)
	assert.Empty(t, resp.Periods)
}

func TestGetReport_SetsSubjectOrganization(t *testing.T) {
	orgs := &mockResolver{}
	orgs.On("Resolve", mock.Anything, "7707083893").Return(sber, nil)
	src := &mockSource{}
	src.On("Refresh", mock.MatchedBy(func(ctx context.Context) bool {
		return appctx.GetSubject(ctx).OrganizationID == 6622458
	}), int64(6622458), []int{2023}).Return([]report.YearReports{{Year: 2023}}, nil)

	ctx := appctx.WithSubject(context.Background(), &appctx.Subject{TaxID: "7707083893"})
	_, err := newService(orgs, src).GetReport(ctx, Query{TaxID: "7707083893", Years: []int{2023}})
	require.NoError(t, err)
	src.AssertExpectations(t)
}

func TestGetReport_Validation(t *testing.T) {
	orgs := &mockResolver{}
	src := &mockSource{}
	svc := newService(orgs, src)

	_, err := svc.GetReport(context.Background(), Query{TaxID: "123"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = svc.GetReport(context.Background(), Query{TaxID: "7707083893", Years: []int{2030}})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	orgs.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestGetReport_PropagatesUpstreamFailures(t *testing.T) {
	orgs := &mockResolver{}
	orgs.On("Resolve", mock.Anything, "7707083893").Return(sber, nil)
	src := &mockSource{}
	src.On("Refresh", mock.Anything, int64(6622458), []int{2023}).Return(nil, apperror.NewUpstream(503, "maintenance"))

	_, err := newService(orgs, src).GetReport(context.Background(), Query{TaxID: "7707083893", Years: []int{2023}})
	assert.True(t, apperror.HasCode(err, apperror.CodeUpstream))
	assert.Equal(t, 503, apperror.GetHTTPStatus(err))
}

func TestGetReport_NotFound(t *testing.T) {
	orgs := &mockResolver{}
	orgs.On("Resolve", mock.Anything, "7736207543").Return(nil, apperror.NewNotFound("organization", "7736207543"))

	_, err := newService(orgs, &mockSource{}).GetReport(context.Background(), Query{TaxID: "7736207543"})
	assert.True(t, apperror.IsNotFound(err))
}
