package report_repo_test

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bfoproxy/internal/domain/organization"
	"bfoproxy/internal/domain/report"
	"bfoproxy/internal/infrastructure/storage/postgres"
	"bfoproxy/internal/infrastructure/storage/postgres/organization_repo"
	"bfoproxy/internal/infrastructure/storage/postgres/report_repo"
)

// txManagerForTest migrates BFO_TEST_DATABASE_DSN and connects, or skips.
func txManagerForTest(t *testing.T) *postgres.TxManager {
	t.Helper()
	dsn := os.Getenv("BFO_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("BFO_TEST_DATABASE_DSN not set")
	}
	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(pool.Close)
	return postgres.NewTxManager(pool)
}

// organizationForTest inserts an organization with a unique id and tax id.
func organizationForTest(t *testing.T, txm *postgres.TxManager) int64 {
	t.Helper()
	ctx := context.Background()
	id := 9_000_000_000 + time.Now().UnixNano()%1_000_000_000
	org := &organization.Organization{
		ID:        id,
		TaxID:     strconv.FormatInt(id, 10),
		ShortName: "ТЕСТ",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, organization_repo.NewOrganizationRepo(txm).Create(ctx, org))
	t.Cleanup(func() {
		q := txm.GetQuerier(ctx)
		_, _ = q.Exec(ctx, "DELETE FROM reports WHERE organization_id = $1", id)
		_, _ = q.Exec(ctx, "DELETE FROM organizations WHERE id = $1", id)
	})
	return id
}

func TestReportRepo_ReconcileRoundTrip(t *testing.T) {
	txm := txManagerForTest(t)
	orgID := organizationForTest(t, txm)
	repo := report_repo.NewReportRepo(txm)
	ctx := context.Background()

	date2022 := time.Date(2023, 3, 30, 0, 0, 0, 0, time.UTC)
	date2023 := time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC)
	upstream := []report.YearCorrections{
		{Year: 2022, Corrections: []report.Correction{{
			PresentDate:       date2022,
			RequiredAudit:     true,
			OrganizationSheet: json.RawMessage(`{"inn":"7707083893"}`),
			BalanceSheet:      json.RawMessage(`{"current1600":100}`),
			FinancialSheet:    json.RawMessage(`{"current2110":50}`),
		}}},
		{Year: 2023, Corrections: []report.Correction{{
			PresentDate:  date2023,
			BalanceSheet: json.RawMessage(`{"current1600":200}`),
		}}},
	}

	first := time.Now().UTC().Truncate(time.Microsecond)
	res, err := repo.Reconcile(ctx, orgID, upstream, first)
	require.NoError(t, err)
	assert.Equal(t, report.ReconcileResult{Inserted: 2, Updated: 0}, res)

	latest, err := repo.LatestYearReports(ctx, orgID)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	got := latest[0]
	assert.Equal(t, 2023, got.Year)
	assert.True(t, got.PresentDate.Equal(date2023), "present date %s", got.PresentDate)
	assert.False(t, got.RequiredAudit)
	assert.Nil(t, got.OrganizationSheet)
	assert.Nil(t, got.FinancialSheet)
	assert.JSONEq(t, `{"current1600":200}`, string(got.BalanceSheet))
	assert.True(t, got.CreatedAt.Equal(first))

	year2022, err := repo.ReportsForYear(ctx, orgID, 2022)
	require.NoError(t, err)
	require.Len(t, year2022, 1)
	assert.True(t, year2022[0].PresentDate.Equal(date2022))
	assert.True(t, year2022[0].RequiredAudit)
	assert.JSONEq(t, `{"inn":"7707083893"}`, string(year2022[0].OrganizationSheet))

	missing, err := repo.MissingYears(ctx, orgID, []int{2021, 2022, 2023})
	require.NoError(t, err)
	assert.Equal(t, []int{2021}, missing)

	second := first.Add(time.Hour)
	upstream[1].Corrections[0].BalanceSheet = json.RawMessage(`{"current1600":250}`)
	res, err = repo.Reconcile(ctx, orgID, upstream, second)
	require.NoError(t, err)
	assert.Equal(t, report.ReconcileResult{Inserted: 0, Updated: 2}, res)

	latest, err = repo.LatestYearReports(ctx, orgID)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.JSONEq(t, `{"current1600":250}`, string(latest[0].BalanceSheet))
	assert.True(t, latest[0].CreatedAt.Equal(first), "created_at kept on update")
	assert.True(t, latest[0].UpdatedAt.Equal(second))

	updated, ok, err := repo.LastUpdated(ctx, orgID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, updated.Equal(second))
}
