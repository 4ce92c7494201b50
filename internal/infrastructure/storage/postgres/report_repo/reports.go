// Package report_repo provides the PostgreSQL report store.
package report_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"bfoproxy/internal/core/apperror"
	"bfoproxy/internal/domain/report"
	"bfoproxy/internal/infrastructure/storage/postgres"
)

const reportTable = "reports"

// maxUpsertRows keeps a single upsert under the PostgreSQL parameter limit.
const maxUpsertRows = 5000

var reportColumns = postgres.ExtractDBColumns[report.Report]()

// upsertColumns are written on insert; created_at is kept on conflict.
var upsertColumns = []string{
	"organization_id", "report_year", "present_date", "required_audit",
	"organization_sheet", "balance_sheet", "financial_sheet", "created_at", "updated_at",
}

const upsertConflict = "ON CONFLICT (organization_id, report_year, present_date) DO UPDATE SET " +
	"required_audit = EXCLUDED.required_audit, " +
	"organization_sheet = EXCLUDED.organization_sheet, " +
	"balance_sheet = EXCLUDED.balance_sheet, " +
	"financial_sheet = EXCLUDED.financial_sheet, " +
	"updated_at = EXCLUDED.updated_at " +
	"RETURNING (xmax = 0) AS inserted"

// ReportRepo implements report.Repository.
type ReportRepo struct {
	txm *postgres.TxManager
}

var _ report.Repository = (*ReportRepo)(nil)

// NewReportRepo creates a new report repository.
func NewReportRepo(txm *postgres.TxManager) *ReportRepo {
	return &ReportRepo{txm: txm}
}

func baseSelect(orgID int64) squirrel.SelectBuilder {
	return postgres.Builder().
		Select(reportColumns...).
		From(reportTable).
		Where(squirrel.Eq{"organization_id": orgID})
}

func latestYearQuery(orgID int64) squirrel.SelectBuilder {
	return baseSelect(orgID).
		Where("report_year = (SELECT MAX(report_year) FROM reports WHERE organization_id = ?)", orgID).
		OrderBy("present_date ASC")
}

func yearQuery(orgID int64, year int) squirrel.SelectBuilder {
	return baseSelect(orgID).
		Where(squirrel.Eq{"report_year": year}).
		OrderBy("present_date ASC")
}

func presentYearsQuery(orgID int64, years []int) squirrel.SelectBuilder {
	return postgres.Builder().
		Select("DISTINCT report_year").
		From(reportTable).
		Where(squirrel.Eq{"organization_id": orgID, "report_year": years})
}

func lastUpdatedQuery(orgID int64) squirrel.SelectBuilder {
	return postgres.Builder().
		Select("MAX(updated_at)").
		From(reportTable).
		Where(squirrel.Eq{"organization_id": orgID})
}

func upsertQuery(rows []*report.Report) squirrel.InsertBuilder {
	q := postgres.Builder().
		Insert(reportTable).
		Columns(upsertColumns...)
	for _, r := range rows {
		q = q.Values(
			r.OrganizationID, r.Year, r.PresentDate, r.RequiredAudit,
			r.OrganizationSheet, r.BalanceSheet, r.FinancialSheet, r.CreatedAt, r.UpdatedAt,
		)
	}
	return q.Suffix(upsertConflict)
}

func (r *ReportRepo) selectReports(ctx context.Context, q squirrel.SelectBuilder) ([]*report.Report, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	reports := make([]*report.Report, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &reports, sql, args...); err != nil {
		return nil, apperror.NewDatabase(fmt.Errorf("select reports: %w", err))
	}
	return reports, nil
}

// LatestYearReports implements report.Repository.
func (r *ReportRepo) LatestYearReports(ctx context.Context, orgID int64) ([]*report.Report, error) {
	return r.selectReports(ctx, latestYearQuery(orgID))
}

// ReportsForYear implements report.Repository.
func (r *ReportRepo) ReportsForYear(ctx context.Context, orgID int64, year int) ([]*report.Report, error) {
	return r.selectReports(ctx, yearQuery(orgID, year))
}

// MissingYears implements report.Repository.
func (r *ReportRepo) MissingYears(ctx context.Context, orgID int64, years []int) ([]int, error) {
	requested := report.UniqueYears(years)
	if len(requested) == 0 {
		return []int{}, nil
	}

	sql, args, err := presentYearsQuery(orgID, requested).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var present []int
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &present, sql, args...); err != nil {
		return nil, apperror.NewDatabase(fmt.Errorf("select present years: %w", err))
	}

	found := make(map[int]bool, len(present))
	for _, y := range present {
		found[y] = true
	}
	missing := make([]int, 0, len(requested))
	for _, y := range requested {
		if !found[y] {
			missing = append(missing, y)
		}
	}
	return missing, nil
}

// LastUpdated implements report.Repository.
func (r *ReportRepo) LastUpdated(ctx context.Context, orgID int64) (time.Time, bool, error) {
	sql, args, err := lastUpdatedQuery(orgID).ToSql()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("build query: %w", err)
	}

	var last *time.Time
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&last); err != nil {
		return time.Time{}, false, apperror.NewDatabase(fmt.Errorf("select last update: %w", err))
	}
	if last == nil {
		return time.Time{}, false, nil
	}
	return *last, true, nil
}

// Reconcile upserts every upstream report by natural key in one statement per
// maxUpsertRows rows. Rows absent upstream are left untouched. Call it inside
// a transaction so a multi-chunk reconcile is atomic.
func (r *ReportRepo) Reconcile(ctx context.Context, orgID int64, years []report.YearCorrections, now time.Time) (report.ReconcileResult, error) {
	var result report.ReconcileResult

	rows := report.Flatten(orgID, years, now)
	for start := 0; start < len(rows); start += maxUpsertRows {
		end := min(start+maxUpsertRows, len(rows))

		sql, args, err := upsertQuery(rows[start:end]).ToSql()
		if err != nil {
			return result, fmt.Errorf("build upsert: %w", err)
		}

		var inserted []bool
		if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &inserted, sql, args...); err != nil {
			return result, apperror.NewDatabase(fmt.Errorf("upsert reports: %w", err))
		}
		for _, ins := range inserted {
			if ins {
				result.Inserted++
			} else {
				result.Updated++
			}
		}
	}
	return result, nil
}
