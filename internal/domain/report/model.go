// Package report keeps per-year financial reports in sync with the registry.
package report

import (
	"encoding/json"
	"sort"
	"time"
)

// Report is one submission of an organization's financial statements for a fiscal year.
// (OrganizationID, Year, PresentDate) is the natural key; corrections add rows.
type Report struct {
	OrganizationID    int64           `db:"organization_id"`
	Year              int             `db:"report_year"`
	PresentDate       time.Time       `db:"present_date"`
	RequiredAudit     bool            `db:"required_audit"`
	OrganizationSheet json.RawMessage `db:"organization_sheet"`
	BalanceSheet      json.RawMessage `db:"balance_sheet"`
	FinancialSheet    json.RawMessage `db:"financial_sheet"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

// Key identifies a report within one organization.
type Key struct {
	Year        int
	PresentDate time.Time
}

// Key returns the natural key of r.
func (r *Report) Key() Key {
	return Key{Year: r.Year, PresentDate: r.PresentDate}
}

// Correction is one upstream submission for a fiscal year.
type Correction struct {
	PresentDate       time.Time
	RequiredAudit     bool
	OrganizationSheet json.RawMessage
	BalanceSheet      json.RawMessage
	FinancialSheet    json.RawMessage
}

// YearCorrections groups the upstream corrections of one fiscal year.
type YearCorrections struct {
	Year        int
	Corrections []Correction
}

// YearReports is the stored state of one requested year.
type YearReports struct {
	Year    int
	Reports []*Report
}

// ReconcileResult counts rows written by a reconcile.
type ReconcileResult struct {
	Inserted int
	Updated  int
}

// Flatten turns upstream years into rows ready for upsert.
// Rows sharing a natural key collapse to the last one seen. Corrections without
// a submission date are dropped. The result is ordered by year, then date.
func Flatten(orgID int64, years []YearCorrections, now time.Time) []*Report {
	byKey := make(map[Key]*Report)
	for _, y := range years {
		for _, c := range y.Corrections {
			if c.PresentDate.IsZero() {
				continue
			}
			r := &Report{
				OrganizationID:    orgID,
				Year:              y.Year,
				PresentDate:       truncateDate(c.PresentDate),
				RequiredAudit:     c.RequiredAudit,
				OrganizationSheet: c.OrganizationSheet,
				BalanceSheet:      c.BalanceSheet,
				FinancialSheet:    c.FinancialSheet,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			byKey[r.Key()] = r
		}
	}

	rows := make([]*Report, 0, len(byKey))
	for _, r := range byKey {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Year != rows[j].Year {
			return rows[i].Year < rows[j].Year
		}
		return rows[i].PresentDate.Before(rows[j].PresentDate)
	})
	return rows
}

// NewestUpdate returns the latest UpdatedAt among reports.
func NewestUpdate(reports []*Report) (time.Time, bool) {
	var newest time.Time
	for _, r := range reports {
		if r.UpdatedAt.After(newest) {
			newest = r.UpdatedAt
		}
	}
	return newest, len(reports) > 0
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
