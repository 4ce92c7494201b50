// Package reporttest provides an in-memory report.Repository for tests.
package reporttest

import (
	"context"
	"sort"
	"sync"
	"time"

	"bfoproxy/internal/domain/report"
)

// MemoryRepository stores reports in a map keyed like the database table.
type MemoryRepository struct {
	mu         sync.Mutex
	rows       map[int64]map[report.Key]*report.Report
	Reconciles int
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[int64]map[report.Key]*report.Report)}
}

// Seed stores reports as-is, keeping their timestamps.
func (m *MemoryRepository) Seed(reports ...*report.Report) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range reports {
		m.orgRows(r.OrganizationID)[r.Key()] = clone(r)
	}
}

// All returns every stored report of the organization ordered by year and date.
func (m *MemoryRepository) All(orgID int64) []*report.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectLocked(orgID, func(*report.Report) bool { return true })
}

func (m *MemoryRepository) LatestYearReports(_ context.Context, orgID int64) ([]*report.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	maxYear := 0
	for _, r := range m.rows[orgID] {
		if r.Year > maxYear {
			maxYear = r.Year
		}
	}
	if maxYear == 0 {
		return []*report.Report{}, nil
	}
	return m.selectLocked(orgID, func(r *report.Report) bool { return r.Year == maxYear }), nil
}

func (m *MemoryRepository) ReportsForYear(_ context.Context, orgID int64, year int) ([]*report.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectLocked(orgID, func(r *report.Report) bool { return r.Year == year }), nil
}

func (m *MemoryRepository) MissingYears(_ context.Context, orgID int64, years []int) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	present := make(map[int]bool)
	for _, r := range m.rows[orgID] {
		present[r.Year] = true
	}
	missing := []int{}
	for _, y := range report.UniqueYears(years) {
		if !present[y] {
			missing = append(missing, y)
		}
	}
	return missing, nil
}

func (m *MemoryRepository) LastUpdated(_ context.Context, orgID int64) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := report.NewestUpdate(m.selectLocked(orgID, func(*report.Report) bool { return true }))
	return t, ok, nil
}

func (m *MemoryRepository) Reconcile(_ context.Context, orgID int64, years []report.YearCorrections, now time.Time) (report.ReconcileResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reconciles++

	var res report.ReconcileResult
	rows := m.orgRows(orgID)
	for _, r := range report.Flatten(orgID, years, now) {
		if existing, ok := rows[r.Key()]; ok {
			r.CreatedAt = existing.CreatedAt
			res.Updated++
		} else {
			res.Inserted++
		}
		rows[r.Key()] = r
	}
	return res, nil
}

func (m *MemoryRepository) orgRows(orgID int64) map[report.Key]*report.Report {
	rows, ok := m.rows[orgID]
	if !ok {
		rows = make(map[report.Key]*report.Report)
		m.rows[orgID] = rows
	}
	return rows
}

func (m *MemoryRepository) selectLocked(orgID int64, keep func(*report.Report) bool) []*report.Report {
	out := []*report.Report{}
	for _, r := range m.rows[orgID] {
		if keep(r) {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].PresentDate.Before(out[j].PresentDate)
	})
	return out
}

func clone(r *report.Report) *report.Report {
	c := *r
	return &c
}

var _ report.Repository = (*MemoryRepository)(nil)
