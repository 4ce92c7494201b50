package dto

import (
	"encoding/json"
	"time"

	"bfoproxy/internal/domain/disclosure"
	"bfoproxy/internal/domain/report"
)

// ReportRequest is the query of GET /api/v1/report.
type ReportRequest struct {
	TaxID string `form:"inn"`
	Term  string `form:"term"`
}

// ReportResponse is the organization profile with its reports grouped by year.
type ReportResponse struct {
	TaxID     string           `json:"inn"`
	ShortName string           `json:"short_name"`
	FullName  string           `json:"full_name"`
	OGRN      string           `json:"ogrn"`
	Index     string           `json:"index"`
	Region    string           `json:"region"`
	City      string           `json:"city"`
	Periods   []PeriodResponse `json:"periods"`
}

// PeriodResponse holds the reports of one fiscal year.
type PeriodResponse struct {
	Year    int              `json:"year"`
	Reports []ReportSnapshot `json:"reports"`
}

// ReportSnapshot is a single stored submission.
type ReportSnapshot struct {
	PresentDate       string          `json:"present_date"`
	UpdatedAt         time.Time       `json:"updated_at"`
	RequiredAudit     bool            `json:"required_audit"`
	OrganizationSheet json.RawMessage `json:"organization_sheet"`
	BalanceSheet      json.RawMessage `json:"balance_sheet"`
	FinancialSheet    json.RawMessage `json:"financial_sheet"`
}

// FromDisclosure converts the facade response to the wire shape.
func FromDisclosure(r *disclosure.Response) *ReportResponse {
	resp := &ReportResponse{
		TaxID:     r.TaxID,
		ShortName: r.Organization.ShortName,
		FullName:  r.Organization.FullName,
		OGRN:      r.Organization.OGRN,
		Index:     r.Organization.Index,
		Region:    r.Organization.Region,
		City:      r.Organization.City,
		Periods:   make([]PeriodResponse, len(r.Periods)),
	}

	for i, period := range r.Periods {
		resp.Periods[i] = fromYearReports(period)
	}

	return resp
}

func fromYearReports(yr report.YearReports) PeriodResponse {
	period := PeriodResponse{
		Year:    yr.Year,
		Reports: make([]ReportSnapshot, len(yr.Reports)),
	}
	for i, r := range yr.Reports {
		period.Reports[i] = ReportSnapshot{
			PresentDate:       r.PresentDate.Format(DateLayout),
			UpdatedAt:         r.UpdatedAt,
			RequiredAudit:     r.RequiredAudit,
			OrganizationSheet: rawOrNull(r.OrganizationSheet),
			BalanceSheet:      rawOrNull(r.BalanceSheet),
			FinancialSheet:    rawOrNull(r.FinancialSheet),
		}
	}
	return period
}

// rawOrNull keeps encoding/json from failing on an empty RawMessage.
func rawOrNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
