package bfo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"bfoproxy/internal/domain/organization"
	"bfoproxy/internal/domain/report"
)

const datePresentLayout = "2006-01-02"

// flexString accepts both JSON strings and numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type searchResponse struct {
	Content []searchItem `json:"content"`
}

type searchItem struct {
	ID        int64      `json:"id"`
	INN       flexString `json:"inn"`
	ShortName string     `json:"shortName"`
	FullName  string     `json:"fullName"`
	OGRN      flexString `json:"ogrn"`
	Index     flexString `json:"index"`
	Region    string     `json:"region"`
	City      string     `json:"city"`
}

func (s searchItem) toProfile() *organization.Profile {
	return &organization.Profile{
		ID:        s.ID,
		TaxID:     string(s.INN),
		ShortName: s.ShortName,
		FullName:  s.FullName,
		OGRN:      string(s.OGRN),
		Index:     string(s.Index),
		Region:    s.Region,
		City:      s.City,
	}
}

type periodItem struct {
	ID              int64            `json:"id"`
	Period          json.Number      `json:"period"`
	TypeCorrections []typeCorrection `json:"typeCorrections"`
}

type typeCorrection struct {
	Correction correction `json:"correction"`
}

type correction struct {
	ID                  int64           `json:"id"`
	DatePresent         string          `json:"datePresent"`
	RequiredAudit       bool            `json:"requiredAudit"`
	BFOOrganizationInfo json.RawMessage `json:"bfoOrganizationInfo"`
	Balance             json.RawMessage `json:"balance"`
	FinancialResult     json.RawMessage `json:"financialResult"`
}

func (p periodItem) toDomain() (report.YearCorrections, error) {
	year, err := p.Period.Int64()
	if err != nil {
		return report.YearCorrections{}, fmt.Errorf("period %q: %w", p.Period, err)
	}

	out := report.YearCorrections{
		Year:        int(year),
		Corrections: make([]report.Correction, 0, len(p.TypeCorrections)),
	}
	for _, tc := range p.TypeCorrections {
		c := tc.Correction
		present, err := time.Parse(datePresentLayout, c.DatePresent)
		if err != nil {
			return report.YearCorrections{}, fmt.Errorf("period %d: datePresent %q: %w", year, c.DatePresent, err)
		}
		out.Corrections = append(out.Corrections, report.Correction{
			PresentDate:       present,
			RequiredAudit:     c.RequiredAudit,
			OrganizationSheet: nullIfEmpty(c.BFOOrganizationInfo),
			BalanceSheet:      nullIfEmpty(c.Balance),
			FinancialSheet:    nullIfEmpty(c.FinancialResult),
		})
	}
	return out, nil
}

func nullIfEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return raw
}
