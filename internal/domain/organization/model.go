// Package organization resolves tax identifiers to registry organizations.
package organization

import (
	"time"
)

// Profile is what the registry search returns for an organization.
type Profile struct {
	ID        int64
	TaxID     string
	ShortName string
	FullName  string
	OGRN      string
	Index     string
	Region    string
	City      string
}

// Organization is a locally cached registry organization.
// ID is assigned by the registry and never changes.
type Organization struct {
	ID        int64     `db:"id"`
	TaxID     string    `db:"inn"`
	ShortName string    `db:"short_name"`
	FullName  string    `db:"full_name"`
	OGRN      string    `db:"ogrn"`
	Index     string    `db:"postal_index"`
	Region    string    `db:"region"`
	City      string    `db:"city"`
	CreatedAt time.Time `db:"created_at"`
}

// NewFromProfile builds an Organization for the requested tax id.
func NewFromProfile(taxID string, p *Profile, now time.Time) *Organization {
	return &Organization{
		ID:        p.ID,
		TaxID:     taxID,
		ShortName: p.ShortName,
		FullName:  p.FullName,
		OGRN:      p.OGRN,
		Index:     p.Index,
		Region:    p.Region,
		City:      p.City,
		CreatedAt: now,
	}
}

// Profile returns the cached profile attributes.
func (o *Organization) Profile() Profile {
	return Profile{
		ID:        o.ID,
		TaxID:     o.TaxID,
		ShortName: o.ShortName,
		FullName:  o.FullName,
		OGRN:      o.OGRN,
		Index:     o.Index,
		Region:    o.Region,
		City:      o.City,
	}
}
