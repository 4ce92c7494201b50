package organization_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bfoproxy/internal/domain/organization"
)

func TestFindByTaxIDQuery(t *testing.T) {
	sql, args, err := findByTaxIDQuery("7707083893").ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, inn, short_name, full_name, ogrn, postal_index, region, city, created_at "+
			"FROM organizations WHERE inn = $1 LIMIT 1",
		sql)
	assert.Equal(t, []any{"7707083893"}, args)
}

func TestInsertQuery(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	org := &organization.Organization{ID: 6622458, TaxID: "7707083893", ShortName: "ПАО СБЕРБАНК", CreatedAt: created}

	sql, args, err := insertQuery(org).ToSql()
	require.NoError(t, err)

	// SetMap sorts columns alphabetically.
	assert.Equal(t,
		"INSERT INTO organizations (city,created_at,full_name,id,inn,ogrn,postal_index,region,short_name) "+
			"VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)",
		sql)
	assert.Equal(t, []any{"", created, "", int64(6622458), "7707083893", "", "", "", "ПАО СБЕРБАНК"}, args)
}
