// Package organization_repo provides the PostgreSQL organization store.
package organization_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"bfoproxy/internal/core/apperror"
	"bfoproxy/internal/domain/organization"
	"bfoproxy/internal/infrastructure/storage/postgres"
)

const organizationTable = "organizations"

var organizationColumns = postgres.ExtractDBColumns[organization.Organization]()

// OrganizationRepo implements organization.Repository.
type OrganizationRepo struct {
	txm *postgres.TxManager
}

var _ organization.Repository = (*OrganizationRepo)(nil)

// NewOrganizationRepo creates a new organization repository.
func NewOrganizationRepo(txm *postgres.TxManager) *OrganizationRepo {
	return &OrganizationRepo{txm: txm}
}

func findByTaxIDQuery(taxID string) squirrel.SelectBuilder {
	return postgres.Builder().
		Select(organizationColumns...).
		From(organizationTable).
		Where(squirrel.Eq{"inn": taxID}).
		Limit(1)
}

func insertQuery(org *organization.Organization) squirrel.InsertBuilder {
	return postgres.Builder().
		Insert(organizationTable).
		SetMap(postgres.StructToMap(org))
}

// FindByTaxID retrieves an organization by INN.
func (r *OrganizationRepo) FindByTaxID(ctx context.Context, taxID string) (*organization.Organization, error) {
	sql, args, err := findByTaxIDQuery(taxID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	org := &organization.Organization{}
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), org, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("organization", taxID)
		}
		return nil, apperror.NewDatabase(fmt.Errorf("get organization by inn: %w", err))
	}
	return org, nil
}

// Create inserts a new organization.
func (r *OrganizationRepo) Create(ctx context.Context, org *organization.Organization) error {
	sql, args, err := insertQuery(org).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if constraint, ok := postgres.UniqueViolation(err); ok {
			if constraint == "organizations_pkey" {
				return apperror.NewDuplicate("organization", "id", fmt.Sprint(org.ID)).WithCause(err)
			}
			return apperror.NewDuplicate("organization", "inn", org.TaxID).WithCause(err)
		}
		return apperror.NewDatabase(fmt.Errorf("insert organization: %w", err))
	}
	return nil
}
