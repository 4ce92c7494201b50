package organization

import (
	"context"
	"fmt"
	"time"

	"bfoproxy/internal/core/apperror"
	"bfoproxy/pkg/logger"
)

// Service resolves tax ids to organizations, creating them on first sight.
type Service struct {
	repo     Repository
	searcher Searcher
	cache    Cache
	now      func() time.Time
}

// NewService creates a new organization service. cache may be nil.
func NewService(repo Repository, searcher Searcher, cache Cache) *Service {
	return &Service{
		repo:     repo,
		searcher: searcher,
		cache:    cache,
		now:      time.Now,
	}
}

// Resolve returns the organization for taxID.
// Unknown tax ids are searched upstream and persisted. A concurrent create
// for the same tax id is absorbed by re-reading the winner's record.
func (s *Service) Resolve(ctx context.Context, taxID string) (*Organization, error) {
	if s.cache != nil {
		if org, ok := s.cache.Get(taxID); ok {
			return org, nil
		}
	}

	org, err := s.repo.FindByTaxID(ctx, taxID)
	if err == nil {
		s.remember(org)
		return org, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("find organization: %w", err)
	}

	profile, err := s.searcher.SearchByTaxID(ctx, taxID)
	if err != nil {
		return nil, err
	}

	org = NewFromProfile(taxID, profile, s.now().UTC())
	if err := s.repo.Create(ctx, org); err != nil {
		if !apperror.IsConflict(err) {
			return nil, fmt.Errorf("create organization: %w", err)
		}
		logger.Debug(ctx, "organization created concurrently, re-reading", "inn", taxID)
		existing, findErr := s.repo.FindByTaxID(ctx, taxID)
		if findErr != nil {
			return nil, fmt.Errorf("re-read organization after conflict: %w", findErr)
		}
		org = existing
	} else {
		logger.Info(ctx, "organization registered", "inn", taxID, "organization_id", org.ID)
	}

	s.remember(org)
	return org, nil
}

func (s *Service) remember(org *Organization) {
	if s.cache != nil {
		s.cache.Set(org)
	}
}
