package history

import (
	"context"
	"time"

	"bfoproxy/pkg/logger"
)

// Service records history entries and enforces retention.
type Service struct {
	repo    Repository
	enabled bool
	now     func() time.Time
}

// NewService creates a new history service.
func NewService(repo Repository, enabled bool) *Service {
	return &Service{repo: repo, enabled: enabled, now: time.Now}
}

// Enabled reports whether requests should be captured.
func (s *Service) Enabled() bool {
	return s != nil && s.enabled
}

// Record stores entry. Failures are logged and never returned: history must
// not change the response a caller already received.
func (s *Service) Record(ctx context.Context, entry *Entry) {
	if !s.Enabled() {
		return
	}
	if entry.TaxID == "" || len(entry.Response) == 0 {
		return
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		logger.Warn(ctx, "failed to record request history", "inn", entry.TaxID, "error", err)
	}
}

// DefaultListLimit and MaxListLimit bound List.
const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// List returns recent entries for taxID.
func (s *Service) List(ctx context.Context, taxID string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.repo.ListByTaxID(ctx, taxID, limit)
}

// Cleanup deletes entries older than retention. Zero retention keeps everything.
func (s *Service) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-retention)
	n, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Info(ctx, "request history pruned", "deleted", n, "cutoff", cutoff)
	}
	return n, nil
}
