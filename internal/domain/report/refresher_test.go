package report_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bfoproxy/internal/core/apperror"
	"bfoproxy/internal/domain/report"
	"bfoproxy/internal/domain/report/reporttest"
)

const orgID int64 = 6622458

var (
	now  = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	week = 7 * 24 * time.Hour
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchReports(ctx context.Context, id int64) ([]report.YearCorrections, error) {
	args := m.Called(ctx, id)
	years, _ := args.Get(0).([]report.YearCorrections)
	return years, args.Error(1)
}

func stored(year int, present time.Time, updated time.Time, balance string) *report.Report {
	return &report.Report{
		OrganizationID: orgID,
		Year:           year,
		PresentDate:    present,
		BalanceSheet:   json.RawMessage(balance),
		CreatedAt:      updated,
		UpdatedAt:      updated,
	}
}

func upstream() []report.YearCorrections {
	return []report.YearCorrections{
		{Year: 2022, Corrections: []report.Correction{
			{PresentDate: day(2023, 3, 30), BalanceSheet: json.RawMessage(`{"year":2022}`)},
		}},
		{Year: 2023, Corrections: []report.Correction{
			{PresentDate: day(2024, 3, 28), BalanceSheet: json.RawMessage(`{"year":2023}`), RequiredAudit: true},
		}},
	}
}

func newRefresher(repo report.Repository, f report.Fetcher, scope report.Scope) *report.Refresher {
	return report.NewRefresher(repo, f, nil, report.Policy{MaxAge: week, Scope: scope}).
		WithClock(func() time.Time { return now })
}

func TestRefresh_LatestStaleFetchesOnce(t *testing.T) {
	repo := reporttest.NewMemoryRepository()
	repo.Seed(stored(2023, day(2024, 3, 28), now.Add(-8*24*time.Hour), `{"old":true}`))

	f := &mockFetcher{}
	f.On("FetchReports", mock.Anything, orgID).Return(upstream(), nil).Once()

	got, err := newRefresher(repo, f, report.ScopeYearGap).Refresh(context.Background(), orgID, nil)
	require.NoError(t, err)

	f.AssertNumberOfCalls(t, "FetchReports", 1)
	require.Len(t, got, 1)
	assert.Equal(t, 2023, got[0].Year)
	require.Len(t, got[0].Reports, 1)
	assert.JSONEq(t, `{"year":2023}`, string(got[0].Reports[0].BalanceSheet))
	assert.Equal(t, now, got[0].Reports[0].UpdatedAt)
}

func TestRefresh_LatestFreshSkipsUpstream(t *testing.T) {
	repo := reporttest.NewMemoryRepository()
	repo.Seed(stored(2023, day(2024, 3, 28), now.Add(-24*time.Hour), `{}`))

	f := &mockFetcher{}

	got, err := newRefresher(repo, f, report.ScopeYearGap).Refresh(context.Background(), orgID, nil)
	require.NoError(t, err)

	f.AssertNotCalled(t, "FetchReports", mock.Anything, mock.Anything)
	require.Len(t, got, 1)
	assert.Equal(t, 2023, got[0].Year)
}

func TestRefresh_LatestEmptyUpstreamReturnsNothing(t *testing.T) {
	repo := reporttest.NewMemoryRepository()
	f := &mockFetcher{}
	f.On("FetchReports", mock.Anything, orgID).Return([]report.YearCorrections{}, nil)

	got, err := newRefresher(repo, f, report.ScopeYearGap).Refresh(context.Background(), orgID, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	f.AssertNumberOfCalls(t, "FetchReports", 1)
}

func TestRefresh_ExplicitMissingYearFetchesOnceAndReturnsAll(t *testing.T) {
	repo := reporttest.NewMemoryRepository()
	repo.Seed(stored(2022, day(2023, 3, 30), now.Add(-time.Hour), `{"year":2022}`))

	f := &mockFetcher{}
	f.On("FetchReports", mock.Anything, orgID).Return(upstream(), nil).Once()

	got, err := newRefresher(repo, f, report.ScopeYearGap).Refresh(context.Background(), orgID, []int{2022, 2023})
	require.NoError(t, err)

	f.AssertNumberOfCalls(t, "FetchReports", 1)
	require.Len(t, got, 2)
	assert.Equal(t, 2022, got[0].Year)
	assert.Len(t, got[0].Reports, 1)
	assert.Equal(t, 2023, got[1].Year)
	require.Len(t, got[1].Reports, 1)
	assert.True(t, got[1].Reports[0].RequiredAudit)
}

func TestRefresh_ExplicitKeepsCallerOrderAndDuplicates(t *testing.T) {
	repo := reporttest.NewMemoryRepository()
	repo.Seed(
		stored(2022, day(2023, 3, 30), now, `{}`),
		stored(2023, day(2024, 3, 28), now, `{}`),
	)
	f := &mockFetcher{}

	got, err := newRefresher(repo, f, report.ScopeYearGap).Refresh(context.Background(), orgID, []int{2023, 2022, 2023})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, []int{2023, 2022, 2023}, []int{got[0].Year, got[1].Year, got[2].Year})
	f.AssertNotCalled(t, "FetchReports", mock.Anything, mock.Anything)
}

func TestRefresh_ExplicitYearWithoutUpstreamDataIsEmpty(t *testing.T) {
	repo := reporttest.NewMemoryRepository()
	f := &mockFetcher{}
	f.On("FetchReports", mock.Anything, orgID).Return(upstream(), nil)

	got, err := newRefresher(repo, f, report.ScopeYearGap).Refresh(context.Background(), orgID, []int{2019})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, 2019, got[0].Year)
	assert.Empty(t, got[0].Reports)
}

func TestRefresh_ExplicitStaleYears(t *testing.T) {
	old := now.Add(-30 * 24 * time.Hour)

	t.Run("year gap scope ignores age", func(t *testing.T) {
		repo := reporttest.NewMemoryRepository()
		repo.Seed(stored(2022, day(2023, 3, 30), old, `{}`))
		f := &mockFetcher{}

		_, err := newRefresher(repo, f, report.ScopeYearGap).Refresh(context.Background(), orgID, []int{2022})
		require.NoError(t, err)
		f.AssertNotCalled(t, "FetchReports", mock.Anything, mock.Anything)
	})

	t.Run("organization scope refreshes", func(t *testing.T) {
		repo := reporttest.NewMemoryRepository()
		repo.Seed(stored(2022, day(2023, 3, 30), old, `{}`))
		f := &mockFetcher{}
		f.On("FetchReports", mock.Anything, orgID).Return(upstream(), nil).Once()

		_, err := newRefresher(repo, f, report.ScopeOrganization).Refresh(context.Background(), orgID, []int{2022})
		require.NoError(t, err)
		f.AssertNumberOfCalls(t, "FetchReports", 1)
	})
}

func TestRefresh_CorrectionUpdatesInPlace(t *testing.T) {
	created := now.Add(-10 * 24 * time.Hour)
	repo := reporttest.NewMemoryRepository()
	repo.Seed(stored(2023, day(2024, 3, 28), created, `{"v":"old"}`))

	f := &mockFetcher{}
	f.On("FetchReports", mock.Anything, orgID).Return([]report.YearCorrections{
		{Year: 2023, Corrections: []report.Correction{
			{PresentDate: day(2024, 3, 28), BalanceSheet: json.RawMessage(`{"v":"new"}`)},
		}},
	}, nil)

	_, err := newRefresher(repo, f, report.ScopeYearGap).Refresh(context.Background(), orgID, nil)
	require.NoError(t, err)

	all := repo.All(orgID)
	require.Len(t, all, 1)
	assert.JSONEq(t, `{"v":"new"}`, string(all[0].BalanceSheet))
	assert.Equal(t, created, all[0].CreatedAt)
	assert.Equal(t, now, all[0].UpdatedAt)
}

func TestRefresh_ReconcileIsIdempotentAndNeverDeletes(t *testing.T) {
	repo := reporttest.NewMemoryRepository()
	repo.Seed(stored(2019, day(2020, 3, 30), now.Add(-time.Hour), `{"kept":true}`))
	ctx := context.Background()

	_, err := repo.Reconcile(ctx, orgID, upstream(), now)
	require.NoError(t, err)
	first := repo.All(orgID)

	res, err := repo.Reconcile(ctx, orgID, upstream(), now)
	require.NoError(t, err)
	assert.Equal(t, report.ReconcileResult{Inserted: 0, Updated: 2}, res)
	assert.Equal(t, first, repo.All(orgID))
	assert.Len(t, first, 3)
}

func TestRefresh_FetchErrorPropagatesWithoutReconcile(t *testing.T) {
	repo := reporttest.NewMemoryRepository()
	f := &mockFetcher{}
	f.On("FetchReports", mock.Anything, orgID).Return(nil, apperror.NewRateLimited(3*time.Minute))

	_, err := newRefresher(repo, f, report.ScopeYearGap).Refresh(context.Background(), orgID, nil)
	require.Error(t, err)
	assert.True(t, apperror.IsRateLimited(err))
	assert.Zero(t, repo.Reconciles)
}

func TestRefresh_RunsReconcileInTransaction(t *testing.T) {
	repo := reporttest.NewMemoryRepository()
	f := &mockFetcher{}
	f.On("FetchReports", mock.Anything, orgID).Return(upstream(), nil)

	var txCalls int
	txm := managerFunc(func(ctx context.Context, fn func(context.Context) error) error {
		txCalls++
		return fn(ctx)
	})

	_, err := report.NewRefresher(repo, f, txm, report.Policy{MaxAge: week}).
		WithClock(func() time.Time { return now }).
		Refresh(context.Background(), orgID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, txCalls)
}

type managerFunc func(ctx context.Context, fn func(context.Context) error) error

func (f managerFunc) RunInTransaction(ctx context.Context, fn func(context.Context) error) error {
	return f(ctx, fn)
}

type countingRepo struct {
	*reporttest.MemoryRepository
	reads atomic.Int32
}

func (c *countingRepo) LatestYearReports(ctx context.Context, id int64) ([]*report.Report, error) {
	c.reads.Add(1)
	return c.MemoryRepository.LatestYearReports(ctx, id)
}

type blockingFetcher struct {
	calls   atomic.Int32
	release chan struct{}
}

func (b *blockingFetcher) FetchReports(context.Context, int64) ([]report.YearCorrections, error) {
	b.calls.Add(1)
	<-b.release
	return upstream(), nil
}

func TestRefresh_ConcurrentRequestsShareOneFetch(t *testing.T) {
	const workers = 8
	repo := &countingRepo{MemoryRepository: reporttest.NewMemoryRepository()}
	f := &blockingFetcher{release: make(chan struct{})}
	r := newRefresher(repo, f, report.ScopeYearGap)

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Refresh(context.Background(), orgID, nil)
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return repo.reads.Load() >= workers }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.calls.Load())
}

// ctxFetcher blocks until released or until the ctx it was given is done.
type ctxFetcher struct {
	calls   atomic.Int32
	release chan struct{}
}

func (f *ctxFetcher) FetchReports(ctx context.Context, _ int64) ([]report.YearCorrections, error) {
	f.calls.Add(1)
	select {
	case <-f.release:
		return upstream(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRefresh_CancelledCallerDoesNotFailJoinedRequests(t *testing.T) {
	repo := &countingRepo{MemoryRepository: reporttest.NewMemoryRepository()}
	f := &ctxFetcher{release: make(chan struct{})}
	r := newRefresher(repo, f, report.ScopeYearGap)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()

	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Refresh(firstCtx, orgID, nil)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	type outcome struct {
		periods []report.YearReports
		err     error
	}
	secondDone := make(chan outcome, 1)
	go func() {
		periods, err := r.Refresh(context.Background(), orgID, nil)
		secondDone <- outcome{periods, err}
	}()
	require.Eventually(t, func() bool { return repo.reads.Load() >= 2 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(f.release)
	select {
	case got := <-secondDone:
		require.NoError(t, got.err)
		require.Len(t, got.periods, 1)
		assert.Equal(t, 2023, got.periods[0].Year)
	case <-time.After(time.Second):
		t.Fatal("joined caller did not finish")
	}
	assert.Equal(t, int32(1), f.calls.Load())
}
