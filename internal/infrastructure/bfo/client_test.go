package bfo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bfoproxy/internal/core/apperror"
	"bfoproxy/internal/domain/cooldown"
)

const testUserAgent = "Mozilla/5.0 test"

const searchBody = `{
  "content": [
    {"id": 6622458, "inn": "7707083893", "shortName": "ПАО СБЕРБАНК", "fullName": "ПУБЛИЧНОЕ АКЦИОНЕРНОЕ ОБЩЕСТВО \"СБЕРБАНК РОССИИ\"",
     "ogrn": "1027700132195", "index": 117312, "region": "Москва", "city": "Москва"},
    {"id": 1, "inn": "7707083893", "shortName": "older"}
  ],
  "totalElements": 2
}`

const reportsBody = `[
  {"id": 10, "period": "2023", "typeCorrections": [
    {"correction": {"id": 100, "datePresent": "2024-03-28", "requiredAudit": true,
      "bfoOrganizationInfo": {"okved": "64.19"}, "balance": {"current1600": 1000}, "financialResult": {"current2400": 50}}},
    {"correction": {"id": 101, "datePresent": "2024-04-15", "requiredAudit": true,
      "bfoOrganizationInfo": null, "balance": {"current1600": 1100}, "financialResult": null}}
  ]},
  {"id": 9, "period": 2022, "typeCorrections": [
    {"correction": {"id": 90, "datePresent": "2023-03-30", "requiredAudit": false,
      "bfoOrganizationInfo": {}, "balance": {}, "financialResult": {}}}
  ]}
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *cooldown.Gate, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	gate := cooldown.NewGate(cooldown.NewMemoryFlagStore(), cooldown.Config{Key: "bfo:timeout", Window: 180 * time.Second})
	c, err := NewClient(Config{BaseURL: srv.URL + "/", UserAgent: testUserAgent, Timeout: 200 * time.Millisecond}, gate)
	require.NoError(t, err)
	return c, gate, &hits
}

func TestSearchByTaxID(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/advanced-search/organizations/search", r.URL.Path)
		assert.Equal(t, "7707083893", r.URL.Query().Get("query"))
		assert.Equal(t, "0", r.URL.Query().Get("page"))
		assert.Equal(t, "20", r.URL.Query().Get("size"))
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(searchBody))
	})

	p, err := c.SearchByTaxID(context.Background(), "7707083893")
	require.NoError(t, err)

	assert.Equal(t, int64(6622458), p.ID)
	assert.Equal(t, "ПАО СБЕРБАНК", p.ShortName)
	assert.Equal(t, "1027700132195", p.OGRN)
	assert.Equal(t, "117312", p.Index)
	assert.Equal(t, "Москва", p.City)
}

func TestSearchByTaxID_NoMatch(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content": []}`))
	})

	_, err := c.SearchByTaxID(context.Background(), "7736207543")
	assert.True(t, apperror.IsNotFound(err))
}

func TestFetchReports(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/nbo/organizations/6622458/bfo", r.URL.Path)
		_, _ = w.Write([]byte(reportsBody))
	})

	years, err := c.FetchReports(context.Background(), 6622458)
	require.NoError(t, err)

	require.Len(t, years, 2)
	assert.Equal(t, 2023, years[0].Year)
	require.Len(t, years[0].Corrections, 2)
	first := years[0].Corrections[0]
	assert.Equal(t, time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC), first.PresentDate)
	assert.True(t, first.RequiredAudit)
	assert.JSONEq(t, `{"okved": "64.19"}`, string(first.OrganizationSheet))
	assert.JSONEq(t, `{"current1600": 1000}`, string(first.BalanceSheet))
	assert.Nil(t, years[0].Corrections[1].OrganizationSheet)
	assert.Equal(t, 2022, years[1].Year)
}

func TestFetchReports_MalformedDate(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"period": 2023, "typeCorrections": [{"correction": {"datePresent": "28.03.2024"}}]}]`))
	})

	_, err := c.FetchReports(context.Background(), 1)
	assert.True(t, apperror.HasCode(err, apperror.CodeUpstream))
}

func TestTooManyRequests_TripsGate(t *testing.T) {
	c, gate, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	ctx := context.Background()

	_, err := c.SearchByTaxID(ctx, "7707083893")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeRateLimited, appErr.Code)
	assert.Equal(t, 180, appErr.Details["remaining_seconds"])

	remaining, limited := gate.Check(ctx)
	assert.True(t, limited)
	assert.Positive(t, remaining)

	_, err = c.FetchReports(ctx, 6622458)
	assert.True(t, apperror.IsRateLimited(err))
	assert.Equal(t, int32(1), hits.Load(), "second call must not reach the network")
}

func TestUpstreamError_PassesStatusAndBody(t *testing.T) {
	c, gate, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	})

	_, err := c.FetchReports(context.Background(), 1)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUpstream, appErr.Code)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.HTTPStatus)
	assert.Equal(t, "maintenance", appErr.Details["body"])

	_, limited := gate.Check(context.Background())
	assert.False(t, limited)
}

func TestTimeout_DoesNotTripGate(t *testing.T) {
	release := make(chan struct{})
	c, gate, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	_, err := c.SearchByTaxID(context.Background(), "7707083893")
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeTimeout, appErr.Code)
	assert.Equal(t, http.StatusGatewayTimeout, appErr.HTTPStatus)

	_, limited := gate.Check(context.Background())
	assert.False(t, limited)
}

func TestNewClient_InvalidProxy(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://x", ProxyURL: "://bad"}, nil)
	assert.Error(t, err)
}
