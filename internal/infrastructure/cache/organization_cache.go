package cache

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"bfoproxy/internal/domain/organization"
)

// OrganizationCache maps tax ids to organizations in process memory.
// Each entry costs 1, so maxItems bounds the number of cached organizations.
type OrganizationCache struct {
	c   *ristretto.Cache[string, *organization.Organization]
	ttl time.Duration
}

var _ organization.Cache = (*OrganizationCache)(nil)

// NewOrganizationCache creates a ristretto-backed cache.
func NewOrganizationCache(maxItems int64, ttl time.Duration) (*OrganizationCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, *organization.Organization]{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &OrganizationCache{c: c, ttl: ttl}, nil
}

// Get retrieves an organization by tax id.
func (c *OrganizationCache) Get(taxID string) (*organization.Organization, bool) {
	return c.c.Get(taxID)
}

// Set stores org under its tax id. Writes become visible asynchronously.
func (c *OrganizationCache) Set(org *organization.Organization) {
	if c.ttl > 0 {
		c.c.SetWithTTL(org.TaxID, org, 1, c.ttl)
		return
	}
	c.c.Set(org.TaxID, org, 1)
}

// Wait blocks until pending writes are applied.
func (c *OrganizationCache) Wait() {
	c.c.Wait()
}

// Close shuts down the cache and releases resources.
func (c *OrganizationCache) Close() {
	c.c.Close()
}
