package cache

import (
	"strings"
	"time"

	catalogdomain "github.com/smallbiznis/esimmock/internal/catalog/domain"
)

const defaultCatalogTTL = 5 * time.Minute

// CatalogCache stores resolved catalog entries for the provisioning hot path.
type CatalogCache interface {
	GetEntry(planID string) (catalogdomain.Entry, bool)
	SetEntry(planID string, entry catalogdomain.Entry)
	Invalidate(planID string)
	Reset()
}

type catalogCache struct {
	entries Cache[string, catalogdomain.Entry]
	ttl     time.Duration
}

func NewCatalogCache() CatalogCache {
	return &catalogCache{
		entries: NewTTLCache[string, catalogdomain.Entry](),
		ttl:     defaultCatalogTTL,
	}
}

func (c *catalogCache) GetEntry(planID string) (catalogdomain.Entry, bool) {
	return c.entries.Get(cacheKey(planID))
}

func (c *catalogCache) SetEntry(planID string, entry catalogdomain.Entry) {
	if strings.TrimSpace(entry.PlanID) == "" {
		return
	}
	c.entries.Set(cacheKey(planID), entry, c.ttl)
}

func (c *catalogCache) Invalidate(planID string) {
	c.entries.Delete(cacheKey(planID))
}

func (c *catalogCache) Reset() {
	c.entries.Purge()
}

// cacheKey matches the store lookup: plan ids and slugs compare exactly,
// only surrounding whitespace is ignored.
func cacheKey(parts ...string) string {
	normalized := make([]string, 0, len(parts))
	for _, p := range parts {
		normalized = append(normalized, strings.TrimSpace(p))
	}
	return strings.Join(normalized, ":")
}
