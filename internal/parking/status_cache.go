package parking

import (
	"time"

	"ms-parking/internal/models"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// statusCache keeps recent ACTIVE lookups in process. Misses are not cached,
// so a fresh check-in is visible immediately.
type statusCache struct {
	cache *lru.LRU[string, models.Session]
}

func newStatusCache(size int, ttl time.Duration) *statusCache {
	if size <= 0 || ttl <= 0 {
		return nil
	}
	return &statusCache{cache: lru.NewLRU[string, models.Session](size, nil, ttl)}
}

func (c *statusCache) get(plate string) (*models.Session, bool) {
	if c == nil {
		return nil, false
	}
	s, ok := c.cache.Get(plate)
	if !ok {
		return nil, false
	}
	return &s, true
}

func (c *statusCache) put(s *models.Session) {
	if c == nil || s == nil {
		return
	}
	c.cache.Add(s.PlateNumber, *s)
}

func (c *statusCache) evict(plate string) {
	if c == nil {
		return
	}
	c.cache.Remove(plate)
}
