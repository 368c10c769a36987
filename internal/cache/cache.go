// Package cache implements the process-local read-through response cache that
// sits in front of article and category reads.
package cache

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/JakeFAU/magazine-cms/internal/metrics"
)

// Well-known keys. Keys are a deterministic function of request shape.
const (
	AllArticlesKey = "articles:all"
	CategoriesKey  = "categories"

	articlePrefix = "article:"
	pagePrefix    = "articles:page:"
)

// ErrInvalidSize is returned when the cache is constructed without capacity.
var ErrInvalidSize = errors.New("cache: max entries must be > 0")

// Clock supplies the current time so expiry can be tested deterministically.
type Clock interface {
	Now() time.Time
}

type entry struct {
	value    any
	storedAt time.Time
}

// Cache is a TTL-bounded, size-bounded memoization layer safe for concurrent
// use. Expired entries are dropped lazily on read.
type Cache struct {
	mu    sync.Mutex
	lru   *simplelru.LRU[string, entry]
	ttl   time.Duration
	clock Clock
	// generation advances on every invalidation.
	generation uint64
}

// New builds a cache whose entries live for ttl. When maxEntries is reached the
// least recently used entry is evicted to make room.
func New(ttl time.Duration, maxEntries int, clock Clock) (*Cache, error) {
	if maxEntries <= 0 {
		return nil, ErrInvalidSize
	}
	lru, err := simplelru.NewLRU[string, entry](maxEntries, nil)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: lru, ttl: ttl, clock: clock}, nil
}

// ArticleKey identifies a single article payload.
func ArticleKey(id int64) string {
	return articlePrefix + strconv.FormatInt(id, 10)
}

// PageKey identifies one page of the latest-articles listing.
func PageKey(page, limit int) string {
	return pagePrefix + strconv.Itoa(page) + ":limit:" + strconv.Itoa(limit)
}

// Get returns the value stored under key. An expired entry behaves exactly
// like a miss.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	e, ok := c.lru.Get(key)
	if ok && !c.clock.Now().Before(e.storedAt.Add(c.ttl)) {
		c.lru.Remove(key)
		ok = false
	}
	c.mu.Unlock()

	metrics.ObserveCacheLookup(kind(key), ok)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key, replacing any previous entry. Set never fails;
// under pressure the least recently used entry is evicted instead.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, entry{value: value, storedAt: c.clock.Now()})
}

// Generation returns a stamp to take before reading the backing store. Pass
// it to SetIfCurrent so a read that raced with a write is not stored.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// SetIfCurrent stores value under key only if no invalidation happened since
// gen was taken. It reports whether the value was stored.
func (c *Cache) SetIfCurrent(gen uint64, key string, value any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.lru.Add(key, entry{value: value, storedAt: c.clock.Now()})
	return true
}

// Delete removes the given keys and reports how many were present.
func (c *Cache) Delete(keys ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	removed := 0
	for _, key := range keys {
		if c.lru.Remove(key) {
			removed++
		}
	}
	return removed
}

// InvalidateArticle purges the single-article entry for id.
func (c *Cache) InvalidateArticle(id int64) int {
	n := c.Delete(ArticleKey(id))
	metrics.ObserveCacheInvalidation("article", n)
	return n
}

// InvalidateAggregates purges the full listing and every paginated listing,
// leaving single-article and category entries untouched.
func (c *Cache) InvalidateAggregates() int {
	c.mu.Lock()
	c.generation++
	removed := 0
	for _, key := range c.lru.Keys() {
		if key == AllArticlesKey || strings.HasPrefix(key, pagePrefix) {
			if c.lru.Remove(key) {
				removed++
			}
		}
	}
	c.mu.Unlock()

	metrics.ObserveCacheInvalidation("aggregates", removed)
	return removed
}

// InvalidateCategories purges the cached category listing.
func (c *Cache) InvalidateCategories() int {
	n := c.Delete(CategoriesKey)
	metrics.ObserveCacheInvalidation("categories", n)
	return n
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func kind(key string) string {
	switch {
	case strings.HasPrefix(key, articlePrefix):
		return "article"
	case key == AllArticlesKey:
		return "articles"
	case strings.HasPrefix(key, pagePrefix):
		return "page"
	case key == CategoriesKey:
		return "categories"
	default:
		return "other"
	}
}
