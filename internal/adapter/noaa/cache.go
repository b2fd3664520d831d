package noaa

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/metar-etl-service/internal/metar"
	"github.com/couchcryptid/metar-etl-service/internal/observability"
)

// CachedFetcher wraps a ReportFetcher with an in-memory LRU cache whose
// entries expire after a TTL. Stations report roughly hourly, so repeated
// lookups inside the TTL are served from memory.
type CachedFetcher struct {
	inner   metar.ReportFetcher
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedFetcher creates a cache decorator around a fetcher.
func NewCachedFetcher(inner metar.ReportFetcher, maxEntries int, ttl time.Duration, metrics *observability.Metrics) *CachedFetcher {
	return newCachedFetcher(inner, maxEntries, ttl, metrics, clockwork.NewRealClock())
}

func newCachedFetcher(inner metar.ReportFetcher, maxEntries int, ttl time.Duration, metrics *observability.Metrics, clock clockwork.Clock) *CachedFetcher {
	return &CachedFetcher{
		inner:   inner,
		cache:   newLRUCache(maxEntries, ttl, clock),
		metrics: metrics,
	}
}

func (c *CachedFetcher) FetchReport(ctx context.Context, station string) (string, error) {
	if line, ok := c.cache.get(station); ok {
		c.metrics.FetchCache.WithLabelValues("hit").Inc()
		return line, nil
	}
	c.metrics.FetchCache.WithLabelValues("miss").Inc()

	line, err := c.inner.FetchReport(ctx, station)
	if err != nil {
		// Errors, including not-found, are never cached so a station that
		// starts reporting is picked up on the next lookup.
		return "", err
	}
	c.cache.put(station, line)
	return line, nil
}

// lruCache is a thread-safe LRU cache of report lines with per-entry expiry.
type lruCache struct {
	maxEntries int
	ttl        time.Duration
	clock      clockwork.Clock
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key     string
	value   string
	expires time.Time
	prev    *entry
	next    *entry
}

func newLRUCache(maxEntries int, ttl time.Duration, clock clockwork.Clock) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if !c.clock.Now().Before(e.expires) {
		delete(c.entries, key)
		c.remove(e)
		return "", false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.clock.Now().Add(c.ttl)
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expires = expires
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, expires: expires}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
