package assessment

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/wildfire-analyser/internal/domain"
	"github.com/couchcryptid/wildfire-analyser/internal/observability"
	"github.com/jonboulle/clockwork"
)

// CachedService wraps a Runner with an in-memory LRU cache of succeeded
// reports keyed by request ID and parameter fingerprint, so a reused caller
// ID with different parameters misses. Entries expire after ttl, which must stay
// below the bucket's object lifetime so cached product URLs still resolve.
type CachedService struct {
	inner   Runner
	cache   *lruCache
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
}

// NewCachedService creates a cache decorator around a runner.
func NewCachedService(inner Runner, maxEntries int, ttl time.Duration, metrics *observability.Metrics) *CachedService {
	return &CachedService{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		ttl:     ttl,
		clock:   clockwork.NewRealClock(),
		metrics: metrics,
	}
}

func (c *CachedService) Assess(ctx context.Context, req domain.AssessmentRequest) (domain.Report, error) {
	a, err := req.Validate()
	if err != nil {
		// Let the inner runner produce the failed report.
		return c.inner.Assess(ctx, req)
	}

	key := a.ID + "/" + a.Fingerprint
	now := c.clock.Now()
	if report, ok := c.cache.get(key, now); ok {
		c.metrics.ResultCache.WithLabelValues("hit").Inc()
		return report, nil
	}
	c.metrics.ResultCache.WithLabelValues("miss").Inc()

	report, err := c.inner.Assess(ctx, req)
	if err != nil {
		return report, err
	}
	// Failed reports are not cached so the request can be retried.
	if report.Status == domain.StatusSucceeded {
		c.cache.put(key, report, c.clock.Now().Add(c.ttl))
	}
	return report, nil
}

// lruCache is a simple thread-safe LRU cache of reports with per-entry expiry.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key     string
	value   domain.Report
	expires time.Time
	prev    *entry
	next    *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string, now time.Time) (domain.Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.Report{}, false
	}
	if !now.Before(e.expires) {
		delete(c.entries, key)
		c.remove(e)
		return domain.Report{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.Report, expires time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

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

func (c *lruCache) len() int {
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
