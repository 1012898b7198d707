package visualcrossing

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/streetlight-predictor/internal/domain"
)

// Source is the provider interface the cache decorates.
type Source interface {
	Current(ctx context.Context, location string) (domain.CurrentWeather, error)
	Today(ctx context.Context, location string) ([]domain.HourlyConditions, error)
}

// CachedSource wraps a Source with an in-memory LRU cache whose entries
// expire after ttl. Errors are never cached.
type CachedSource struct {
	inner   Source
	current *lruCache[domain.CurrentWeather]
	today   *lruCache[[]domain.HourlyConditions]
}

// NewCachedSource creates a cache decorator around a weather source.
func NewCachedSource(inner Source, maxEntries int, ttl time.Duration, clock clockwork.Clock) *CachedSource {
	return &CachedSource{
		inner:   inner,
		current: newLRUCache[domain.CurrentWeather](maxEntries, ttl, clock),
		today:   newLRUCache[[]domain.HourlyConditions](maxEntries, ttl, clock),
	}
}

func (c *CachedSource) Current(ctx context.Context, location string) (domain.CurrentWeather, error) {
	if cw, ok := c.current.get(location); ok {
		return cw, nil
	}
	cw, err := c.inner.Current(ctx, location)
	if err != nil {
		return cw, err
	}
	c.current.put(location, cw)
	return cw, nil
}

func (c *CachedSource) Today(ctx context.Context, location string) ([]domain.HourlyConditions, error) {
	if hours, ok := c.today.get(location); ok {
		return hours, nil
	}
	hours, err := c.inner.Today(ctx, location)
	if err != nil {
		return hours, err
	}
	c.today.put(location, hours)
	return hours, nil
}

// lruCache is a thread-safe LRU cache with per-entry expiry.
type lruCache[V any] struct {
	maxEntries int
	ttl        time.Duration
	clock      clockwork.Clock
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key     string
	value   V
	expires time.Time
	prev    *entry[V]
	next    *entry[V]
}

func newLRUCache[V any](maxEntries int, ttl time.Duration, clock clockwork.Clock) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !c.clock.Now().Before(e.expires) {
		delete(c.entries, key)
		c.remove(e)
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.clock.Now().Add(c.ttl)
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expires = expires
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value, expires: expires}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
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

func (c *lruCache[V]) remove(e *entry[V]) {
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

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
