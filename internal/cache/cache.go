// Package cache implements the response cache (§4.8): a TTL- and
// capacity-bounded memoization layer over idempotent upstream GETs, with
// FIFO eviction under capacity pressure and single-flight coalescing of
// concurrent lookups for the same key.
package cache

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Entry is a memoized upstream response.
type Entry struct {
	Status   int
	Body     []byte
	Header   http.Header
	StoredAt time.Time
}

type record struct {
	entry     Entry
	expiresAt time.Time
}

// Cache is safe for concurrent use. The zero value is not usable; use New.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]record
	order    []string // insertion order, oldest first, for FIFO eviction

	group singleflight.Group
}

// New returns a Cache bounding entries to ttl and capacity. A non-positive
// capacity disables storage (every lookup misses).
func New(ttl time.Duration, capacity int) *Cache {
	return &Cache{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]record),
	}
}

// Get returns the cached entry for key if present and unexpired.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Cache) getLocked(key string) (Entry, bool) {
	r, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	if time.Now().After(r.expiresAt) {
		delete(c.entries, key)
		return Entry{}, false
	}
	return r.entry, true
}

// Set stores entry under key, evicting the oldest entry first if the cache
// is at capacity.
func (c *Cache) Set(key string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, entry)
}

func (c *Cache) setLocked(key string, entry Entry) {
	if c.capacity <= 0 {
		return
	}
	if _, exists := c.entries[key]; !exists {
		if len(c.entries) >= c.capacity {
			c.evictOldestLocked()
		}
		// Drop a stale position left by an expired or invalidated entry so
		// the key is ordered by this insertion only.
		for i, k := range c.order {
			if k == key {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = record{entry: entry, expiresAt: time.Now().Add(c.ttl)}
}

func (c *Cache) evictOldestLocked() {
	for len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.entries[oldest]; ok {
			delete(c.entries, oldest)
			return
		}
	}
}

// GetOrFetch returns the cached entry for key, or calls fetch to populate
// it. Concurrent callers for the same key share one fetch call (single-
// flight); all observe the same result.
func (c *Cache) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (Entry, error)) (Entry, error) {
	if entry, ok := c.Get(key); ok {
		return entry, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if entry, ok := c.Get(key); ok {
			return entry, nil
		}
		entry, err := fetch(ctx)
		if err != nil {
			return Entry{}, err
		}
		c.Set(key, entry)
		return entry, nil
	})
	if err != nil {
		return Entry{}, err
	}
	return v.(Entry), nil
}

// InvalidatePrefix drops every cached key that starts with prefix — used
// when a write affects a resource type's collection and item entries.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// Key builds a normalized cache key from method, path, and query
// parameters, per §3 Cache Entry: query parameters are sorted into a
// canonical form so equivalent requests collide regardless of
// client-supplied ordering. authHash scopes the key to the caller's
// credentials, so responses are never shared across identities.
func Key(method, path string, query map[string][]string, authHash string) string {
	var b strings.Builder
	b.WriteString(method)
	b.WriteByte(' ')
	b.WriteString(path)
	b.WriteByte('?')

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		values := append([]string(nil), query[k]...)
		sort.Strings(values)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.Join(values, ","))
	}
	b.WriteByte('#')
	b.WriteString(authHash)
	return b.String()
}
