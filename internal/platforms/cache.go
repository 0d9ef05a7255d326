package platforms

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/spigell/job-autopilot/internal/jobs"
)

// DefaultCacheTTL is the lifetime of in-memory adapter results.
const DefaultCacheTTL = 15 * time.Minute

type entry[V any] struct {
	value   V
	expires time.Time
}

// Cache is a small in-memory TTL cache keyed by string.
type Cache[V any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry[V]
}

// NewCache returns a cache whose entries live for ttl.
func NewCache[V any](ttl time.Duration) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache[V]{ttl: ttl, now: time.Now, entries: make(map[string]entry[V])}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expires: c.now().Add(c.ttl)}
}

// QueryKey is a stable cache key for a query.
func QueryKey(q jobs.Query) string {
	data, _ := json.Marshal(q)
	return string(data)
}
