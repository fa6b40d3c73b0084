package leak

import (
	"container/list"
	"sync"
	"time"
)

// trailCache bounds the memory a Detector spends remembering which
// rendered trails it has already reported, so a long-running process
// leaking the same call site repeatedly does not retain one string
// per occurrence forever. Entries expire after ttl and the cache
// additionally evicts least-recently-seen entries once it holds more
// than capacity distinct trails. Modeled on the teacher's
// internal/events ErrorDeduplicator.
type trailCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently seen
	now      func() time.Time
}

type trailCacheEntry struct {
	key  string
	seen time.Time
}

func newTrailCache(ttl time.Duration, capacity int) *trailCache {
	if capacity < 1 {
		capacity = 1
	}
	return &trailCache{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// seenBefore reports whether key was already recorded within ttl. If
// not, it records key as seen now and returns false. The zero value
// of trailCache's ttl means entries never expire by age, only by
// capacity eviction.
func (c *trailCache) seenBefore(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*trailCacheEntry)
		if c.ttl <= 0 || now.Sub(entry.seen) < c.ttl {
			entry.seen = now
			c.order.MoveToFront(el)
			return true
		}
		// Expired: treat as a fresh observation.
		c.order.Remove(el)
		delete(c.entries, key)
	}

	el := c.order.PushFront(&trailCacheEntry{key: key, seen: now})
	c.entries[key] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*trailCacheEntry).key)
	}

	return false
}

func (c *trailCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
