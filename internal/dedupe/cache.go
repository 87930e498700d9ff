// ABOUTME: Thread-safe bounded cache for deduplicating inbound event deliveries.
// ABOUTME: Evicts the oldest-inserted id first; optional TTL for long-lived deployments.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry stores the insertion time and list element for a cached key.
type cacheEntry struct {
	timestamp time.Time
	element   *list.Element
}

// Cache is a thread-safe, size-limited "seen before" set of event ids.
// Uses a doubly-linked list to maintain insertion order for O(1) eviction.
// With a zero TTL entries never expire and no background goroutine runs.
type Cache struct {
	mu      sync.RWMutex
	seen    map[string]*cacheEntry
	order   *list.List // keys in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a dedupe cache holding at most maxSize ids.
// A positive ttl starts a background goroutine that drops expired ids.
func New(ttl time.Duration, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	c := &Cache{
		seen:    make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	if ttl > 0 {
		go c.cleanup()
	}
	return c
}

// FirstSeen records key and returns true the first time it is offered.
// Repeat offers return false and do not re-record the key, so a repeat never
// refreshes its eviction position. An expired key counts as new.
func (c *Cache) FirstSeen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.seen[key]
	if ok && !c.expired(entry) {
		return false
	}
	if ok {
		c.removeLocked(key, entry)
	}

	c.markLocked(key)
	return true
}

// Len returns the number of ids currently held.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.seen)
}

// markLocked inserts a new key. Must be called with mu held.
func (c *Cache) markLocked(key string) {
	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.seen[key] = &cacheEntry{
		timestamp: c.now(),
		element:   elem,
	}
}

func (c *Cache) expired(entry *cacheEntry) bool {
	return c.ttl > 0 && c.now().Sub(entry.timestamp) >= c.ttl
}

// evictOldest removes the oldest entry from the cache.
// Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

func (c *Cache) removeLocked(key string, entry *cacheEntry) {
	c.order.Remove(entry.element)
	delete(c.seen, key)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries from the cache.
func (c *Cache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.seen {
		if c.expired(entry) {
			c.removeLocked(key, entry)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
