// ABOUTME: Tests for the dedupe cache that suppresses repeated event deliveries.
// ABOUTME: Validates first-seen semantics, FIFO eviction, optional TTL and concurrency safety.

package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_FirstSeen(t *testing.T) {
	cache := New(0, 100)
	defer cache.Close()

	assert.True(t, cache.FirstSeen("Ev1"))
	assert.False(t, cache.FirstSeen("Ev1"))
	assert.False(t, cache.FirstSeen("Ev1"))
	assert.True(t, cache.FirstSeen("Ev2"))
}

func TestCache_RepeatDoesNotGrow(t *testing.T) {
	cache := New(0, 100)
	defer cache.Close()

	cache.FirstSeen("key-1")
	cache.FirstSeen("key-2")
	cache.FirstSeen("key-1")

	assert.True(t, held(cache, "key-1"))
	assert.True(t, held(cache, "key-2"))
	assert.False(t, held(cache, "key-3"))
	assert.Equal(t, 2, cache.Len())
}

func TestCache_WithinCapacityAllRemembered(t *testing.T) {
	const capacity = 50
	cache := New(0, capacity)
	defer cache.Close()

	for i := 0; i < capacity; i++ {
		assert.True(t, cache.FirstSeen(fmt.Sprintf("ev-%d", i)))
	}
	for i := 0; i < capacity; i++ {
		assert.True(t, held(cache, fmt.Sprintf("ev-%d", i)), "ev-%d should be remembered", i)
	}
	assert.Equal(t, capacity, cache.Len())
}

func TestCache_EvictsOldestInserted(t *testing.T) {
	const capacity = 3
	cache := New(0, capacity)
	defer cache.Close()

	cache.FirstSeen("a")
	cache.FirstSeen("b")
	cache.FirstSeen("c")

	// a repeat must not refresh a's position
	assert.False(t, cache.FirstSeen("a"))

	assert.True(t, cache.FirstSeen("d"))

	assert.False(t, held(cache, "a"), "oldest id should be evicted")
	assert.True(t, held(cache, "b"))
	assert.True(t, held(cache, "c"))
	assert.True(t, held(cache, "d"))
	assert.Equal(t, capacity, cache.Len())

	// the evicted id is new again
	assert.True(t, cache.FirstSeen("a"))
	assert.False(t, held(cache, "b"))
}

func TestCache_TTLExpiry(t *testing.T) {
	cache := New(time.Minute, 100)
	defer cache.Close()

	now := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return now }

	assert.True(t, cache.FirstSeen("ev"))
	assert.True(t, held(cache, "ev"))

	now = now.Add(59 * time.Second)
	assert.False(t, cache.FirstSeen("ev"))

	now = now.Add(2 * time.Second)
	assert.False(t, held(cache, "ev"))
	assert.True(t, cache.FirstSeen("ev"), "expired id is treated as new")
	assert.Equal(t, 1, cache.Len())
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	cache := New(0, 100)
	defer cache.Close()

	now := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return now }

	cache.FirstSeen("ev")
	now = now.Add(365 * 24 * time.Hour)
	assert.True(t, held(cache, "ev"))
}

func TestCache_RunCleanup(t *testing.T) {
	cache := New(time.Minute, 100)
	defer cache.Close()

	now := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return now }

	cache.FirstSeen("old")
	now = now.Add(30 * time.Second)
	cache.FirstSeen("new")
	now = now.Add(45 * time.Second)

	cache.runCleanup()

	assert.Equal(t, 1, cache.Len())
	assert.False(t, held(cache, "old"))
	assert.True(t, held(cache, "new"))
}

func TestCache_NonPositiveSize(t *testing.T) {
	cache := New(0, 0)
	defer cache.Close()

	cache.FirstSeen("a")
	cache.FirstSeen("b")
	assert.Equal(t, 1, cache.Len())
	assert.True(t, held(cache, "b"))
}

func TestCache_ConcurrentFirstSeen(t *testing.T) {
	cache := New(0, 1000)
	defer cache.Close()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cache.FirstSeen("same-event") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one delivery wins")
}

func TestCache_Close_Idempotent(t *testing.T) {
	cache := New(time.Minute, 10)
	cache.Close()
	cache.Close()
}

// held reports whether key is present and unexpired without recording it.
func held(c *Cache, key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.seen[key]
	return ok && !c.expired(entry)
}
