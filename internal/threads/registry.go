// ABOUTME: Thread membership registry used to gate replies in public threads
// ABOUTME: Bounded by an LRU so long-running processes do not grow without limit

package threads

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxThreads bounds the registry when no size is configured.
const DefaultMaxThreads = 10_000

// Registry records which users have talked to the bot in a thread.
// The least recently touched thread is evicted when the registry is full.
type Registry struct {
	mu      sync.Mutex
	threads *lru.Cache[string, map[string]struct{}]
}

// New creates a registry holding at most maxThreads threads.
func New(maxThreads int) (*Registry, error) {
	if maxThreads <= 0 {
		maxThreads = DefaultMaxThreads
	}
	cache, err := lru.New[string, map[string]struct{}](maxThreads)
	if err != nil {
		return nil, fmt.Errorf("creating thread cache: %w", err)
	}
	return &Registry{threads: cache}, nil
}

// Record adds user to the thread's member set. Recording twice is a no-op.
func (r *Registry) Record(threadKey, user string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.threads.Get(threadKey)
	if !ok {
		members = make(map[string]struct{})
		r.threads.Add(threadKey, members)
	}
	if user != "" {
		members[user] = struct{}{}
	}
}

// Tracked reports whether the bot has replied in the thread.
func (r *Registry) Tracked(threadKey string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.threads.Contains(threadKey)
}

// IsMember reports whether user has been recorded in the thread.
func (r *Registry) IsMember(threadKey, user string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.threads.Peek(threadKey)
	if !ok {
		return false
	}
	_, ok = members[user]
	return ok
}

// Len returns the number of tracked threads.
func (r *Registry) Len() int {
	return r.threads.Len()
}
