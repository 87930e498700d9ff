// ABOUTME: Cached chat user profiles shaped as the assistant's userContext
// ABOUTME: Bounded LRU with singleflight so concurrent first messages trigger one lookup

package profile

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/2389/assistant-relay/internal/slack"
)

// DefaultMaxEntries bounds the cache when no size is configured.
const DefaultMaxEntries = 10_000

// Lookup fetches a user's profile from the chat platform.
type Lookup interface {
	UserInfo(ctx context.Context, user string) (*slack.UserProfile, error)
}

// Cache resolves and remembers user contexts.
type Cache struct {
	lookup Lookup
	cache  *lru.Cache[string, map[string]any]
	group  singleflight.Group
	logger *slog.Logger
}

// New creates a Cache holding at most maxEntries users.
func New(lookup Lookup, maxEntries int, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	cache, err := lru.New[string, map[string]any](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("creating profile cache: %w", err)
	}
	return &Cache{
		lookup: lookup,
		cache:  cache,
		logger: logger.With("component", "profiles"),
	}, nil
}

// Get returns the user's context. A failed lookup is logged and yields an
// empty context which is not cached, so the next message retries.
func (c *Cache) Get(ctx context.Context, user string) map[string]any {
	if uc, ok := c.cache.Get(user); ok {
		return maps.Clone(uc)
	}

	v, err, _ := c.group.Do(user, func() (any, error) {
		p, err := c.lookup.UserInfo(ctx, user)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("no profile for %s", user)
		}
		uc := FromProfile(p)
		c.cache.Add(user, uc)
		return uc, nil
	})
	if err != nil {
		c.logger.Error("profile lookup failed", "user", user, "error", err)
		return map[string]any{}
	}
	return maps.Clone(v.(map[string]any))
}

// Update replaces the cached context for user, e.g. with one returned by a
// fulfillment webhook.
func (c *Cache) Update(user string, uc map[string]any) {
	c.cache.Add(user, maps.Clone(uc))
}

// Len returns the number of cached users.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// FromProfile shapes a profile as a userContext.
func FromProfile(p *slack.UserProfile) map[string]any {
	first, last := splitName(p.RealName)
	return map[string]any{
		"name": map[string]any{
			"first": first,
			"last":  last,
		},
		"email":    p.Email,
		"timezone": p.Timezone,
	}
}

// Timezone extracts the timezone from a userContext.
func Timezone(uc map[string]any) string {
	tz, _ := uc["timezone"].(string)
	return tz
}

func splitName(name string) (string, string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}
