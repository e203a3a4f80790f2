package state

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// RefreshFunc fetches the current name list for a cache key from an
// external collaborator.
type RefreshFunc func(ctx context.Context) ([]string, error)

type cacheEntry struct {
	names     []string
	fetchedAt time.Time
}

// SuggestionCache keeps TTL-bounded name lists (containers, torrents) for
// argument completion. Concurrent refreshes of the same key are coalesced
// into a single collaborator call; a failed refresh degrades to an empty
// list and leaves any previous entry untouched.
type SuggestionCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	group   singleflight.Group
	now     func() time.Time
}

// NewSuggestionCache creates a cache with the given TTL.
func NewSuggestionCache(ttl time.Duration) *SuggestionCache {
	return &SuggestionCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// GetOrRefresh returns the cached names for key, refreshing first if the
// entry is absent or older than the TTL. Returns an empty list when the
// refresh fails; suggestions are best-effort and must never fail the
// command that wanted them.
func (c *SuggestionCache) GetOrRefresh(ctx context.Context, key string, refresh RefreshFunc) []string {
	if names, ok := c.fresh(key); ok {
		return names
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// A coalesced waiter may arrive after the winner already stored
		// the result; don't fetch twice.
		if names, ok := c.fresh(key); ok {
			return names, nil
		}
		names, err := refresh(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, names)
		return normalizeNames(names), nil
	})
	if err != nil {
		slog.Warn("suggestion cache refresh failed", "key", key, "error", err)
		return nil
	}
	return v.([]string)
}

// Cached returns the current entry without refreshing, fresh or not.
func (c *SuggestionCache) Cached(key string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	return append([]string(nil), entry.names...)
}

// Invalidate drops an entry so the next GetOrRefresh refetches. Called
// after commands that change the underlying set (add/delete torrent).
func (c *SuggestionCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Suggest ranks cached names against query: prefix matches first, then
// substring matches, capped at limit. An empty query returns the first
// limit names sorted.
func (c *SuggestionCache) Suggest(key, query string, limit int) []string {
	names := c.Cached(key)
	if len(names) == 0 || limit <= 0 {
		return nil
	}

	q := strings.ToLower(strings.TrimSpace(query))
	var ranked []string
	if q == "" {
		sort.Strings(names)
		ranked = names
	} else {
		var starts, contains []string
		for _, n := range names {
			ln := strings.ToLower(n)
			switch {
			case strings.HasPrefix(ln, q):
				starts = append(starts, n)
			case strings.Contains(ln, q):
				contains = append(contains, n)
			}
		}
		ranked = append(starts, contains...)
	}

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func (c *SuggestionCache) fresh(key string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || c.now().Sub(entry.fetchedAt) > c.ttl {
		return nil, false
	}
	return append([]string(nil), entry.names...), true
}

func (c *SuggestionCache) store(key string, names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{names: normalizeNames(names), fetchedAt: c.now()}
}

// normalizeNames trims whitespace and drops empties.
func normalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}
