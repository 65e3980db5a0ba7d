// Package cache memoizes successful GET responses, scoped by identity so
// two principals never observe each other's cached payloads.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Entry is one cached response. Entries are immutable once stored; they
// expire at Deadline or get evicted by explicit invalidation.
type Entry struct {
	Status      int
	ContentType string
	Body        []byte
	StoredAt    time.Time
	Deadline    time.Time
}

// Stats is a point-in-time view for the reporting endpoints.
type Stats struct {
	Keys   int    `json:"keys"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// Cache is a concurrent response cache. The expirable LRU's own TTL is
// sized to the longest configured TTL so it only bounds total entries;
// the actual per-route lifetime is the Deadline checked on read.
type Cache struct {
	lru      *expirable.LRU[string, Entry]
	baseTTL  time.Duration
	routeTTL map[string]time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a cache bounded to maxEntries with the given baseline TTL.
// routeTTL maps path prefixes to TTL overrides, shorter or longer than the
// baseline; the longest matching prefix wins.
func New(maxEntries int, baseTTL time.Duration, routeTTL map[string]time.Duration) *Cache {
	maxTTL := baseTTL
	copied := make(map[string]time.Duration, len(routeTTL))
	for prefix, ttl := range routeTTL {
		copied[normalizePath(prefix)] = ttl
		if ttl > maxTTL {
			maxTTL = ttl
		}
	}
	return &Cache{
		lru:      expirable.NewLRU[string, Entry](maxEntries, nil, maxTTL),
		baseTTL:  baseTTL,
		routeTTL: copied,
	}
}

// Key derives the cache key for a request. The identity subject segment
// keeps entries identity-scoped; anonymous requests share one segment.
func Key(method, rawPath, rawQuery, subject string) string {
	return fmt.Sprintf("%s %s %s", strings.ToUpper(method), normalizeTarget(rawPath, rawQuery), subject)
}

// Get returns the entry for key if present and not past its deadline.
func (c *Cache) Get(key string) (Entry, bool) {
	e, ok := c.lru.Get(key)
	if !ok || !e.Deadline.After(time.Now()) {
		if ok {
			c.lru.Remove(key)
		}
		c.misses.Add(1)
		return Entry{}, false
	}
	c.hits.Add(1)
	return e, true
}

// Put stores a response under key using the route TTL for path. Last write
// wins on a racing Put for the same key.
func (c *Cache) Put(key, path string, e Entry) {
	now := time.Now()
	e.StoredAt = now
	e.Deadline = now.Add(c.TTLFor(path))
	c.lru.Add(key, e)
}

// TTLFor returns the TTL for a path: the longest configured prefix match,
// else the baseline.
func (c *Cache) TTLFor(path string) time.Duration {
	path = normalizePath(path)
	ttl := c.baseTTL
	best := -1
	for prefix, override := range c.routeTTL {
		if len(prefix) > best && strings.HasPrefix(path, prefix) {
			best = len(prefix)
			ttl = override
		}
	}
	return ttl
}

// Invalidate removes every entry whose key matches pattern and reports how
// many were removed.
func (c *Cache) Invalidate(pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("invalid invalidation pattern: %w", err)
	}

	var removed int
	for _, key := range c.lru.Keys() {
		if re.MatchString(key) {
			if c.lru.Remove(key) {
				removed++
			}
		}
	}
	return removed, nil
}

// Sweep reclaims entries past their per-route deadline that the LRU's
// own longer TTL has not yet collected.
func (c *Cache) Sweep(now time.Time) int {
	var swept int
	for _, key := range c.lru.Keys() {
		if e, ok := c.lru.Peek(key); ok && !e.Deadline.After(now) {
			if c.lru.Remove(key) {
				swept++
			}
		}
	}
	return swept
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (c *Cache) Run(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if swept := c.Sweep(now); swept > 0 {
				logger.Debug("cache sweep", slog.Int("reclaimed", swept))
			}
		}
	}
}

func (c *Cache) Stats() Stats {
	return Stats{
		Keys:   c.lru.Len(),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// normalizeTarget canonicalizes path + query so key equality does not
// depend on trailing slashes, path case, or query parameter order.
func normalizeTarget(rawPath, rawQuery string) string {
	path := normalizePath(rawPath)
	if rawQuery == "" {
		return path
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return path + "?" + rawQuery
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(path)
	b.WriteByte('?')
	for i, k := range keys {
		vs := values[k]
		sort.Strings(vs)
		for j, v := range vs {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

func normalizePath(path string) string {
	path = strings.ToLower(path)
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if path == "" {
		path = "/"
	}
	return path
}
