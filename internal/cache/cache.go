// Package cache implements the unified TTL cache: a single in-process
// cache with lazy expiry, coalesced compute-on-miss, and substring-pattern
// invalidation, plus a category-aware layer on top that prefixes keys and
// assigns per-category default TTLs.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// entry is one cached value plus its bookkeeping.
type entry struct {
	value      any
	insertedAt time.Time
	ttl        time.Duration
	hits       int
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) > e.ttl
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits          int
	Misses        int
	Evictions     int
	Refreshes     int
	Size          int
	HitRate       float64
	TotalRequests int
}

// Cache is the base TTL cache. It is safe for concurrent
// use by multiple goroutines.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	defaultTTL time.Duration
	disabled   bool

	group singleflight.Group

	hits      int
	misses    int
	evictions int
	refreshes int
}

// New builds a Cache whose entries default to defaultTTL when Set is called
// without an explicit TTL.
func New(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &Cache{
		entries:    make(map[string]*entry),
		defaultTTL: defaultTTL,
	}
}

// NewDisabled builds a pass-through Cache: every Get misses, Set is a
// no-op, and GetOrCompute always runs its compute (still coalesced).
// Used when caching is switched off in configuration without making every
// call site branch on a nil cache.
func NewDisabled() *Cache {
	c := New(0)
	c.disabled = true
	return c
}

// Get returns the cached value for key, or ok=false on miss or expiry.
// An expired entry is evicted eagerly and counted as both a miss and an
// eviction, matching the "lazy expiry checked on read" contract.
func (c *Cache) Get(key string) (any, bool) {
	if c.disabled {
		return nil, false
	}
	now := time.Now()

	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()

	if !found {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	if e.expired(now) {
		c.mu.Lock()
		// re-check under the write lock in case another goroutine refreshed it
		if cur, ok := c.entries[key]; ok && cur == e {
			delete(c.entries, key)
			c.evictions++
		}
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	e.hits++
	c.hits++
	c.mu.Unlock()
	return e.value, true
}

// Set stores value under key with the given ttl; ttl <= 0 uses the cache's
// default TTL.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if c.disabled {
		return
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{value: value, insertedAt: time.Now(), ttl: ttl}
}

// Invalidate removes every key containing pattern as a substring, or every
// key when pattern is empty. It returns the number of entries removed and
// is idempotent: a repeated call with no newly-matching keys removes zero.
func (c *Cache) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pattern == "" {
		n := len(c.entries)
		c.entries = make(map[string]*entry)
		return n
	}

	removed := 0
	for k := range c.entries {
		if strings.Contains(k, pattern) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// CleanupExpired sweeps the whole map and evicts anything past its TTL,
// independent of Get-triggered lazy expiry. Intended to be called
// periodically (e.g. from a cron job) so memory doesn't grow unbounded
// between reads of a key.
func (c *Cache) CleanupExpired() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	c.evictions += removed
	return removed
}

// ComputeFunc produces the value to cache on a miss.
type ComputeFunc func() (any, error)

// GetOrCompute returns the cached value for key, computing and storing it on
// miss. Concurrent misses for the same key are coalesced via singleflight so
// only one compute call runs; every waiter observes its result, including
// its error. A failing compute is never cached, so the next call retries.
// force=true skips the cache lookup and always recomputes (still coalesced
// and still stored under ttl on success).
func (c *Cache) GetOrCompute(key string, compute ComputeFunc, ttl time.Duration, force bool) (any, error) {
	if !force {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		return compute()
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.mu.Lock()
		c.refreshes++
		c.mu.Unlock()
	}
	c.Set(key, v, ttl)
	return v, nil
}

// AsyncComputeFunc is the context-aware variant used by async call sites
// (repository/service methods that hit the database).
type AsyncComputeFunc func(ctx context.Context) (any, error)

// GetOrComputeAsync is GetOrCompute's context-aware twin: identical
// coalescing semantics, but the compute function may observe cancellation.
func (c *Cache) GetOrComputeAsync(ctx context.Context, key string, compute AsyncComputeFunc, ttl time.Duration, force bool) (any, error) {
	return c.GetOrCompute(key, func() (any, error) {
		return compute(ctx)
	}, ttl, force)
}

// Stats returns a snapshot of the cache's counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		Evictions:     c.evictions,
		Refreshes:     c.refreshes,
		Size:          len(c.entries),
		HitRate:       rate,
		TotalRequests: total,
	}
}

// Category tags a LayeredCache key prefix with its own default TTL.
type Category string

const (
	CategoryStatistics  Category = "statistics"
	CategoryReview      Category = "review"
	CategorySearch      Category = "search"
	CategoryKnowledge   Category = "knowledge"
	CategoryPreferences Category = "preferences"
	CategoryLimitStatus Category = "limit_status"
	CategoryDailyStats  Category = "daily_stats"
)

var categoryTTL = map[Category]time.Duration{
	CategoryStatistics:  60 * time.Second,
	CategoryReview:      120 * time.Second,
	CategorySearch:      180 * time.Second,
	CategoryKnowledge:   300 * time.Second,
	CategoryPreferences: 600 * time.Second,
	CategoryLimitStatus: 60 * time.Second,
	CategoryDailyStats:  60 * time.Second,
}

// LayeredCache wraps a Cache with category-prefixed keys and per-category
// default TTLs.
type LayeredCache struct {
	base *Cache
}

// NewLayered wraps base in a category-aware layer. base may be shared with
// other callers; LayeredCache adds no locking of its own beyond base's.
func NewLayered(base *Cache) *LayeredCache {
	return &LayeredCache{base: base}
}

func (l *LayeredCache) key(cat Category, key string) string {
	return fmt.Sprintf("%s:%s", cat, key)
}

// Get reads a category-scoped key.
func (l *LayeredCache) Get(cat Category, key string) (any, bool) {
	return l.base.Get(l.key(cat, key))
}

// Set writes a category-scoped key using that category's default TTL
// unless ttl is explicitly positive.
func (l *LayeredCache) Set(cat Category, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = categoryTTL[cat]
	}
	l.base.Set(l.key(cat, key), value, ttl)
}

// GetOrCompute is the category-scoped coalesced accessor used throughout
// internal/service.
func (l *LayeredCache) GetOrCompute(cat Category, key string, compute ComputeFunc, force bool) (any, error) {
	return l.base.GetOrCompute(l.key(cat, key), compute, categoryTTL[cat], force)
}

// GetOrComputeAsync is the context-aware twin of GetOrCompute.
func (l *LayeredCache) GetOrComputeAsync(ctx context.Context, cat Category, key string, compute AsyncComputeFunc, force bool) (any, error) {
	return l.base.GetOrComputeAsync(ctx, l.key(cat, key), compute, categoryTTL[cat], force)
}

// InvalidateCategory removes every entry under a category, regardless of
// the specific key suffix.
func (l *LayeredCache) InvalidateCategory(cat Category) int {
	return l.base.Invalidate(string(cat) + ":")
}

// InvalidateCategoryKey removes one specific category-scoped key.
func (l *LayeredCache) InvalidateCategoryKey(cat Category, key string) int {
	return l.base.Invalidate(l.key(cat, key))
}

// InvalidateWrite applies the write-invalidation policy for a
// knowledge-point mutation: statistics, review, knowledge and search
// categories are dropped in full.
func (l *LayeredCache) InvalidateWrite() {
	l.InvalidateCategory(CategoryStatistics)
	l.InvalidateCategory(CategoryReview)
	l.InvalidateCategory(CategoryKnowledge)
	l.InvalidateCategory(CategorySearch)
}

// InvalidateDailyLimitWrite implements the daily-limit half of the same
// policy: only that day's limit_status and daily_stats keys are dropped.
func (l *LayeredCache) InvalidateDailyLimitWrite(dayKey string) {
	l.InvalidateCategoryKey(CategoryLimitStatus, dayKey)
	l.InvalidateCategoryKey(CategoryDailyStats, dayKey)
}

// Stats exposes the underlying base cache's counters.
func (l *LayeredCache) Stats() Stats {
	return l.base.Stats()
}

// CleanupExpired sweeps the underlying base cache.
func (l *LayeredCache) CleanupExpired() int {
	return l.base.CleanupExpired()
}
