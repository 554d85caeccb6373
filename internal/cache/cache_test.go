package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetRoundTrip(t *testing.T) {
	c := New(time.Minute)
	_, ok := c.Get("missing")
	require.False(t, ok)

	c.Set("k", "v", 0)
	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", v)
}

func TestGetExpiresLazily(t *testing.T) {
	c := New(time.Minute)
	c.Set("k", "v", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Evictions)
	assert.Equal(t, 1, stats.Misses)
}

func TestInvalidatePatternAndIdempotence(t *testing.T) {
	c := New(time.Minute)
	c.Set("knowledge:1", "a", 0)
	c.Set("knowledge:2", "b", 0)
	c.Set("search:1", "c", 0)

	removed := c.Invalidate("knowledge:")
	assert.Equal(t, 2, removed)

	removed = c.Invalidate("knowledge:")
	assert.Equal(t, 0, removed)

	_, ok := c.Get("search:1")
	assert.True(t, ok)
}

func TestInvalidateAllOnEmptyPattern(t *testing.T) {
	c := New(time.Minute)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	assert.Equal(t, 2, c.Invalidate(""))
	assert.Equal(t, 0, c.Stats().Size)
}

func TestGetOrComputeCachesSuccess(t *testing.T) {
	c := New(time.Minute)
	var calls int32

	compute := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return 42, nil
	}

	v, err := c.GetOrCompute("k", compute, 0, false)
	require.NoError(t, err)
	require.Equal(t, 42, v)

	v, err = c.GetOrCompute("k", compute, 0, false)
	require.NoError(t, err)
	require.Equal(t, 42, v)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	c := New(time.Minute)
	boom := errors.New("boom")
	var calls int32

	compute := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	}

	_, err := c.GetOrCompute("k", compute, 0, false)
	require.ErrorIs(t, err, boom)

	_, err = c.GetOrCompute("k", compute, 0, false)
	require.ErrorIs(t, err, boom)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestGetOrComputeCoalescesConcurrentMisses(t *testing.T) {
	c := New(time.Minute)
	var calls int32
	start := make(chan struct{})

	compute := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		<-start
		return "v", nil
	}

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			v, err := c.GetOrCompute("shared", compute, 0, false)
			require.NoError(t, err)
			require.Equal(t, "v", v)
		}()
	}

	time.Sleep(10 * time.Millisecond)
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetOrComputeForceRecomputes(t *testing.T) {
	c := New(time.Minute)
	var calls int32
	compute := func() (any, error) {
		n := atomic.AddInt32(&calls, 1)
		return int(n), nil
	}

	v, err := c.GetOrCompute("k", compute, 0, false)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	v, err = c.GetOrCompute("k", compute, 0, true)
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

func TestLayeredCacheCategoryTTLAndInvalidation(t *testing.T) {
	l := NewLayered(New(time.Minute))

	l.Set(CategoryStatistics, "global", "stats-v1", 0)
	l.Set(CategoryKnowledge, "1", "kp-1", 0)

	v, ok := l.Get(CategoryStatistics, "global")
	require.True(t, ok)
	require.Equal(t, "stats-v1", v)

	l.InvalidateWrite()

	_, ok = l.Get(CategoryStatistics, "global")
	assert.False(t, ok)
	_, ok = l.Get(CategoryKnowledge, "1")
	assert.False(t, ok)
}

func TestLayeredCacheDailyLimitInvalidationIsScoped(t *testing.T) {
	l := NewLayered(New(time.Minute))
	l.Set(CategoryLimitStatus, "alice:2026-07-29", "ok", 0)
	l.Set(CategoryLimitStatus, "bob:2026-07-29", "ok", 0)

	l.InvalidateDailyLimitWrite("alice:2026-07-29")

	_, ok := l.Get(CategoryLimitStatus, "alice:2026-07-29")
	assert.False(t, ok)
	_, ok = l.Get(CategoryLimitStatus, "bob:2026-07-29")
	assert.True(t, ok)
}

func TestCleanupExpiredSweep(t *testing.T) {
	c := New(time.Minute)
	c.Set("short", "v", 5*time.Millisecond)
	c.Set("long", "v", time.Hour)
	time.Sleep(15 * time.Millisecond)

	removed := c.CleanupExpired()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Stats().Size)
}
