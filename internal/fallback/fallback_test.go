package fallback

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheFallbackReturnsLastGood(t *testing.T) {
	c := NewDefaultChain()
	c.RecordSuccess("get_statistics", map[string]any{"total": 5})

	value, ok := c.Execute(context.Background(), CategoryDatabase, Severity("high"), Operation{
		Name: "get_statistics",
		Kind: KindStats,
	})
	require.True(t, ok)
	degraded := value.(Degraded)
	assert.Equal(t, "cache_fallback", degraded.Strategy)
	assert.Equal(t, map[string]any{"total": 5}, degraded.Value)
}

func TestGracefulDegradationWhenNoCache(t *testing.T) {
	c := NewDefaultChain()

	value, ok := c.Execute(context.Background(), CategoryDatabase, Severity("high"), Operation{
		Name:      "get_statistics",
		Kind:      KindStats,
		ZeroValue: map[string]any{"total": 0},
	})
	require.True(t, ok)
	degraded := value.(Degraded)
	assert.Equal(t, "graceful_degradation", degraded.Strategy)
	assert.Equal(t, map[string]any{"total": 0}, degraded.Value)
}

func TestNetworkRetrySucceedsWithinAttempts(t *testing.T) {
	c := &Chain{strategies: []Strategy{&NetworkRetry{}}, lastGood: map[string]any{}, stats: map[string]*strategyStats{}}

	calls := 0
	op := Operation{
		Name: "fetch",
		Kind: KindSingle,
		Retry: func(ctx context.Context) (any, error) {
			calls++
			if calls < 2 {
				return nil, errors.New("transient")
			}
			return "ok", nil
		},
	}

	value, ok := c.Execute(context.Background(), CategoryNetwork, Severity("medium"), op)
	require.True(t, ok)
	assert.Equal(t, Degraded{Value: "ok", Strategy: "network_retry"}, value)
	assert.Equal(t, 2, calls)
}

func TestNetworkRetryOnlyHandlesNetworkCategory(t *testing.T) {
	retry := &NetworkRetry{}
	assert.True(t, retry.CanHandle(CategoryNetwork, Severity("medium")))
	assert.False(t, retry.CanHandle(CategoryDatabase, Severity("medium")))
}

func TestGracefulDegradationAlwaysMatches(t *testing.T) {
	g := &GracefulDegradation{}
	assert.True(t, g.CanHandle(CategoryValidation, Severity("low")))
	assert.True(t, g.CanHandle(CategoryUnknown, Severity("critical")))
}

func TestStrategySuccessRateTracksOutcomes(t *testing.T) {
	c := NewDefaultChain()
	c.RecordSuccess("op", 1)

	_, _ = c.Execute(context.Background(), CategoryDatabase, Severity("high"), Operation{Name: "op"})
	rate := c.StrategySuccessRate("cache_fallback")
	assert.Equal(t, 1.0, rate)
}
