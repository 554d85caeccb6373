package dailylimit

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxchen228/linker/internal/dbpool"
	"github.com/maxchen228/linker/internal/repository"
)

func newTestGovernor(t *testing.T) *Governor {
	t.Helper()
	dir := t.TempDir()
	settings := dbpool.DefaultSettings(filepath.Join(dir, "test.db"))
	pool := dbpool.New(settings, nil)
	require.NoError(t, pool.Connect(context.Background()))
	require.NoError(t, repository.New(pool).Migrate(context.Background()))
	return New(pool)
}

func TestUngatedSubtypeIsAlwaysAdmitted(t *testing.T) {
	g := newTestGovernor(t)
	require.NoError(t, g.UpdateSettings(context.Background(), UserSettings{UserID: "alice", DailyLimit: 1, LimitEnabled: true}))

	status, err := g.RecordAndCheck(context.Background(), "alice", "systematic", time.Now())
	require.NoError(t, err)
	assert.True(t, status.CanAdd)
	assert.Equal(t, "ungated_subtype", status.Status)
}

func TestRecordAndCheckAdmitsUnderLimit(t *testing.T) {
	g := newTestGovernor(t)
	require.NoError(t, g.UpdateSettings(context.Background(), UserSettings{UserID: "bob", DailyLimit: 3, LimitEnabled: true}))

	now := time.Now()
	s1, err := g.RecordAndCheck(context.Background(), "bob", "isolated", now)
	require.NoError(t, err)
	assert.True(t, s1.CanAdd)
	assert.Equal(t, 1, s1.UsedCount)

	s2, err := g.RecordAndCheck(context.Background(), "bob", "enhancement", now)
	require.NoError(t, err)
	assert.True(t, s2.CanAdd)
	assert.Equal(t, 2, s2.UsedCount)
}

func TestRecordAndCheckDeniesAtLimit(t *testing.T) {
	g := newTestGovernor(t)
	require.NoError(t, g.UpdateSettings(context.Background(), UserSettings{UserID: "carol", DailyLimit: 1, LimitEnabled: true}))

	now := time.Now()
	first, err := g.RecordAndCheck(context.Background(), "carol", "isolated", now)
	require.NoError(t, err)
	require.True(t, first.CanAdd)

	second, err := g.RecordAndCheck(context.Background(), "carol", "isolated", now)
	require.NoError(t, err)
	assert.False(t, second.CanAdd)
	assert.Equal(t, "at_limit", second.Status)
}

func TestDisabledLimitAlwaysAdmits(t *testing.T) {
	g := newTestGovernor(t)
	now := time.Now()
	status, err := g.RecordAndCheck(context.Background(), "dave", "isolated", now)
	require.NoError(t, err)
	assert.True(t, status.CanAdd)
	assert.Equal(t, "limit_disabled", status.Status)
}

func TestConcurrentRecordAndCheckNeverExceedsLimit(t *testing.T) {
	g := newTestGovernor(t)
	require.NoError(t, g.UpdateSettings(context.Background(), UserSettings{UserID: "erin", DailyLimit: 5, LimitEnabled: true}))

	now := time.Now()
	const attempts = 10
	var wg sync.WaitGroup
	admitted := make([]bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			status, err := g.RecordAndCheck(context.Background(), "erin", "isolated", now)
			require.NoError(t, err)
			admitted[idx] = status.CanAdd
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range admitted {
		if ok {
			count++
		}
	}
	assert.Equal(t, 5, count)

	final, err := g.Check(context.Background(), "erin", "isolated", now)
	require.NoError(t, err)
	assert.Equal(t, 5, final.UsedCount)
}

func TestCheckDoesNotMutateCounters(t *testing.T) {
	g := newTestGovernor(t)
	require.NoError(t, g.UpdateSettings(context.Background(), UserSettings{UserID: "frank", DailyLimit: 2, LimitEnabled: true}))

	now := time.Now()
	_, err := g.Check(context.Background(), "frank", "isolated", now)
	require.NoError(t, err)
	_, err = g.Check(context.Background(), "frank", "isolated", now)
	require.NoError(t, err)

	final, err := g.Check(context.Background(), "frank", "isolated", now)
	require.NoError(t, err)
	assert.Equal(t, 0, final.UsedCount)
}
