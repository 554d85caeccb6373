package filelock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileLock(t *testing.T) {
	lock := NewFileLock(filepath.Join(t.TempDir(), "x.lock"))
	require.NotNil(t, lock)
}

func TestLockUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.lock")
	lock := NewFileLock(path)
	require.NoError(t, lock.Lock())
	require.NoError(t, lock.Unlock())
}

func TestTryLockContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.lock")
	holder := NewFileLock(path)
	require.NoError(t, holder.Lock())
	defer holder.Unlock()

	contender := NewFileLock(path)
	acquired, err := contender.TryLock()
	require.NoError(t, err)
	assert.False(t, acquired)
}

func TestLockContextTimesOutWhenHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.lock")
	holder := NewFileLock(path)
	require.NoError(t, holder.Lock())
	defer holder.Unlock()

	contender := NewFileLock(path)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := contender.LockContext(ctx, 10*time.Millisecond)
	require.Error(t, err)
}

func TestLockContextSucceedsOnceFree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.lock")
	lock := NewFileLock(path)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, lock.LockContext(ctx, 10*time.Millisecond))
	require.NoError(t, lock.Unlock())
}
