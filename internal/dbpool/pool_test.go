package dbpool

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "test.db")
	settings := DefaultSettings(dsn)
	settings.AcquireTimeout = 2 * time.Second
	return New(settings, nil)
}

func TestConnectTransitionsToConnected(t *testing.T) {
	p := newTestPool(t)
	require.Equal(t, StateUninitialised, p.State())

	err := p.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateConnected, p.State())

	db, err := p.DB()
	require.NoError(t, err)
	require.NotNil(t, db)
}

func TestConnectIsIdempotentUnderConcurrency(t *testing.T) {
	p := newTestPool(t)

	const n = 10
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() { errs <- p.Connect(context.Background()) }()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}
	assert.Equal(t, StateConnected, p.State())
}

func TestHealthCheckReportsHealthy(t *testing.T) {
	p := newTestPool(t)
	require.NoError(t, p.Connect(context.Background()))

	health := p.HealthCheck(context.Background())
	assert.Equal(t, "healthy", health.Status)
	assert.True(t, health.TestQueryOK)
}

func TestHealthCheckOnClosedPool(t *testing.T) {
	p := newTestPool(t)
	health := p.HealthCheck(context.Background())
	assert.Equal(t, "closed", health.Status)
}

func TestDBFailsFastDuringShutdown(t *testing.T) {
	p := newTestPool(t)
	require.NoError(t, p.Connect(context.Background()))

	p.setState(StateShuttingDown)
	_, err := p.DB()
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestDisconnectThenClose(t *testing.T) {
	p := newTestPool(t)
	require.NoError(t, p.Connect(context.Background()))

	require.NoError(t, p.Disconnect(context.Background()))
	assert.Equal(t, StateDisconnected, p.State())

	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, StateClosed, p.State())

	_, err := p.DB()
	assert.ErrorIs(t, err, ErrClosed)
}
