// Package dbpool owns the process-wide connection pool: an explicit
// lifecycle state machine wrapping *sql.DB, constructed once at startup
// and passed by reference to every consumer. There is no package-level
// singleton; any "global" access goes through the handle main constructs.
package dbpool

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/maxchen228/linker/internal/filelock"
	"github.com/maxchen228/linker/internal/logger"
	"github.com/maxchen228/linker/internal/unifiederror"
)

// State is one node of the pool's lifecycle state machine.
type State int

const (
	StateUninitialised State = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateShuttingDown
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialised:
		return "uninitialised"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateShuttingDown:
		return "shutting_down"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Settings configures pool construction, sourced from internal/config
// (DATABASE_URL, DB_POOL_MIN_SIZE, DB_POOL_MAX_SIZE, DB_POOL_TIMEOUT).
// SQLite's driver has no distinct "min size", so MinSize only informs
// SetMaxIdleConns; MaxSize maps to SetMaxOpenConns, AcquireTimeout bounds
// Connect/health-check deadlines, and IdleReap maps to SetConnMaxIdleTime.
type Settings struct {
	DSN            string
	MinSize        int
	MaxSize        int
	AcquireTimeout time.Duration
	IdleReap       time.Duration
	MigrationLock  string
}

// dsnWithBusyTimeout appends go-sqlite3's _busy_timeout DSN parameter so
// every connection the driver opens (not just the first) waits out
// SQLITE_BUSY from a concurrent writer instead of failing immediately —
// needed because internal/dailylimit's BEGIN IMMEDIATE transactions
// serialize writers by blocking rather than by an explicit app-level lock.
func dsnWithBusyTimeout(dsn string, timeout time.Duration) string {
	ms := timeout.Milliseconds()
	if ms <= 0 {
		ms = 5000
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_busy_timeout=%d", dsn, sep, ms)
}

// DefaultSettings returns the documented pool defaults.
func DefaultSettings(dsn string) Settings {
	return Settings{
		DSN:            dsn,
		MinSize:        5,
		MaxSize:        20,
		AcquireTimeout: 10 * time.Second,
		IdleReap:       300 * time.Second,
		MigrationLock:  dsn + ".migrate.lock",
	}
}

// HealthStatus is the result of HealthCheck.
type HealthStatus struct {
	Status      string // "healthy", "degraded", "timeout", "closed"
	PoolSize    int
	Idle        int
	TestQueryOK bool
}

// Queryer is the intersection of *sql.DB, *sql.Conn and *sql.Tx that
// statement bodies are written against, so the same code can run either
// standalone or grouped into a caller-owned transaction.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ErrShuttingDown is returned by DB while the pool is tearing down.
var ErrShuttingDown = fmt.Errorf("dbpool: shutting down, new acquires are refused")

// ErrClosed is returned by any operation after Close has completed.
var ErrClosed = fmt.Errorf("dbpool: pool is closed")

// Pool is the process-wide handle. Construct exactly one per process (see
// internal/cmd/root.go) and pass it by reference; nothing in this package
// keeps a package-level instance.
type Pool struct {
	settings Settings
	log      logger.Logger

	once       sync.Once
	db         *sql.DB
	connectErr error

	mu    sync.Mutex
	state State
}

// New constructs an unconnected Pool. Call Connect before use.
func New(settings Settings, log logger.Logger) *Pool {
	if log == nil {
		log = logger.New("error", "text", false, nil, nil)
	}
	return &Pool{settings: settings, log: log, state: StateUninitialised}
}

// State reports the current lifecycle state.
func (p *Pool) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pool) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Connect opens the underlying *sql.DB exactly once, even under concurrent
// callers (sync.Once). A file lock guards first-time
// schema migration elsewhere (internal/repository); Connect itself only
// opens the driver handle and applies pool-sizing settings.
func (p *Pool) Connect(ctx context.Context) error {
	p.once.Do(func() {
		p.setState(StateConnecting)

		db, err := sql.Open("sqlite3", dsnWithBusyTimeout(p.settings.DSN, p.settings.AcquireTimeout))
		if err != nil {
			p.connectErr = fmt.Errorf("dbpool: open %s: %w", p.settings.DSN, err)
			p.setState(StateUninitialised)
			return
		}

		db.SetMaxOpenConns(p.settings.MaxSize)
		db.SetMaxIdleConns(p.settings.MinSize)
		db.SetConnMaxIdleTime(p.settings.IdleReap)

		pingCtx, cancel := context.WithTimeout(ctx, p.settings.AcquireTimeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			p.connectErr = fmt.Errorf("dbpool: ping %s: %w", p.settings.DSN, err)
			p.setState(StateUninitialised)
			return
		}

		p.db = db
		p.setState(StateConnected)
		p.log.Info("database pool connected", logger.Fields{"dsn": p.settings.DSN, "max_open": p.settings.MaxSize})
	})
	// A failed first attempt is sticky: the once is consumed, so every later
	// caller must see the same error instead of a silent no-op.
	return p.connectErr
}

// DB returns the underlying *sql.DB for query execution. It fails fast
// during shutdown and after close; no new work may start once teardown
// has begun.
func (p *Pool) DB() (*sql.DB, error) {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()

	switch state {
	case StateShuttingDown:
		return nil, ErrShuttingDown
	case StateClosed:
		return nil, ErrClosed
	case StateUninitialised, StateConnecting:
		return nil, fmt.Errorf("dbpool: not connected (state=%s)", state)
	default:
		return p.db, nil
	}
}

// WithImmediateTx borrows one connection, opens a BEGIN IMMEDIATE
// transaction on it (SQLite takes the write lock up front, serializing
// concurrent writers instead of failing them mid-transaction), runs fn,
// and commits — or rolls back when fn returns an error. database/sql has
// no portable way to request immediate mode, so the statement is issued
// directly on the borrowed connection; fn must route every statement
// through the supplied Queryer or it will escape the transaction.
func (p *Pool) WithImmediateTx(ctx context.Context, fn func(q Queryer) error) error {
	db, err := p.DB()
	if err != nil {
		return fmt.Errorf("dbpool: immediate tx: %w: %w", err, unifiederror.ErrConnectionLost)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("dbpool: acquire conn: %w: %w", err, unifiederror.ErrConnectionLost)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("dbpool: begin immediate: %w: %w", err, unifiederror.ErrConnectionLost)
	}
	if err := fn(conn); err != nil {
		// Roll back even when ctx is already cancelled, so the borrowed
		// connection never returns to the pool with an open transaction.
		conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
		return fmt.Errorf("dbpool: commit: %w: %w", err, unifiederror.ErrConnectionLost)
	}
	return nil
}

// HealthCheck reports pool health within the configured acquire timeout,
// or a "timeout" status on deadline.
func (p *Pool) HealthCheck(ctx context.Context) HealthStatus {
	db, err := p.DB()
	if err != nil {
		return HealthStatus{Status: "closed"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, p.settings.AcquireTimeout)
	defer cancel()

	stats := db.Stats()
	result := HealthStatus{
		PoolSize: stats.OpenConnections,
		Idle:     stats.Idle,
	}

	done := make(chan error, 1)
	go func() {
		var one int
		done <- db.QueryRowContext(checkCtx, "SELECT 1").Scan(&one)
	}()

	select {
	case <-checkCtx.Done():
		result.Status = "timeout"
		return result
	case err := <-done:
		if err != nil {
			result.Status = "degraded"
			return result
		}
		result.Status = "healthy"
		result.TestQueryOK = true
		return result
	}
}

// Disconnect requests a graceful close with a bounded wait; on wait-timeout
// it logs a warning and still completes the transition to Disconnected.
// The handle is not force-terminated: the db.Close() already in flight is
// left to finish on its own.
func (p *Pool) Disconnect(ctx context.Context) error {
	p.setState(StateShuttingDown)

	if p.db == nil {
		p.setState(StateDisconnected)
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.settings.AcquireTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- p.db.Close()
	}()

	select {
	case err := <-done:
		p.setState(StateDisconnected)
		if err != nil {
			return fmt.Errorf("dbpool: close: %w", err)
		}
		return nil
	case <-waitCtx.Done():
		p.log.Warn("database pool close timed out, forcing termination", logger.Fields{"dsn": p.settings.DSN})
		// db.Close() already in flight; the pool is considered disconnected
		// regardless of whether the goroutine above ever finishes.
		p.setState(StateDisconnected)
		return nil
	}
}

// Close finalises the lifecycle: Disconnect if still connected, then mark
// Closed so any later DB() call fails fast with ErrClosed.
func (p *Pool) Close(ctx context.Context) error {
	if p.State() != StateDisconnected {
		if err := p.Disconnect(ctx); err != nil {
			return err
		}
	}
	p.setState(StateClosed)
	return nil
}

// MigrationLockPath exposes the configured lock-file path so
// internal/repository can guard first-time schema migration across
// processes with internal/filelock.
func (p *Pool) MigrationLockPath() string {
	return p.settings.MigrationLock
}

// NewMigrationLock builds the flock-backed lock used to serialize schema
// migration across processes sharing this DSN.
func (p *Pool) NewMigrationLock() *filelock.FileLock {
	return filelock.NewFileLock(p.settings.MigrationLock)
}
