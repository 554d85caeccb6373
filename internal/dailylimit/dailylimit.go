// Package dailylimit implements a transactional per-(user, day) admission
// governor for new knowledge-point creation. It only gates the isolated
// and enhancement categories; everything else is always admitted.
package dailylimit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/maxchen228/linker/internal/dbpool"
	"github.com/maxchen228/linker/internal/unifiederror"
)

// DailyStats is the per-(user, date) counter row.
type DailyStats struct {
	UserID           string
	Date             string // YYYY-MM-DD, the civil-date key
	IsolatedCount    int
	EnhancementCount int
	UpdatedAt        time.Time
}

// UserSettings is the per-user admission configuration, default {15, false}.
type UserSettings struct {
	UserID       string
	DailyLimit   int
	LimitEnabled bool
}

// DefaultSettings is the configuration a user without a settings row gets.
func DefaultSettings(userID string) UserSettings {
	return UserSettings{UserID: userID, DailyLimit: 15, LimitEnabled: false}
}

// gatedSubtypes names the only subtypes the governor ever denies; any
// other subtype is always admitted.
var gatedSubtypes = map[string]bool{
	"isolated":    true,
	"enhancement": true,
}

// IsGated reports whether subtype is subject to the daily limit at all.
func IsGated(subtype string) bool {
	return gatedSubtypes[subtype]
}

// Status is the result of Check/RecordAndCheck.
type Status struct {
	CanAdd       bool
	LimitEnabled bool
	DailyLimit   int
	UsedCount    int
	Remaining    int
	Breakdown    map[string]int // {"isolated": n, "enhancement": n}
	Status       string         // "ok", "at_limit", "limit_disabled", "ungated_subtype"
}

// Governor owns a pool connection and implements the transactional
// increment-and-check contract.
type Governor struct {
	pool *dbpool.Pool
}

// New builds a Governor over an already-migrated pool (see
// internal/repository/migrations.go version 2 for the owned tables).
func New(pool *dbpool.Pool) *Governor {
	return &Governor{pool: pool}
}

func civilDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (g *Governor) loadSettings(ctx context.Context, q dbpool.Queryer, userID string) (UserSettings, error) {
	var s UserSettings
	s.UserID = userID
	err := q.QueryRowContext(ctx, "SELECT daily_knowledge_limit, limit_enabled FROM user_settings WHERE user_id = ?", userID).Scan(&s.DailyLimit, &s.LimitEnabled)
	if err == sql.ErrNoRows {
		return DefaultSettings(userID), nil
	}
	if err != nil {
		return UserSettings{}, fmt.Errorf("dailylimit: load settings: %w: %w", err, unifiederror.ErrConnectionLost)
	}
	return s, nil
}

func (g *Governor) loadStats(ctx context.Context, q dbpool.Queryer, userID, date string) (DailyStats, error) {
	stats := DailyStats{UserID: userID, Date: date}
	var updatedAt sql.NullString
	err := q.QueryRowContext(ctx, "SELECT isolated_count, enhancement_count, updated_at FROM daily_knowledge_stats WHERE user_id = ? AND date = ?", userID, date).
		Scan(&stats.IsolatedCount, &stats.EnhancementCount, &updatedAt)
	if err == sql.ErrNoRows {
		return stats, nil
	}
	if err != nil {
		return DailyStats{}, fmt.Errorf("dailylimit: load stats: %w: %w", err, unifiederror.ErrConnectionLost)
	}
	return stats, nil
}

func statusFor(settings UserSettings, stats DailyStats, requestedSubtype string) Status {
	if !IsGated(requestedSubtype) {
		return Status{CanAdd: true, LimitEnabled: settings.LimitEnabled, DailyLimit: settings.DailyLimit, Status: "ungated_subtype",
			Breakdown: map[string]int{"isolated": stats.IsolatedCount, "enhancement": stats.EnhancementCount}}
	}

	used := stats.IsolatedCount + stats.EnhancementCount
	remaining := settings.DailyLimit - used
	if remaining < 0 {
		remaining = 0
	}

	s := Status{
		LimitEnabled: settings.LimitEnabled,
		DailyLimit:   settings.DailyLimit,
		UsedCount:    used,
		Remaining:    remaining,
		Breakdown:    map[string]int{"isolated": stats.IsolatedCount, "enhancement": stats.EnhancementCount},
	}

	if !settings.LimitEnabled {
		s.CanAdd = true
		s.Status = "limit_disabled"
		return s
	}

	if used >= settings.DailyLimit {
		s.CanAdd = false
		s.Status = "at_limit"
		return s
	}

	s.CanAdd = true
	s.Status = "ok"
	return s
}

// Check reports current admission status for (user, subtype, today) without
// mutating counters. Callers needing a combined increment-and-check (the
// actual create path) must use RecordAndCheck instead.
func (g *Governor) Check(ctx context.Context, userID, subtype string, today time.Time) (Status, error) {
	db, err := g.pool.DB()
	if err != nil {
		return Status{}, fmt.Errorf("dailylimit: acquire connection: %w: %w", err, unifiederror.ErrConnectionLost)
	}

	settings, err := g.loadSettings(ctx, db, userID)
	if err != nil {
		return Status{}, err
	}
	stats, err := g.loadStats(ctx, db, userID, civilDate(today))
	if err != nil {
		return Status{}, err
	}
	return statusFor(settings, stats, subtype), nil
}

// RecordAndCheck performs the admission check and, if admitted, the counter
// increment inside one BEGIN IMMEDIATE transaction — SQLite's way of taking
// a write lock up front — so a burst of concurrent mistakes cannot race past
// the limit. Returns the post-increment status; when the subtype is ungated
// or the limit disallows admission, no counter row is mutated.
//
// Callers that must group the increment with other writes (the create path
// couples it with the knowledge-point insert so both commit or roll back
// together) run RecordAndCheckIn inside their own immediate transaction
// instead.
func (g *Governor) RecordAndCheck(ctx context.Context, userID, subtype string, now time.Time) (Status, error) {
	var status Status
	err := g.pool.WithImmediateTx(ctx, func(q dbpool.Queryer) error {
		st, err := g.RecordAndCheckIn(ctx, q, userID, subtype, now)
		if err != nil {
			return err
		}
		status = st
		return nil
	})
	if err != nil {
		return Status{}, err
	}
	return status, nil
}

// RecordAndCheckIn is RecordAndCheck's transaction-scoped core. Every
// statement runs on q, which the caller owns; the increment only becomes
// durable when the surrounding transaction commits.
func (g *Governor) RecordAndCheckIn(ctx context.Context, q dbpool.Queryer, userID, subtype string, now time.Time) (Status, error) {
	settings, err := g.loadSettings(ctx, q, userID)
	if err != nil {
		return Status{}, err
	}

	date := civilDate(now)
	stats, err := g.loadStats(ctx, q, userID, date)
	if err != nil {
		return Status{}, err
	}

	status := statusFor(settings, stats, subtype)
	if !status.CanAdd || !IsGated(subtype) {
		return status, nil
	}

	switch subtype {
	case "isolated":
		stats.IsolatedCount++
	case "enhancement":
		stats.EnhancementCount++
	}
	stats.UpdatedAt = now

	if _, err := q.ExecContext(ctx, `INSERT INTO daily_knowledge_stats (date, user_id, isolated_count, enhancement_count, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date, user_id) DO UPDATE SET isolated_count = excluded.isolated_count, enhancement_count = excluded.enhancement_count, updated_at = excluded.updated_at`,
		date, userID, stats.IsolatedCount, stats.EnhancementCount, stats.UpdatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return Status{}, fmt.Errorf("dailylimit: upsert stats: %w: %w", err, unifiederror.ErrConnectionLost)
	}

	return statusFor(settings, stats, subtype), nil
}

// UpdateSettings upserts a user's daily-limit configuration. DailyLimit
// must be within [1, 50].
func (g *Governor) UpdateSettings(ctx context.Context, settings UserSettings) error {
	if settings.DailyLimit < 1 || settings.DailyLimit > 50 {
		return fmt.Errorf("dailylimit: daily limit %d out of range [1, 50]: %w", settings.DailyLimit, unifiederror.ErrValidation)
	}
	db, err := g.pool.DB()
	if err != nil {
		return fmt.Errorf("dailylimit: acquire connection: %w: %w", err, unifiederror.ErrConnectionLost)
	}
	_, err = db.ExecContext(ctx, `INSERT INTO user_settings (user_id, daily_knowledge_limit, limit_enabled) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET daily_knowledge_limit = excluded.daily_knowledge_limit, limit_enabled = excluded.limit_enabled`,
		settings.UserID, settings.DailyLimit, settings.LimitEnabled)
	if err != nil {
		return fmt.Errorf("dailylimit: upsert settings: %w: %w", err, unifiederror.ErrConnectionLost)
	}
	return nil
}
