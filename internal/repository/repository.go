// Package repository implements the ctx-aware CRUD, search, and
// statistics layer over internal/dbpool's SQLite connection.
// Reads use a plain query; writes that touch more than one table run
// inside a transaction so the parent row and its children commit or roll
// back together.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/maxchen228/linker/internal/dbpool"
	"github.com/maxchen228/linker/internal/models"
	"github.com/maxchen228/linker/internal/unifiederror"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Repository is the SQLite-backed store. It holds no back-reference to
// internal/service; internal/service owns a Repository, never the reverse.
type Repository struct {
	pool *dbpool.Pool
}

// New builds a Repository over an already-constructed pool.
func New(pool *dbpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate guards first-time schema migration with a cross-process file
// lock (so two processes opening the same SQLite file don't race the
// CREATE TABLE statements), then applies every pending migration inside
// one transaction.
func (r *Repository) Migrate(ctx context.Context) error {
	lock := r.pool.NewMigrationLock()
	if err := lock.LockContext(ctx, 50*time.Millisecond); err != nil {
		return fmt.Errorf("repository: acquire migration lock: %w", err)
	}
	defer lock.Unlock()

	db, err := r.pool.DB()
	if err != nil {
		return fmt.Errorf("repository: migrate: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin migration tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaVersionDDL); err != nil {
		return fmt.Errorf("repository: ensure schema_version: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := tx.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return fmt.Errorf("repository: read schema_version: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("repository: scan schema_version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("repository: apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version(version, applied_at) VALUES (?, ?)", m.Version, formatTime(time.Now())); err != nil {
			return fmt.Errorf("repository: record migration %d: %w", m.Version, err)
		}
	}

	return tx.Commit()
}

// Filters narrows FindAll; IncludeDeleted=false (the default) keeps
// soft-deleted points out of active queries.
type Filters struct {
	IncludeDeleted bool
	Category       *models.Category
	Limit          int
}

// FindByID loads the full aggregate (original error + review examples +
// tags + version history), including soft-deleted rows, so callers can
// distinguish "absent" from "deleted". Returns (nil, nil) when no row
// exists at all.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.KnowledgePoint, error) {
	db, err := r.pool.DB()
	if err != nil {
		return nil, wrapConn(err)
	}

	kp, err := r.scanPointRow(ctx, db, "SELECT id, key_point, original_phrase, correction, explanation, category, subtype, custom_notes, mastery_level, mistake_count, correct_count, next_review, last_seen, created_at, last_modified, is_deleted, deleted_at, deleted_reason FROM knowledge_points WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if kp == nil {
		return nil, nil
	}

	if err := r.loadChildren(ctx, db, kp); err != nil {
		return nil, err
	}
	return kp, nil
}

func (r *Repository) scanPointRow(ctx context.Context, db *sql.DB, query string, args ...any) (*models.KnowledgePoint, error) {
	row := db.QueryRowContext(ctx, query, args...)
	kp, err := scanPoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: scan knowledge point: %w: %w", err, unifiederror.ErrConnectionLost)
	}
	return kp, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPoint(row scannable) (*models.KnowledgePoint, error) {
	var (
		kp                                            models.KnowledgePoint
		category, subtype                             string
		nextReview, lastSeen, createdAt, lastModified string
		deletedAt                                     sql.NullString
		isDeleted                                     int
	)
	err := row.Scan(&kp.ID, &kp.KeyPoint, &kp.OriginalPhrase, &kp.Correction, &kp.Explanation,
		&category, &subtype, &kp.CustomNotes, &kp.MasteryLevel, &kp.MistakeCount, &kp.CorrectCount,
		&nextReview, &lastSeen, &createdAt, &lastModified, &isDeleted, &deletedAt, &kp.DeletedReason)
	if err != nil {
		return nil, err
	}

	kp.Category = models.Category(category)
	kp.Subtype = subtype
	kp.NextReview = mustParseTime(nextReview)
	kp.LastSeen = mustParseTime(lastSeen)
	kp.CreatedAt = mustParseTime(createdAt)
	kp.LastModified = mustParseTime(lastModified)
	kp.IsDeleted = isDeleted != 0
	if deletedAt.Valid {
		t := mustParseTime(deletedAt.String)
		kp.DeletedAt = &t
	}
	return &kp, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func mustParseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (r *Repository) loadChildren(ctx context.Context, db *sql.DB, kp *models.KnowledgePoint) error {
	row := db.QueryRowContext(ctx, "SELECT chinese_sentence, user_answer, correct_answer, timestamp FROM original_errors WHERE knowledge_point_id = ?", kp.ID)
	var ts string
	if err := row.Scan(&kp.OriginalErr.ChineseSentence, &kp.OriginalErr.UserAnswer, &kp.OriginalErr.CorrectAnswer, &ts); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("repository: load original error: %w", err)
	} else if err == nil {
		kp.OriginalErr.Timestamp = mustParseTime(ts)
	}

	rows, err := db.QueryContext(ctx, "SELECT chinese_sentence, user_answer, correct_answer, is_correct, timestamp FROM review_examples WHERE knowledge_point_id = ? ORDER BY timestamp DESC", kp.ID)
	if err != nil {
		return fmt.Errorf("repository: load review examples: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ex models.ReviewExample
		var isCorrect int
		var exTS string
		if err := rows.Scan(&ex.ChineseSentence, &ex.UserAnswer, &ex.CorrectAnswer, &isCorrect, &exTS); err != nil {
			return fmt.Errorf("repository: scan review example: %w", err)
		}
		ex.IsCorrect = isCorrect != 0
		ex.Timestamp = mustParseTime(exTS)
		kp.ReviewExamples = append(kp.ReviewExamples, ex)
	}

	tagRows, err := db.QueryContext(ctx, "SELECT t.name FROM tags t JOIN knowledge_point_tags kpt ON kpt.tag_id = t.id WHERE kpt.knowledge_point_id = ? ORDER BY t.name", kp.ID)
	if err != nil {
		return fmt.Errorf("repository: load tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var name string
		if err := tagRows.Scan(&name); err != nil {
			return fmt.Errorf("repository: scan tag: %w", err)
		}
		kp.Tags = append(kp.Tags, name)
	}

	verRows, err := db.QueryContext(ctx, "SELECT timestamp, before_json, after_json, changed_fields_json FROM knowledge_point_versions WHERE knowledge_point_id = ? ORDER BY timestamp ASC", kp.ID)
	if err != nil {
		return fmt.Errorf("repository: load version history: %w", err)
	}
	defer verRows.Close()
	for verRows.Next() {
		var ve models.VersionEntry
		var verTS, beforeJSON, afterJSON, changedJSON string
		if err := verRows.Scan(&verTS, &beforeJSON, &afterJSON, &changedJSON); err != nil {
			return fmt.Errorf("repository: scan version entry: %w", err)
		}
		ve.Timestamp = mustParseTime(verTS)
		_ = json.Unmarshal([]byte(beforeJSON), &ve.Before)
		_ = json.Unmarshal([]byte(afterJSON), &ve.After)
		_ = json.Unmarshal([]byte(changedJSON), &ve.ChangedFields)
		kp.VersionHistory = append(kp.VersionHistory, ve)
	}

	return nil
}

// FindAll lists points matching filters, sorted last_seen DESC. It does not
// eagerly join children, to keep listings cheap; callers needing
// lineage should follow up with FindByID.
func (r *Repository) FindAll(ctx context.Context, filters Filters) ([]*models.KnowledgePoint, error) {
	db, err := r.pool.DB()
	if err != nil {
		return nil, wrapConn(err)
	}

	query := "SELECT id, key_point, original_phrase, correction, explanation, category, subtype, custom_notes, mastery_level, mistake_count, correct_count, next_review, last_seen, created_at, last_modified, is_deleted, deleted_at, deleted_reason FROM knowledge_points WHERE 1=1"
	var args []any
	if !filters.IncludeDeleted {
		query += " AND is_deleted = 0"
	}
	if filters.Category != nil {
		query += " AND category = ?"
		args = append(args, string(*filters.Category))
	}
	query += " ORDER BY last_seen DESC"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	return r.queryPoints(ctx, db, query, args...)
}

func (r *Repository) queryPoints(ctx context.Context, db *sql.DB, query string, args ...any) ([]*models.KnowledgePoint, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: query knowledge points: %w: %w", err, unifiederror.ErrConnectionLost)
	}
	defer rows.Close()

	var out []*models.KnowledgePoint
	for rows.Next() {
		kp, err := scanPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: scan knowledge point row: %w", err)
		}
		out = append(out, kp)
	}
	return out, rows.Err()
}

// ActiveFullForStatistics loads every active point with its full lineage
// (original error + review examples), which is the only input the
// statistics pipeline extracts PracticeRecords from.
func (r *Repository) ActiveFullForStatistics(ctx context.Context) ([]*models.KnowledgePoint, error) {
	points, err := r.FindAll(ctx, Filters{})
	if err != nil {
		return nil, err
	}
	db, err := r.pool.DB()
	if err != nil {
		return nil, wrapConn(err)
	}
	for _, kp := range points {
		if err := r.loadChildren(ctx, db, kp); err != nil {
			return nil, err
		}
	}
	return points, nil
}

// Create inserts the main row, its original error, any seeded review
// examples, and tag associations inside one transaction. A unique-triple
// collision fails with a wrapped ErrDuplicate.
func (r *Repository) Create(ctx context.Context, kp *models.KnowledgePoint) (int64, error) {
	var id int64
	err := r.pool.WithImmediateTx(ctx, func(q dbpool.Queryer) error {
		var err error
		id, err = r.CreateIn(ctx, q, kp)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// RunImmediate executes fn inside one immediate-mode write transaction.
// The service layer uses it to group a knowledge-point insert with the
// daily-limit increment so both commit or roll back together.
func (r *Repository) RunImmediate(ctx context.Context, fn func(q dbpool.Queryer) error) error {
	return r.pool.WithImmediateTx(ctx, fn)
}

// CreateIn is Create's transaction-scoped core: every statement runs on q,
// which the caller owns. kp.ID is only meaningful once the surrounding
// transaction commits.
func (r *Repository) CreateIn(ctx context.Context, q dbpool.Queryer, kp *models.KnowledgePoint) (int64, error) {
	now := time.Now()
	if kp.CreatedAt.IsZero() {
		kp.CreatedAt = now
	}
	if kp.LastModified.IsZero() {
		kp.LastModified = now
	}

	res, err := q.ExecContext(ctx, `INSERT INTO knowledge_points
		(key_point, original_phrase, correction, explanation, category, subtype, custom_notes,
		 mastery_level, mistake_count, correct_count, next_review, last_seen, created_at, last_modified,
		 is_deleted, deleted_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, '')`,
		kp.KeyPoint, kp.OriginalPhrase, kp.Correction, kp.Explanation, string(kp.Category), kp.Subtype, kp.CustomNotes,
		kp.MasteryLevel, kp.MistakeCount, kp.CorrectCount, formatTime(kp.NextReview), formatTime(kp.LastSeen),
		formatTime(kp.CreatedAt), formatTime(kp.LastModified))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("repository: duplicate knowledge point %v/%v/%v: %w", kp.KeyPoint, kp.OriginalPhrase, kp.Correction, unifiederror.ErrDuplicate)
		}
		return 0, fmt.Errorf("repository: insert knowledge point: %w: %w", err, unifiederror.ErrConnectionLost)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("repository: read inserted id: %w", err)
	}

	if _, err := q.ExecContext(ctx, `INSERT INTO original_errors (knowledge_point_id, chinese_sentence, user_answer, correct_answer, timestamp) VALUES (?, ?, ?, ?, ?)`,
		id, kp.OriginalErr.ChineseSentence, kp.OriginalErr.UserAnswer, kp.OriginalErr.CorrectAnswer, formatTime(kp.OriginalErr.Timestamp)); err != nil {
		return 0, fmt.Errorf("repository: insert original error: %w", err)
	}

	for _, ex := range kp.ReviewExamples {
		if err := insertReviewExample(ctx, q, id, ex); err != nil {
			return 0, err
		}
	}

	for _, tag := range kp.Tags {
		if err := upsertTagAssociation(ctx, q, id, tag); err != nil {
			return 0, err
		}
	}

	kp.ID = id
	return id, nil
}

func insertReviewExample(ctx context.Context, q dbpool.Queryer, pointID int64, ex models.ReviewExample) error {
	isCorrect := 0
	if ex.IsCorrect {
		isCorrect = 1
	}
	_, err := q.ExecContext(ctx, `INSERT INTO review_examples (knowledge_point_id, chinese_sentence, user_answer, correct_answer, is_correct, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		pointID, ex.ChineseSentence, ex.UserAnswer, ex.CorrectAnswer, isCorrect, formatTime(ex.Timestamp))
	if err != nil {
		return fmt.Errorf("repository: insert review example: %w", err)
	}
	return nil
}

func upsertTagAssociation(ctx context.Context, q dbpool.Queryer, pointID int64, tag string) error {
	if _, err := q.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, tag); err != nil {
		return fmt.Errorf("repository: upsert tag %q: %w", tag, err)
	}
	var tagID int64
	if err := q.QueryRowContext(ctx, "SELECT id FROM tags WHERE name = ?", tag).Scan(&tagID); err != nil {
		return fmt.Errorf("repository: read tag id %q: %w", tag, err)
	}
	if _, err := q.ExecContext(ctx, `INSERT INTO knowledge_point_tags (knowledge_point_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING`, pointID, tagID); err != nil {
		return fmt.Errorf("repository: associate tag %q: %w", tag, err)
	}
	return nil
}

// Update persists mutable columns and appends any new version-history rows
// present on kp.VersionHistory that aren't already stored (i.e. rows with a
// timestamp after the max stored timestamp). It fails if the row is
// currently deleted.
func (r *Repository) Update(ctx context.Context, kp *models.KnowledgePoint) error {
	db, err := r.pool.DB()
	if err != nil {
		return wrapConn(err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin update tx: %w", err)
	}
	defer tx.Rollback()

	var isDeleted int
	err = tx.QueryRowContext(ctx, "SELECT is_deleted FROM knowledge_points WHERE id = ?", kp.ID).Scan(&isDeleted)
	if err == sql.ErrNoRows {
		return fmt.Errorf("repository: update %d: %w", kp.ID, unifiederror.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("repository: read update target: %w", err)
	}
	if isDeleted != 0 {
		return fmt.Errorf("repository: update %d: row is soft-deleted: %w", kp.ID, unifiederror.ErrNotFound)
	}

	kp.LastModified = time.Now()
	_, err = tx.ExecContext(ctx, `UPDATE knowledge_points SET
		key_point = ?, original_phrase = ?, correction = ?, explanation = ?, category = ?, subtype = ?, custom_notes = ?,
		mastery_level = ?, mistake_count = ?, correct_count = ?, next_review = ?, last_seen = ?, last_modified = ?
		WHERE id = ?`,
		kp.KeyPoint, kp.OriginalPhrase, kp.Correction, kp.Explanation, string(kp.Category), kp.Subtype, kp.CustomNotes,
		kp.MasteryLevel, kp.MistakeCount, kp.CorrectCount, formatTime(kp.NextReview), formatTime(kp.LastSeen),
		formatTime(kp.LastModified), kp.ID)
	if err != nil {
		return fmt.Errorf("repository: update knowledge point %d: %w", kp.ID, err)
	}

	if len(kp.VersionHistory) > 0 {
		var maxStored sql.NullString
		if err := tx.QueryRowContext(ctx, "SELECT MAX(timestamp) FROM knowledge_point_versions WHERE knowledge_point_id = ?", kp.ID).Scan(&maxStored); err != nil {
			return fmt.Errorf("repository: read latest version timestamp: %w", err)
		}
		for _, v := range kp.VersionHistory {
			if maxStored.Valid && formatTime(v.Timestamp) <= maxStored.String {
				continue
			}
			if err := r.appendVersionTx(ctx, tx, kp.ID, v); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (r *Repository) appendVersionTx(ctx context.Context, tx *sql.Tx, pointID int64, v models.VersionEntry) error {
	before, _ := json.Marshal(v.Before)
	after, _ := json.Marshal(v.After)
	changed, _ := json.Marshal(v.ChangedFields)
	_, err := tx.ExecContext(ctx, `INSERT INTO knowledge_point_versions (knowledge_point_id, timestamp, before_json, after_json, changed_fields_json) VALUES (?, ?, ?, ?, ?)`,
		pointID, formatTime(v.Timestamp), string(before), string(after), string(changed))
	if err != nil {
		return fmt.Errorf("repository: insert version entry: %w", err)
	}
	return nil
}

// AppendVersion records a version-history entry for a point outside of a
// full Update call, in its own transaction and without touching the point's
// other columns.
func (r *Repository) AppendVersion(ctx context.Context, pointID int64, v models.VersionEntry) error {
	db, err := r.pool.DB()
	if err != nil {
		return wrapConn(err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin append-version tx: %w", err)
	}
	defer tx.Rollback()
	if err := r.appendVersionTx(ctx, tx, pointID, v); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete soft-deletes a point: sets the flag, deleted_at, and
// deleted_reason. Returns whether a row was affected.
func (r *Repository) Delete(ctx context.Context, id int64, reason string) (bool, error) {
	db, err := r.pool.DB()
	if err != nil {
		return false, wrapConn(err)
	}
	now := time.Now()
	res, err := db.ExecContext(ctx, `UPDATE knowledge_points SET is_deleted = 1, deleted_at = ?, deleted_reason = ?, last_modified = ? WHERE id = ? AND is_deleted = 0`,
		formatTime(now), reason, formatTime(now), id)
	if err != nil {
		return false, fmt.Errorf("repository: soft delete %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Restore clears the soft-delete flag on a currently-deleted row.
func (r *Repository) Restore(ctx context.Context, id int64) (bool, error) {
	db, err := r.pool.DB()
	if err != nil {
		return false, wrapConn(err)
	}
	now := time.Now()
	res, err := db.ExecContext(ctx, `UPDATE knowledge_points SET is_deleted = 0, deleted_at = NULL, deleted_reason = '', last_modified = ? WHERE id = ? AND is_deleted = 1`,
		formatTime(now), id)
	if err != nil {
		return false, fmt.Errorf("repository: restore %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// PermanentDelete removes a soft-deleted row and its children entirely
// (foreign keys cascade). Used only by the retention job, never by a live
// read/write path.
func (r *Repository) PermanentDelete(ctx context.Context, id int64) error {
	db, err := r.pool.DB()
	if err != nil {
		return wrapConn(err)
	}
	_, err = db.ExecContext(ctx, "DELETE FROM knowledge_points WHERE id = ? AND is_deleted = 1", id)
	if err != nil {
		return fmt.Errorf("repository: permanent delete %d: %w", id, err)
	}
	return nil
}

// FindDueForReview runs the due query: active, mastery < 0.9,
// next_review <= now, category in {isolated, enhancement}, ordered
// next_review ASC then mastery_level ASC.
func (r *Repository) FindDueForReview(ctx context.Context, limit int) ([]*models.KnowledgePoint, error) {
	db, err := r.pool.DB()
	if err != nil {
		return nil, wrapConn(err)
	}
	query := `SELECT id, key_point, original_phrase, correction, explanation, category, subtype, custom_notes,
		mastery_level, mistake_count, correct_count, next_review, last_seen, created_at, last_modified,
		is_deleted, deleted_at, deleted_reason
		FROM knowledge_points
		WHERE is_deleted = 0 AND mastery_level < 0.9 AND next_review <= ?
		AND category IN (?, ?)
		ORDER BY next_review ASC, mastery_level ASC`
	args := []any{formatTime(time.Now()), string(models.CategoryIsolated), string(models.CategoryEnhancement)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.queryPoints(ctx, db, query, args...)
}

// FindByCategory filters active points by category and, optionally, an
// exact subtype, ordered created_at DESC.
func (r *Repository) FindByCategory(ctx context.Context, cat models.Category, subtype *string) ([]*models.KnowledgePoint, error) {
	db, err := r.pool.DB()
	if err != nil {
		return nil, wrapConn(err)
	}
	query := `SELECT id, key_point, original_phrase, correction, explanation, category, subtype, custom_notes,
		mastery_level, mistake_count, correct_count, next_review, last_seen, created_at, last_modified,
		is_deleted, deleted_at, deleted_reason
		FROM knowledge_points WHERE is_deleted = 0 AND category = ?`
	args := []any{string(cat)}
	if subtype != nil {
		query += " AND subtype = ?"
		args = append(args, *subtype)
	}
	query += " ORDER BY created_at DESC"
	return r.queryPoints(ctx, db, query, args...)
}

// Search does a case-insensitive substring match over key_point,
// original_phrase, correction, and explanation, ranked by which field
// matched (key_point first, then original_phrase, then correction, then
// explanation), then created_at DESC.
func (r *Repository) Search(ctx context.Context, keyword string, limit int) ([]*models.KnowledgePoint, error) {
	db, err := r.pool.DB()
	if err != nil {
		return nil, wrapConn(err)
	}
	like := "%" + strings.ToLower(keyword) + "%"
	query := `SELECT id, key_point, original_phrase, correction, explanation, category, subtype, custom_notes,
		mastery_level, mistake_count, correct_count, next_review, last_seen, created_at, last_modified,
		is_deleted, deleted_at, deleted_reason
		FROM knowledge_points
		WHERE is_deleted = 0 AND (
			LOWER(key_point) LIKE ? OR LOWER(original_phrase) LIKE ? OR LOWER(correction) LIKE ? OR LOWER(explanation) LIKE ?
		)
		ORDER BY
			CASE
				WHEN LOWER(key_point) LIKE ? THEN 0
				WHEN LOWER(original_phrase) LIKE ? THEN 1
				WHEN LOWER(correction) LIKE ? THEN 2
				ELSE 3
			END,
			created_at DESC`
	args := []any{like, like, like, like, like, like, like}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.queryPoints(ctx, db, query, args...)
}

// AddReviewExample appends a child row without touching the parent's
// mastery/schedule columns — callers that also need the mastery update
// call Update separately in the same logical operation.
func (r *Repository) AddReviewExample(ctx context.Context, pointID int64, ex models.ReviewExample) error {
	db, err := r.pool.DB()
	if err != nil {
		return wrapConn(err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin add-review-example tx: %w", err)
	}
	defer tx.Rollback()
	if err := insertReviewExample(ctx, tx, pointID, ex); err != nil {
		return err
	}
	return tx.Commit()
}

// RawStats is a coarse SQL-aggregate summary (active count,
// mastered/struggling/due counts, avg mastery, distinct categories, total
// review examples and their correct-count). It is a cheaper sibling of
// internal/statistics.Stats; the statistics pipeline does not consume it,
// and always re-derives its shape from ActiveFullForStatistics so every
// backend produces identical output.
type RawStats struct {
	ActiveCount        int
	MasteredCount      int // mastery >= 0.8
	StrugglingCount    int // mastery < 0.3
	DueCount           int
	AvgMastery         float64
	DistinctCategories int
	TotalReviews       int
	CorrectReviews     int
}

// Statistics computes RawStats in SQL. A missing review_examples table
// (legacy/partial migration) degrades total/correct reviews to zero rather
// than erroring; any other failure is still classified normally by
// internal/unifiederror.
func (r *Repository) Statistics(ctx context.Context) (RawStats, error) {
	db, err := r.pool.DB()
	if err != nil {
		return RawStats{}, wrapConn(err)
	}

	var stats RawStats
	row := db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN mastery_level >= 0.8 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN mastery_level < 0.3 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN mastery_level < 0.9 AND next_review <= ? THEN 1 ELSE 0 END), 0),
		COALESCE(AVG(mastery_level), 0),
		COUNT(DISTINCT category)
		FROM knowledge_points WHERE is_deleted = 0`, formatTime(time.Now()))
	if err := row.Scan(&stats.ActiveCount, &stats.MasteredCount, &stats.StrugglingCount, &stats.DueCount, &stats.AvgMastery, &stats.DistinctCategories); err != nil {
		return RawStats{}, fmt.Errorf("repository: aggregate statistics: %w: %w", err, unifiederror.ErrConnectionLost)
	}

	reviewRow := db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_correct THEN 1 ELSE 0 END), 0) FROM review_examples`)
	if err := reviewRow.Scan(&stats.TotalReviews, &stats.CorrectReviews); err != nil {
		if isMissingTable(err) {
			stats.TotalReviews, stats.CorrectReviews = 0, 0
		} else {
			return RawStats{}, fmt.Errorf("repository: aggregate review stats: %w: %w", err, unifiederror.ErrConnectionLost)
		}
	}

	return stats, nil
}

func wrapConn(err error) error {
	return fmt.Errorf("repository: acquire connection: %w: %w", err, unifiederror.ErrConnectionLost)
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

func isMissingTable(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table")
}
