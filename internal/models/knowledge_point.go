package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// OriginalError is the single practice event that caused a knowledge point
// to be created. Exactly one exists per point.
type OriginalError struct {
	ChineseSentence string
	UserAnswer      string
	CorrectAnswer   string
	Timestamp       time.Time
}

// ReviewExample is any subsequent practice involving the point, correct or
// not.
type ReviewExample struct {
	ChineseSentence string
	UserAnswer      string
	CorrectAnswer   string
	IsCorrect       bool
	Timestamp       time.Time
}

// VersionEntry is one append-only edit record.
type VersionEntry struct {
	Timestamp     time.Time
	Before        map[string]any
	After         map[string]any
	ChangedFields []string
}

// KnowledgePoint is the aggregate root of the domain. ID is assigned by
// the repository on create and is never mutated afterward.
type KnowledgePoint struct {
	ID int64

	KeyPoint        string
	OriginalPhrase  string
	Correction      string
	Explanation     string
	Category        Category
	Subtype         string
	Tags            []string // kept sorted; callers must not rely on insertion order
	CustomNotes     string

	MasteryLevel float64
	MistakeCount int
	CorrectCount int

	NextReview time.Time
	LastSeen   time.Time

	OriginalErr    OriginalError
	ReviewExamples []ReviewExample // newest first on read

	CreatedAt      time.Time
	LastModified   time.Time
	IsDeleted      bool
	DeletedAt      *time.Time
	DeletedReason  string
	VersionHistory []VersionEntry
}

// UniqueIdentifier returns the dedup triple: no two active points may
// share it.
func (kp *KnowledgePoint) UniqueIdentifier() (string, string, string) {
	return kp.KeyPoint, kp.OriginalPhrase, kp.Correction
}

// baseReviewDays maps a mastery level to the scheduler's base interval, in
// ascending mastery-threshold order.
func baseReviewDays(mastery float64) int {
	switch {
	case mastery < 0.3:
		return 1
	case mastery < 0.5:
		return 3
	case mastery < 0.7:
		return 7
	case mastery < 0.9:
		return 14
	default:
		return 30
	}
}

// ComputeNextReview implements the scheduling formula:
// days = max(1, floor(base_days * category.review_multiplier)),
// next_review = now + days, coerced so next_review >= lastSeen.
func ComputeNextReview(now time.Time, mastery float64, cat Category, lastSeen time.Time) time.Time {
	base := baseReviewDays(mastery)
	days := int(math.Floor(float64(base) * cat.ReviewMultiplier()))
	if days < 1 {
		days = 1
	}
	next := now.AddDate(0, 0, days)
	if next.Before(lastSeen) {
		return lastSeen
	}
	return next
}

// UpdateMastery applies the category-keyed mastery delta for a correct or
// incorrect practice, clamps to [0,1], bumps the matching counter,
// stamps LastSeen, and recomputes NextReview.
func (kp *KnowledgePoint) UpdateMastery(isCorrect bool, now time.Time) {
	if isCorrect {
		kp.MasteryLevel += kp.Category.MasteryIncrement()
		kp.CorrectCount++
	} else {
		kp.MasteryLevel -= kp.Category.MasteryDecrement()
		kp.MistakeCount++
	}
	kp.MasteryLevel = clamp01(kp.MasteryLevel)
	kp.LastSeen = now
	kp.NextReview = ComputeNextReview(now, kp.MasteryLevel, kp.Category, kp.LastSeen)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// editableFields is the whitelist Edit accepts; anything else is rejected.
var editableFields = map[string]bool{
	"key_point":       true,
	"original_phrase": true,
	"correction":      true,
	"explanation":     true,
	"category":        true,
	"subtype":         true,
	"tags":            true,
	"custom_notes":    true,
}

// snapshot captures the current value of every editable field.
func (kp *KnowledgePoint) snapshot() map[string]any {
	tags := make([]string, len(kp.Tags))
	copy(tags, kp.Tags)
	return map[string]any{
		"key_point":       kp.KeyPoint,
		"original_phrase": kp.OriginalPhrase,
		"correction":      kp.Correction,
		"explanation":     kp.Explanation,
		"category":        string(kp.Category),
		"subtype":         kp.Subtype,
		"tags":            tags,
		"custom_notes":    kp.CustomNotes,
	}
}

// Edit applies a structured update map: unknown fields are rejected,
// a before/after snapshot of the editable subset is taken, updates are
// applied (category coerced via ParseCategory), and one VersionEntry is
// appended; even a no-op edit still appends an entry, with
// ChangedFields empty.
func (kp *KnowledgePoint) Edit(updates map[string]any, now time.Time) (VersionEntry, error) {
	for field := range updates {
		if !editableFields[field] {
			return VersionEntry{}, fmt.Errorf("models: unknown editable field %q", field)
		}
	}

	before := kp.snapshot()

	if v, ok := updates["key_point"]; ok {
		kp.KeyPoint = v.(string)
	}
	if v, ok := updates["original_phrase"]; ok {
		kp.OriginalPhrase = v.(string)
	}
	if v, ok := updates["correction"]; ok {
		kp.Correction = v.(string)
	}
	if v, ok := updates["explanation"]; ok {
		kp.Explanation = v.(string)
	}
	if v, ok := updates["category"]; ok {
		cat, err := ParseCategory(fmt.Sprint(v))
		if err != nil {
			return VersionEntry{}, err
		}
		kp.Category = cat
	}
	if v, ok := updates["subtype"]; ok {
		kp.Subtype = v.(string)
	}
	if v, ok := updates["tags"]; ok {
		tags, ok := v.([]string)
		if !ok {
			return VersionEntry{}, fmt.Errorf("models: tags must be []string")
		}
		sorted := append([]string(nil), tags...)
		sort.Strings(sorted)
		kp.Tags = sorted
	}
	if v, ok := updates["custom_notes"]; ok {
		kp.CustomNotes = v.(string)
	}

	after := kp.snapshot()

	var changed []string
	for field := range editableFields {
		if !equalSnapshotValue(before[field], after[field]) {
			changed = append(changed, field)
		}
	}
	sort.Strings(changed)

	entry := VersionEntry{Timestamp: now, Before: before, After: after, ChangedFields: changed}
	kp.VersionHistory = append(kp.VersionHistory, entry)
	kp.LastModified = now

	return entry, nil
}

func equalSnapshotValue(a, b any) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as == bs
	}
	at, aok := a.([]string)
	bt, bok := b.([]string)
	if aok && bok {
		if len(at) != len(bt) {
			return false
		}
		for i := range at {
			if at[i] != bt[i] {
				return false
			}
		}
		return true
	}
	return false
}

// SoftDelete flips IsDeleted, stamping the audit fields.
func (kp *KnowledgePoint) SoftDelete(reason string, now time.Time) {
	kp.IsDeleted = true
	kp.DeletedAt = &now
	kp.DeletedReason = reason
	kp.LastModified = now
}

// Restore clears the soft-delete flag and audit fields.
func (kp *KnowledgePoint) Restore(now time.Time) {
	kp.IsDeleted = false
	kp.DeletedAt = nil
	kp.DeletedReason = ""
	kp.LastModified = now
}

// EligibleForPermanentDelete reports whether a soft-deleted point may be
// purged: older than the retention window AND not flagged high-value
// (mastery < 0.3 or mistake_count > 5 preserves it).
func (kp *KnowledgePoint) EligibleForPermanentDelete(now time.Time, retentionDays int) bool {
	if !kp.IsDeleted || kp.DeletedAt == nil {
		return false
	}
	if now.Sub(*kp.DeletedAt) < time.Duration(retentionDays)*24*time.Hour {
		return false
	}
	if kp.MasteryLevel < 0.3 || kp.MistakeCount > 5 {
		return false
	}
	return true
}
