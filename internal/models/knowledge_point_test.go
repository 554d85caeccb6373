package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPoint(cat Category) *KnowledgePoint {
	return &KnowledgePoint{
		KeyPoint:       "動詞時態錯誤: go",
		OriginalPhrase: "go",
		Correction:     "went",
		Category:       cat,
	}
}

func TestUpdateMasteryClampsAndAdvancesSchedule(t *testing.T) {
	kp := newPoint(CategorySystematic)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	kp.UpdateMastery(false, now)

	assert.Equal(t, 0.0, kp.MasteryLevel, "decrement from 0 must clamp to the floor")
	assert.Equal(t, 1, kp.MistakeCount)
	assert.Equal(t, now, kp.LastSeen)
	assert.True(t, !kp.NextReview.Before(kp.LastSeen), "next_review must not precede last_seen")
	assert.Equal(t, now.AddDate(0, 0, 1), kp.NextReview)
}

func TestUpdateMasteryReviewSuccessRaisesMastery(t *testing.T) {
	kp := newPoint(CategoryIsolated)
	kp.MasteryLevel = 0.20
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	kp.UpdateMastery(true, now)

	assert.InDelta(t, 0.40, kp.MasteryLevel, 1e-9)
	assert.Equal(t, 1, kp.CorrectCount)
	assert.Equal(t, now.AddDate(0, 0, 3), kp.NextReview)
}

func TestUpdateMasteryClampsUpperBound(t *testing.T) {
	kp := newPoint(CategorySystematic)
	kp.MasteryLevel = 0.95
	kp.UpdateMastery(true, time.Now())
	assert.Equal(t, 1.0, kp.MasteryLevel)
}

func TestEditRejectsUnknownField(t *testing.T) {
	kp := newPoint(CategorySystematic)
	_, err := kp.Edit(map[string]any{"id": 5}, time.Now())
	require.Error(t, err)
}

func TestEditAppendsVersionHistoryEntry(t *testing.T) {
	kp := newPoint(CategorySystematic)
	now := time.Now()

	entry, err := kp.Edit(map[string]any{"explanation": "clarified"}, now)
	require.NoError(t, err)

	assert.Equal(t, []string{"explanation"}, entry.ChangedFields)
	assert.Len(t, kp.VersionHistory, 1)
	assert.Equal(t, "clarified", kp.Explanation)
}

func TestEditNoOpStillAppendsEmptyChangedFields(t *testing.T) {
	kp := newPoint(CategorySystematic)
	kp.Explanation = "already set"
	entry, err := kp.Edit(map[string]any{"explanation": "already set"}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, entry.ChangedFields)
	assert.Len(t, kp.VersionHistory, 1)
}

func TestEditCoercesCategory(t *testing.T) {
	kp := newPoint(CategorySystematic)
	_, err := kp.Edit(map[string]any{"category": "isolated"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, CategoryIsolated, kp.Category)
}

func TestEditInvalidCategoryIsRejected(t *testing.T) {
	kp := newPoint(CategorySystematic)
	_, err := kp.Edit(map[string]any{"category": "bogus"}, time.Now())
	require.Error(t, err)
}

func TestSoftDeleteAndRestoreRoundTrip(t *testing.T) {
	kp := newPoint(CategorySystematic)
	kp.KeyPoint = "x"
	before := kp.KeyPoint

	kp.SoftDelete("no longer relevant", time.Now())
	assert.True(t, kp.IsDeleted)
	require.NotNil(t, kp.DeletedAt)

	kp.Restore(time.Now())
	assert.False(t, kp.IsDeleted)
	assert.Nil(t, kp.DeletedAt)
	assert.Equal(t, before, kp.KeyPoint, "restore must not alter content")
}

func TestEligibleForPermanentDeletePreservesHighValuePoints(t *testing.T) {
	kp := newPoint(CategorySystematic)
	deletedAt := time.Now().Add(-60 * 24 * time.Hour)
	kp.IsDeleted = true
	kp.DeletedAt = &deletedAt
	kp.MasteryLevel = 0.1 // below preservation floor

	assert.False(t, kp.EligibleForPermanentDelete(time.Now(), 30))
}

func TestEligibleForPermanentDeleteRequiresRetentionWindow(t *testing.T) {
	kp := newPoint(CategorySystematic)
	deletedAt := time.Now().Add(-1 * 24 * time.Hour)
	kp.IsDeleted = true
	kp.DeletedAt = &deletedAt
	kp.MasteryLevel = 0.5
	kp.MistakeCount = 1

	assert.False(t, kp.EligibleForPermanentDelete(time.Now(), 30))
}

func TestEligibleForPermanentDeleteAllowsLowValueOldPoints(t *testing.T) {
	kp := newPoint(CategorySystematic)
	deletedAt := time.Now().Add(-60 * 24 * time.Hour)
	kp.IsDeleted = true
	kp.DeletedAt = &deletedAt
	kp.MasteryLevel = 0.5
	kp.MistakeCount = 1

	assert.True(t, kp.EligibleForPermanentDelete(time.Now(), 30))
}
