package scheduler

import (
	"testing"
	"time"

	"github.com/maxchen228/linker/internal/models"
	"github.com/stretchr/testify/assert"
)

func point(cat models.Category, mastery float64, nextReview time.Time, deleted bool) *models.KnowledgePoint {
	return &models.KnowledgePoint{Category: cat, MasteryLevel: mastery, NextReview: nextReview, IsDeleted: deleted}
}

func TestIsDueExcludesMasteredPoints(t *testing.T) {
	now := time.Now()
	kp := point(models.CategoryIsolated, 0.95, now.Add(-time.Hour), false)
	assert.False(t, IsDueForReview(kp, now))
}

func TestIsDueExcludesSystematicCategory(t *testing.T) {
	now := time.Now()
	kp := point(models.CategorySystematic, 0.2, now.Add(-time.Hour), false)
	assert.False(t, IsDueForReview(kp, now))
}

func TestIsDueExcludesDeletedPoints(t *testing.T) {
	now := time.Now()
	kp := point(models.CategoryIsolated, 0.2, now.Add(-time.Hour), true)
	assert.False(t, IsDueForReview(kp, now))
}

func TestIsDueIncludesOverdueIsolatedPoint(t *testing.T) {
	now := time.Now()
	kp := point(models.CategoryIsolated, 0.2, now.Add(-time.Hour), false)
	assert.True(t, IsDueForReview(kp, now))
}

func TestSelectDueForReviewOrdersByNextReviewThenMastery(t *testing.T) {
	now := time.Now()
	a := point(models.CategoryIsolated, 0.5, now.Add(-2*time.Hour), false)
	b := point(models.CategoryIsolated, 0.1, now.Add(-2*time.Hour), false)
	c := point(models.CategoryEnhancement, 0.3, now.Add(-time.Hour), false)

	got := SelectDueForReview([]*models.KnowledgePoint{a, c, b}, now, 0)

	assert.Equal(t, []*models.KnowledgePoint{b, a, c}, got)
}

func TestSelectDueForReviewRespectsLimit(t *testing.T) {
	now := time.Now()
	a := point(models.CategoryIsolated, 0.5, now.Add(-time.Hour), false)
	b := point(models.CategoryIsolated, 0.1, now.Add(-time.Hour), false)
	got := SelectDueForReview([]*models.KnowledgePoint{a, b}, now, 1)
	assert.Len(t, got, 1)
}

func TestRankByPriorityOrdersOverdueSystematicFirst(t *testing.T) {
	now := time.Now()
	overdueSystematic := point(models.CategorySystematic, 0.1, now.Add(-time.Hour), false)
	notYetDue := point(models.CategoryIsolated, 0.9, now.Add(time.Hour), false)

	ranked := RankByPriority([]*models.KnowledgePoint{notYetDue, overdueSystematic}, now)
	assert.Same(t, overdueSystematic, ranked[0])
}

func TestPriorityLevelBuckets(t *testing.T) {
	assert.Equal(t, PriorityUrgent, PriorityLevelFor(1))
	assert.Equal(t, PriorityImportant, PriorityLevelFor(4))
	assert.Equal(t, PriorityNormal, PriorityLevelFor(8))
	assert.Equal(t, PriorityDeferrable, PriorityLevelFor(12))
}
