package statistics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxchen228/linker/internal/models"
)

// samplePoint varies its sentences by id: the pipeline dedups by
// (sentence, answer, timestamp, type), so identical lineage across points
// would silently collapse and skew the counts the tests assert on.
func samplePoint(id int64, cat models.Category, mastery float64, now time.Time) *models.KnowledgePoint {
	return &models.KnowledgePoint{
		ID:           id,
		Category:     cat,
		Subtype:      "tense",
		MasteryLevel: mastery,
		NextReview:   now.Add(-time.Hour),
		LastSeen:     now.Add(-48 * time.Hour),
		OriginalErr: models.OriginalError{
			ChineseSentence: fmt.Sprintf("sentence-%d", id),
			UserAnswer:      "wrong",
			CorrectAnswer:   "right",
			Timestamp:       now.Add(-48 * time.Hour),
		},
		ReviewExamples: []models.ReviewExample{
			{ChineseSentence: fmt.Sprintf("review-%d", id), UserAnswer: "a2", CorrectAnswer: "a2", IsCorrect: true, Timestamp: now.Add(-24 * time.Hour)},
		},
	}
}

func TestExtractPracticeRecordsIncludesOriginalAndReviews(t *testing.T) {
	now := time.Now()
	kp := samplePoint(1, models.CategoryIsolated, 0.5, now)

	records := ExtractPracticeRecords([]*models.KnowledgePoint{kp})
	require.Len(t, records, 2)
	assert.False(t, records[0].IsCorrect)
	assert.Equal(t, RecordOriginal, records[0].RecordType)
	assert.True(t, records[1].IsCorrect)
	assert.Equal(t, RecordReview, records[1].RecordType)
}

func TestExtractPracticeRecordsDedupsAndSorts(t *testing.T) {
	now := time.Now()
	kp1 := samplePoint(1, models.CategoryIsolated, 0.5, now)
	kp2 := samplePoint(2, models.CategoryIsolated, 0.5, now)
	// Force an exact duplicate of kp1's original-error record.
	kp2.OriginalErr = kp1.OriginalErr
	kp2.ReviewExamples = nil

	records := ExtractPracticeRecords([]*models.KnowledgePoint{kp1, kp2})
	require.Len(t, records, 2) // kp1 original+review, kp2 original deduped away

	for i := 1; i < len(records); i++ {
		assert.False(t, records[i].Timestamp.Before(records[i-1].Timestamp))
	}
}

func TestCalculateProducesCanonicalShape(t *testing.T) {
	now := time.Now()
	points := []*models.KnowledgePoint{
		samplePoint(1, models.CategorySystematic, 0.1, now),
		samplePoint(2, models.CategoryIsolated, 0.5, now),
		samplePoint(3, models.CategoryEnhancement, 0.9, now),
	}

	stats := Calculate(points, now)

	assert.Equal(t, 3, stats.KnowledgePoints)
	assert.Equal(t, 6, stats.TotalPractices) // 2 records per point
	assert.Equal(t, 3, stats.CorrectCount)
	assert.Equal(t, 3, stats.MistakeCount)
	assert.InDelta(t, 0.5, stats.Accuracy, 0.0001)

	require.Len(t, stats.CategoryDistribution, 4)
	assert.Equal(t, models.CategorySystematic, stats.CategoryDistribution[0].Category)
	assert.Equal(t, models.CategoryIsolated, stats.CategoryDistribution[1].Category)
	assert.Equal(t, models.CategoryEnhancement, stats.CategoryDistribution[2].Category)
	assert.Equal(t, models.CategoryOther, stats.CategoryDistribution[3].Category)

	assert.Equal(t, 1, stats.PointsByMastery.Beginner)
	assert.Equal(t, 1, stats.PointsByMastery.Intermediate)
	assert.Equal(t, 1, stats.PointsByMastery.Advanced)
}

func TestCalculateIsBackendAgnostic(t *testing.T) {
	now := time.Now()
	pointsA := []*models.KnowledgePoint{samplePoint(1, models.CategoryIsolated, 0.4, now)}
	pointsB := []*models.KnowledgePoint{samplePoint(1, models.CategoryIsolated, 0.4, now)}

	assert.Equal(t, Calculate(pointsA, now), Calculate(pointsB, now))
}

func TestZeroShapeHasAllCategoriesAtZero(t *testing.T) {
	z := Zero()
	require.Len(t, z.CategoryDistribution, 4)
	for _, c := range z.CategoryDistribution {
		assert.Equal(t, 0, c.Count)
	}
	assert.Equal(t, 0, z.TotalPractices)
}
