package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxchen228/linker/internal/dbpool"
	"github.com/maxchen228/linker/internal/models"
	"github.com/maxchen228/linker/internal/unifiederror"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	dir := t.TempDir()
	settings := dbpool.DefaultSettings(filepath.Join(dir, "test.db"))
	pool := dbpool.New(settings, nil)
	require.NoError(t, pool.Connect(context.Background()))

	r := New(pool)
	require.NoError(t, r.Migrate(context.Background()))
	return r
}

func samplePoint(now time.Time) *models.KnowledgePoint {
	return &models.KnowledgePoint{
		KeyPoint:       "past tense",
		OriginalPhrase: "I go yesterday",
		Correction:     "I went yesterday",
		Explanation:    "irregular past tense verb",
		Category:       models.CategoryIsolated,
		Subtype:        "tense",
		Tags:           []string{"grammar", "verbs"},
		MasteryLevel:   0.2,
		NextReview:     now.Add(-time.Hour),
		LastSeen:       now.Add(-48 * time.Hour),
		OriginalErr: models.OriginalError{
			ChineseSentence: "我昨天去。",
			UserAnswer:      "I go yesterday",
			CorrectAnswer:   "I went yesterday",
			Timestamp:       now.Add(-48 * time.Hour),
		},
	}
}

func TestCreateAndFindByIDRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	kp := samplePoint(now)
	id, err := r.Create(ctx, kp)
	require.NoError(t, err)
	require.NotZero(t, id)

	found, err := r.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, "past tense", found.KeyPoint)
	assert.Equal(t, models.CategoryIsolated, found.Category)
	assert.Equal(t, []string{"grammar", "verbs"}, found.Tags)
	assert.Equal(t, "我昨天去。", found.OriginalErr.ChineseSentence)
	assert.False(t, found.IsDeleted)
}

func TestFindByIDOnMissingRowReturnsNil(t *testing.T) {
	r := newTestRepo(t)
	found, err := r.FindByID(context.Background(), 9999)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestCreateRejectsDuplicateTriple(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	kp1 := samplePoint(now)
	_, err := r.Create(ctx, kp1)
	require.NoError(t, err)

	kp2 := samplePoint(now)
	_, err = r.Create(ctx, kp2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, unifiederror.ErrDuplicate))
}

func TestUpdateRejectsSoftDeletedRow(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	kp := samplePoint(now)
	id, err := r.Create(ctx, kp)
	require.NoError(t, err)

	ok, err := r.Delete(ctx, id, "superseded")
	require.NoError(t, err)
	require.True(t, ok)

	kp.ID = id
	kp.MasteryLevel = 0.9
	err = r.Update(ctx, kp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, unifiederror.ErrNotFound))
}

func TestDeleteAndRestoreRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	kp := samplePoint(now)
	id, err := r.Create(ctx, kp)
	require.NoError(t, err)

	ok, err := r.Delete(ctx, id, "mistake entry")
	require.NoError(t, err)
	require.True(t, ok)

	active, err := r.FindAll(ctx, Filters{})
	require.NoError(t, err)
	assert.Empty(t, active)

	withDeleted, err := r.FindAll(ctx, Filters{IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, withDeleted, 1)
	assert.True(t, withDeleted[0].IsDeleted)
	assert.Equal(t, "mistake entry", withDeleted[0].DeletedReason)

	restored, err := r.Restore(ctx, id)
	require.NoError(t, err)
	require.True(t, restored)

	active, err = r.FindAll(ctx, Filters{})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.False(t, active[0].IsDeleted)
}

func TestFindDueForReviewExcludesMasteredAndSystematic(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	due := samplePoint(now)
	due.KeyPoint = "due point"
	_, err := r.Create(ctx, due)
	require.NoError(t, err)

	mastered := samplePoint(now)
	mastered.KeyPoint = "mastered point"
	mastered.MasteryLevel = 0.95
	_, err = r.Create(ctx, mastered)
	require.NoError(t, err)

	systematic := samplePoint(now)
	systematic.KeyPoint = "systematic point"
	systematic.Category = models.CategorySystematic
	_, err = r.Create(ctx, systematic)
	require.NoError(t, err)

	results, err := r.FindDueForReview(ctx, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "due point", results[0].KeyPoint)
}

func TestSearchRanksKeyPointMatchFirst(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	byExplanation := samplePoint(now)
	byExplanation.KeyPoint = "unrelated"
	byExplanation.OriginalPhrase = "phrase a"
	byExplanation.Correction = "correction a"
	byExplanation.Explanation = "mentions tense somewhere"
	_, err := r.Create(ctx, byExplanation)
	require.NoError(t, err)

	byKeyPoint := samplePoint(now)
	byKeyPoint.KeyPoint = "tense usage"
	byKeyPoint.OriginalPhrase = "phrase b"
	byKeyPoint.Correction = "correction b"
	byKeyPoint.Explanation = "something else entirely"
	_, err = r.Create(ctx, byKeyPoint)
	require.NoError(t, err)

	results, err := r.Search(ctx, "tense", 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "tense usage", results[0].KeyPoint)
}

func TestStatisticsAggregatesActivePoints(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	a := samplePoint(now)
	a.KeyPoint = "a"
	a.MasteryLevel = 0.85
	_, err := r.Create(ctx, a)
	require.NoError(t, err)

	b := samplePoint(now)
	b.KeyPoint = "b"
	b.MasteryLevel = 0.1
	_, err = r.Create(ctx, b)
	require.NoError(t, err)

	stats, err := r.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ActiveCount)
	assert.Equal(t, 1, stats.MasteredCount)
	assert.Equal(t, 1, stats.StrugglingCount)
}

func TestAppendVersionPersistsHistory(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	kp := samplePoint(now)
	id, err := r.Create(ctx, kp)
	require.NoError(t, err)

	entry, err := kp.Edit(map[string]any{"custom_notes": "double-checked"}, now.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, r.AppendVersion(ctx, id, entry))

	found, err := r.FindByID(ctx, id)
	require.NoError(t, err)
	require.Len(t, found.VersionHistory, 1)
	assert.Contains(t, found.VersionHistory[0].ChangedFields, "custom_notes")
}

func TestActiveFullForStatisticsLoadsLineage(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	kp := samplePoint(now)
	kp.ReviewExamples = []models.ReviewExample{
		{ChineseSentence: "s", UserAnswer: "a", CorrectAnswer: "a", IsCorrect: true, Timestamp: now.Add(-time.Hour)},
	}
	_, err := r.Create(ctx, kp)
	require.NoError(t, err)

	points, err := r.ActiveFullForStatistics(ctx)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "我昨天去。", points[0].OriginalErr.ChineseSentence)
	require.Len(t, points[0].ReviewExamples, 1)
}
