// Package statistics implements the single extract-and-aggregate
// pipeline that produces the canonical statistics shape every surface
// consumes. Its defining property is that "practices" means exactly what
// this package extracts — no other source may contribute records, which is
// what guarantees the same output regardless of which repository backend
// produced the input knowledge points.
package statistics

import (
	"sort"
	"time"

	"github.com/maxchen228/linker/internal/models"
	"github.com/maxchen228/linker/internal/scheduler"
)

// RecordType distinguishes a point's one original error from its review
// examples, used as part of the dedup key.
type RecordType string

const (
	RecordOriginal RecordType = "original"
	RecordReview   RecordType = "review"
)

// PracticeRecord is one practice event extracted from a knowledge point:
// its original error (always incorrect) or one of its review examples.
type PracticeRecord struct {
	ChineseSentence string
	UserAnswer      string
	CorrectAnswer   string
	IsCorrect       bool
	Timestamp       time.Time
	RecordType      RecordType
	PointID         int64
}

func dedupKey(r PracticeRecord) [4]string {
	return [4]string{r.ChineseSentence, r.UserAnswer, r.Timestamp.UTC().Format(time.RFC3339Nano), string(r.RecordType)}
}

// ExtractPracticeRecords is the normative definition of "practices":
// each active knowledge point contributes exactly one original-
// error record (is_correct=false) plus one record per review example,
// preserving that example's is_correct. No other source may contribute.
func ExtractPracticeRecords(points []*models.KnowledgePoint) []PracticeRecord {
	var out []PracticeRecord
	for _, kp := range points {
		out = append(out, PracticeRecord{
			ChineseSentence: kp.OriginalErr.ChineseSentence,
			UserAnswer:      kp.OriginalErr.UserAnswer,
			CorrectAnswer:   kp.OriginalErr.CorrectAnswer,
			IsCorrect:       false,
			Timestamp:       kp.OriginalErr.Timestamp,
			RecordType:      RecordOriginal,
			PointID:         kp.ID,
		})
		for _, ex := range kp.ReviewExamples {
			out = append(out, PracticeRecord{
				ChineseSentence: ex.ChineseSentence,
				UserAnswer:      ex.UserAnswer,
				CorrectAnswer:   ex.CorrectAnswer,
				IsCorrect:       ex.IsCorrect,
				Timestamp:       ex.Timestamp,
				RecordType:      RecordReview,
				PointID:         kp.ID,
			})
		}
	}
	return dedupAndSort(out)
}

func dedupAndSort(records []PracticeRecord) []PracticeRecord {
	seen := make(map[[4]string]bool, len(records))
	out := make([]PracticeRecord, 0, len(records))
	for _, r := range records {
		key := dedupKey(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// MasteryBuckets buckets active points into three tiers.
type MasteryBuckets struct {
	Beginner     int // mastery < 0.3
	Intermediate int // 0.3 <= mastery < 0.7
	Advanced     int // mastery >= 0.7
}

// Stats is the single canonical statistics shape, identical regardless of
// which repository backend supplied its inputs.
type Stats struct {
	TotalPractices       int
	CorrectCount         int
	MistakeCount         int
	Accuracy             float64
	KnowledgePoints      int
	AvgMastery           float64
	CategoryDistribution []CategoryCount
	SubtypeDistribution  map[string]int
	DueReviews           int
	PointsByMastery      MasteryBuckets
}

// CategoryCount pairs a category's display label with its count, kept as
// an ordered slice (not a plain map) so CategoryDisplayOrder is preserved
// byte-for-byte across encodings.
type CategoryCount struct {
	Category Category `json:"category"`
	Label    string   `json:"label"`
	Count    int      `json:"count"`
}

// Category re-exports models.Category so callers of this package don't
// need to import internal/models just to read a CategoryCount.
type Category = models.Category

// Calculate runs the full pipeline: extract practice records, dedup/sort,
// then compute every aggregate in the canonical shape.
func Calculate(points []*models.KnowledgePoint, now time.Time) Stats {
	records := ExtractPracticeRecords(points)

	s := Stats{
		TotalPractices:      len(records),
		KnowledgePoints:     len(points),
		SubtypeDistribution: map[string]int{},
	}

	for _, r := range records {
		if r.IsCorrect {
			s.CorrectCount++
		} else {
			s.MistakeCount++
		}
	}
	if s.TotalPractices > 0 {
		s.Accuracy = float64(s.CorrectCount) / float64(s.TotalPractices)
	}

	categoryCounts := make(map[models.Category]int)
	var masterySum float64
	for _, kp := range points {
		masterySum += kp.MasteryLevel
		categoryCounts[kp.Category]++
		s.SubtypeDistribution[kp.Subtype]++

		switch {
		case kp.MasteryLevel < 0.3:
			s.PointsByMastery.Beginner++
		case kp.MasteryLevel < 0.7:
			s.PointsByMastery.Intermediate++
		default:
			s.PointsByMastery.Advanced++
		}
	}
	if len(points) > 0 {
		s.AvgMastery = masterySum / float64(len(points))
	}

	for _, cat := range models.CategoryDisplayOrder() {
		s.CategoryDistribution = append(s.CategoryDistribution, CategoryCount{
			Category: cat,
			Label:    cat.DisplayLabel(),
			Count:    categoryCounts[cat],
		})
	}

	s.DueReviews = len(scheduler.SelectDueForReview(points, now, 0))

	return s
}

// Zero returns the zero-filled shape GracefulDegradation hands back when
// statistics cannot be computed.
func Zero() Stats {
	s := Stats{SubtypeDistribution: map[string]int{}}
	for _, cat := range models.CategoryDisplayOrder() {
		s.CategoryDistribution = append(s.CategoryDistribution, CategoryCount{Category: cat, Label: cat.DisplayLabel(), Count: 0})
	}
	return s
}
