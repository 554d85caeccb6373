// Package scheduler implements the due-for-review predicate and the
// review-priority ranking that sit on top of the pure knowledge-point
// model in internal/models. The mastery-update/next-review arithmetic
// itself lives on models.KnowledgePoint since it is part of the aggregate's
// own invariants; this package is the read-side query logic that consumes
// the resulting schedule.
package scheduler

import (
	"math"
	"sort"
	"time"

	"github.com/maxchen228/linker/internal/models"
)

// PriorityLevel buckets a review-priority score into a human tier.
type PriorityLevel string

const (
	PriorityUrgent     PriorityLevel = "urgent"
	PriorityImportant  PriorityLevel = "important"
	PriorityNormal     PriorityLevel = "normal"
	PriorityDeferrable PriorityLevel = "deferrable"
)

// IsDueForReview reports whether a point belongs in the rote-recall
// review queue: not deleted, mastery
// below the "mastered" threshold, past its scheduled date, and in a
// category the rote-recall queue targets (systematic errors surface via
// the recommendation path instead, which groups by subtype).
func IsDueForReview(kp *models.KnowledgePoint, now time.Time) bool {
	if kp.IsDeleted {
		return false
	}
	if kp.MasteryLevel >= 0.9 {
		return false
	}
	if kp.NextReview.After(now) {
		return false
	}
	switch kp.Category {
	case models.CategoryIsolated, models.CategoryEnhancement:
		return true
	default:
		return false
	}
}

// SelectDueForReview filters to due points and sorts them next_review ASC,
// mastery_level ASC, then truncates to limit (0 = unlimited).
func SelectDueForReview(points []*models.KnowledgePoint, now time.Time, limit int) []*models.KnowledgePoint {
	var due []*models.KnowledgePoint
	for _, kp := range points {
		if IsDueForReview(kp, now) {
			due = append(due, kp)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		if !due[i].NextReview.Equal(due[j].NextReview) {
			return due[i].NextReview.Before(due[j].NextReview)
		}
		return due[i].MasteryLevel < due[j].MasteryLevel
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due
}

// ReviewPriorityScore computes the recommendation ranking score: lower is higher
// priority. overdue points get no lateness bonus; points not yet due are
// penalized by +10 so they sort after every overdue item.
func ReviewPriorityScore(kp *models.KnowledgePoint, now time.Time) float64 {
	overdue := !kp.NextReview.After(now)
	score := float64(kp.Category.Priority())
	if !overdue {
		score += 10
	}
	score += (1 - kp.MasteryLevel) * 5
	score += math.Min(float64(kp.MistakeCount)*0.1, 2.0)
	return score
}

// PriorityLevelFor buckets a score into one of four tiers. Thresholds are
// chosen so the bulk of an actively-studied deck lands in "normal", with
// genuinely overdue systematic errors surfacing as "urgent".
func PriorityLevelFor(score float64) PriorityLevel {
	switch {
	case score < 3:
		return PriorityUrgent
	case score < 6:
		return PriorityImportant
	case score < 10:
		return PriorityNormal
	default:
		return PriorityDeferrable
	}
}

// RankByPriority sorts points ascending by ReviewPriorityScore (most
// urgent first).
func RankByPriority(points []*models.KnowledgePoint, now time.Time) []*models.KnowledgePoint {
	ranked := make([]*models.KnowledgePoint, len(points))
	copy(ranked, points)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ReviewPriorityScore(ranked[i], now) < ReviewPriorityScore(ranked[j], now)
	})
	return ranked
}
