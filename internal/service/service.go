// Package service implements the public façade tying every other
// component together. It is the only package that knows about all of
// internal/repository, internal/cache, internal/dailylimit,
// internal/fallback, internal/unifiederror, internal/scheduler and
// internal/models at once; nothing downstream imports it back.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/maxchen228/linker/internal/cache"
	"github.com/maxchen228/linker/internal/dailylimit"
	"github.com/maxchen228/linker/internal/dbpool"
	"github.com/maxchen228/linker/internal/fallback"
	"github.com/maxchen228/linker/internal/logger"
	"github.com/maxchen228/linker/internal/models"
	"github.com/maxchen228/linker/internal/repository"
	"github.com/maxchen228/linker/internal/scheduler"
	"github.com/maxchen228/linker/internal/statistics"
	"github.com/maxchen228/linker/internal/unifiederror"
)

// DefaultUserID is used by every call site that doesn't carry its own
// per-user identity — this system has no auth layer (multi-tenant
// authorization is an explicit Non-goal), but the daily-limit governor still
// keys its counters by user, so a single stable identity is used throughout
// a single-operator deployment.
const DefaultUserID = "default"

// Service is the engine's façade.
type Service struct {
	repo  *repository.Repository
	cache *cache.LayeredCache
	limit *dailylimit.Governor
	chain *fallback.Chain
	errs  *unifiederror.Handler
	log   logger.Logger
}

// New wires every dependency into one façade.
func New(repo *repository.Repository, layered *cache.LayeredCache, limit *dailylimit.Governor, chain *fallback.Chain, errs *unifiederror.Handler, log logger.Logger) *Service {
	return &Service{repo: repo, cache: layered, limit: limit, chain: chain, errs: errs, log: log}
}

// MistakeOutcome distinguishes what AddFromMistake actually did for a
// single error in the grading, since different errors in the same call can
// take different paths (review-appended vs newly-created vs denied).
type MistakeOutcome string

const (
	OutcomeReviewedExisting MistakeOutcome = "reviewed_existing"
	OutcomeCreated          MistakeOutcome = "created"
	OutcomeDenied           MistakeOutcome = "denied_daily_limit"
)

// MistakeResult is one ErrorAnalysis entry's processed result.
type MistakeResult struct {
	Outcome      MistakeOutcome
	Point        *models.KnowledgePoint
	DenialStatus *dailylimit.Status
}

// AddFromMistakeResult is AddFromMistake's overall return value.
type AddFromMistakeResult struct {
	ReviewRecorded bool // true when step 1 (overall-correct review) short-circuited
	Results        []MistakeResult
}

// AddFromMistake is the central "record a mistake" path: classify each
// graded error, then either append a review example to the existing point
// with the same (key point, phrase, correction) triple or create a new
// point, gated by the daily limit.
//
// reviewPointID is only consulted when grading.IsGenerallyCorrect && mode ==
// "review"; the caller already knows which point prompted the review
// session, so it must supply the identity explicitly.
func (s *Service) AddFromMistake(ctx context.Context, userID string, reviewPointID int64, chineseSentence, userAnswer string, grading models.Grading, mode string) (*AddFromMistakeResult, error) {
	if userID == "" {
		userID = DefaultUserID
	}

	if grading.IsGenerallyCorrect && mode == "review" {
		if reviewPointID == 0 {
			return nil, unifiederror.Classify(fmt.Errorf("add_from_mistake: review mode requires a point id: %w", unifiederror.ErrValidation), "add_from_mistake", nil)
		}
		kp, err := s.AddReviewSuccess(ctx, reviewPointID, chineseSentence, userAnswer, userAnswer)
		if err != nil {
			return nil, err
		}
		return &AddFromMistakeResult{ReviewRecorded: true, Results: []MistakeResult{{Outcome: OutcomeReviewedExisting, Point: kp}}}, nil
	}

	var results []MistakeResult
	for _, ea := range grading.ErrorAnalysis {
		result, err := s.applyOneError(ctx, userID, chineseSentence, userAnswer, ea)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	s.cache.InvalidateWrite()
	return &AddFromMistakeResult{Results: results}, nil
}

func (s *Service) applyOneError(ctx context.Context, userID, chineseSentence, userAnswer string, ea models.ErrorAnalysis) (MistakeResult, error) {
	category, subtype := models.Classify(ea.KeyPointSummary, ea.Explanation, ea.Severity)
	if ea.Category != nil {
		category = *ea.Category
	}

	keyPoint := ea.KeyPointSummary
	if ea.OriginalPhrase != "" {
		keyPoint = fmt.Sprintf("%s: %s", ea.KeyPointSummary, ea.OriginalPhrase)
	}

	existing, err := s.findByTriple(ctx, keyPoint, ea.OriginalPhrase, ea.Correction)
	if err != nil {
		return MistakeResult{}, err
	}

	now := time.Now()

	if existing != nil {
		return s.appendMistakeReview(ctx, existing, chineseSentence, userAnswer, ea, now)
	}

	kp := &models.KnowledgePoint{
		KeyPoint:       keyPoint,
		OriginalPhrase: ea.OriginalPhrase,
		Correction:     ea.Correction,
		Explanation:    ea.Explanation,
		Category:       category,
		Subtype:        subtype,
		MasteryLevel:   0,
		MistakeCount:   1,
		NextReview:     models.ComputeNextReview(now, 0, category, now),
		LastSeen:       now,
		OriginalErr: models.OriginalError{
			ChineseSentence: chineseSentence,
			UserAnswer:      userAnswer,
			CorrectAnswer:   ea.Correction,
			Timestamp:       now,
		},
		CreatedAt:    now,
		LastModified: now,
	}

	// The admission check, the counter increment, and the insert share one
	// immediate transaction: a failed insert rolls the increment back, so a
	// crash or collision can never burn quota without creating a point.
	// The governor gates by category name ("isolated"/"enhancement"), not
	// by the classifier's fine-grained subtype like "vocabulary".
	var status dailylimit.Status
	err = s.repo.RunImmediate(ctx, func(q dbpool.Queryer) error {
		st, err := s.limit.RecordAndCheckIn(ctx, q, userID, string(category), now)
		if err != nil {
			return err
		}
		status = st
		if !status.CanAdd {
			return nil
		}
		_, err = s.repo.CreateIn(ctx, q, kp)
		return err
	})
	if err != nil {
		if errors.Is(err, unifiederror.ErrDuplicate) {
			// Lost a concurrent race on the unique triple: another call
			// created the point between our lookup and the insert, and the
			// rollback has already undone our counter increment. Re-resolve
			// and record this mistake against the winner instead.
			winner, lookupErr := s.findByTriple(ctx, keyPoint, ea.OriginalPhrase, ea.Correction)
			if lookupErr != nil {
				return MistakeResult{}, lookupErr
			}
			if winner != nil {
				return s.appendMistakeReview(ctx, winner, chineseSentence, userAnswer, ea, now)
			}
		}
		return MistakeResult{}, s.fail(ctx, err, "add_from_mistake:create", fallback.Operation{Name: "add_from_mistake", Kind: fallback.KindMutation, ZeroValue: false})
	}
	if !status.CanAdd {
		return MistakeResult{Outcome: OutcomeDenied, DenialStatus: &status}, nil
	}
	if dailylimit.IsGated(string(category)) {
		s.cache.InvalidateDailyLimitWrite(civilDateKey(now))
	}
	return MistakeResult{Outcome: OutcomeCreated, Point: kp}, nil
}

// appendMistakeReview records one more incorrect practice against an
// existing point: a new review example plus a mastery decrement.
func (s *Service) appendMistakeReview(ctx context.Context, kp *models.KnowledgePoint, chineseSentence, userAnswer string, ea models.ErrorAnalysis, now time.Time) (MistakeResult, error) {
	example := models.ReviewExample{
		ChineseSentence: chineseSentence,
		UserAnswer:      userAnswer,
		CorrectAnswer:   ea.Correction,
		IsCorrect:       false,
		Timestamp:       now,
	}
	kp.ReviewExamples = append([]models.ReviewExample{example}, kp.ReviewExamples...)
	kp.UpdateMastery(false, now)

	if err := s.repo.AddReviewExample(ctx, kp.ID, example); err != nil {
		return MistakeResult{}, s.fail(ctx, err, "add_from_mistake:append_review", fallback.Operation{Name: "add_from_mistake", Kind: fallback.KindMutation, ZeroValue: false})
	}
	if err := s.repo.Update(ctx, kp); err != nil {
		return MistakeResult{}, s.fail(ctx, err, "add_from_mistake:update_mastery", fallback.Operation{Name: "add_from_mistake", Kind: fallback.KindMutation, ZeroValue: false})
	}
	return MistakeResult{Outcome: OutcomeReviewedExisting, Point: kp}, nil
}

func (s *Service) findByTriple(ctx context.Context, keyPoint, originalPhrase, correction string) (*models.KnowledgePoint, error) {
	points, err := s.repo.FindAll(ctx, repository.Filters{})
	if err != nil {
		return nil, s.fail(ctx, err, "add_from_mistake:lookup", fallback.Operation{Name: "find_all", Kind: fallback.KindList, ZeroValue: []*models.KnowledgePoint{}})
	}
	for _, kp := range points {
		k, o, c := kp.UniqueIdentifier()
		if k == keyPoint && o == originalPhrase && c == correction {
			full, err := s.repo.FindByID(ctx, kp.ID)
			if err != nil {
				return nil, s.fail(ctx, err, "add_from_mistake:lookup_full", fallback.Operation{Name: "find_by_id", Kind: fallback.KindSingle})
			}
			return full, nil
		}
	}
	return nil, nil
}

func civilDateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// fail funnels any failure through the single error-handler boundary. When the chain
// handles the error, fail returns nil and the degraded value is dropped, so
// the caller hands back its zero result with no error (the review command
// reports such a nil point as "could not be updated right now"); otherwise
// it returns the classified *unifiederror.UnifiedError.
func (s *Service) fail(ctx context.Context, err error, op string, fbOp fallback.Operation) error {
	if fbOp.Name == "" {
		fbOp.Name = op
	}
	_, handled, ue := s.errs.Handle(ctx, err, fbOp)
	if handled {
		return nil
	}
	return ue
}

// UpdateKnowledgePoint loads a point, applies a mastery update, persists it,
// and invalidates the write-affected cache categories.
func (s *Service) UpdateKnowledgePoint(ctx context.Context, id int64, isCorrect bool) (*models.KnowledgePoint, error) {
	kp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, err, "update_knowledge_point", fallback.Operation{Name: "update_knowledge_point", Kind: fallback.KindSingle})
	}
	if kp == nil || kp.IsDeleted {
		return nil, s.fail(ctx, unifiederror.ErrNotFound, "update_knowledge_point", fallback.Operation{Name: "update_knowledge_point", Kind: fallback.KindSingle})
	}

	kp.UpdateMastery(isCorrect, time.Now())
	if err := s.repo.Update(ctx, kp); err != nil {
		return nil, s.fail(ctx, err, "update_knowledge_point:persist", fallback.Operation{Name: "update_knowledge_point", Kind: fallback.KindMutation, ZeroValue: false})
	}
	s.cache.InvalidateWrite()
	return kp, nil
}

// AddReviewSuccess appends a correct ReviewExample, updates mastery, and
// persists/invalidates.
func (s *Service) AddReviewSuccess(ctx context.Context, id int64, chineseSentence, userAnswer, correctAnswer string) (*models.KnowledgePoint, error) {
	kp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, err, "add_review_success", fallback.Operation{Name: "add_review_success", Kind: fallback.KindSingle})
	}
	if kp == nil || kp.IsDeleted {
		return nil, s.fail(ctx, unifiederror.ErrNotFound, "add_review_success", fallback.Operation{Name: "add_review_success", Kind: fallback.KindSingle})
	}

	now := time.Now()
	example := models.ReviewExample{ChineseSentence: chineseSentence, UserAnswer: userAnswer, CorrectAnswer: correctAnswer, IsCorrect: true, Timestamp: now}
	kp.ReviewExamples = append([]models.ReviewExample{example}, kp.ReviewExamples...)
	kp.UpdateMastery(true, now)

	if err := s.repo.AddReviewExample(ctx, id, example); err != nil {
		return nil, s.fail(ctx, err, "add_review_success:append", fallback.Operation{Name: "add_review_success", Kind: fallback.KindMutation, ZeroValue: false})
	}
	if err := s.repo.Update(ctx, kp); err != nil {
		return nil, s.fail(ctx, err, "add_review_success:persist", fallback.Operation{Name: "add_review_success", Kind: fallback.KindMutation, ZeroValue: false})
	}
	s.cache.InvalidateWrite()
	return kp, nil
}

// Edit loads a point, applies a structured update map, persists the mutated
// row plus its new version-history entry, invalidates, and returns the
// appended entry.
func (s *Service) Edit(ctx context.Context, id int64, updates map[string]any) (models.VersionEntry, error) {
	kp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return models.VersionEntry{}, s.fail(ctx, err, "edit", fallback.Operation{Name: "edit", Kind: fallback.KindSingle})
	}
	if kp == nil || kp.IsDeleted {
		return models.VersionEntry{}, s.fail(ctx, unifiederror.ErrNotFound, "edit", fallback.Operation{Name: "edit", Kind: fallback.KindSingle})
	}

	entry, err := kp.Edit(updates, time.Now())
	if err != nil {
		return models.VersionEntry{}, s.fail(ctx, fmt.Errorf("%w: %w", err, unifiederror.ErrValidation), "edit", fallback.Operation{Name: "edit"})
	}

	if err := s.repo.Update(ctx, kp); err != nil {
		return models.VersionEntry{}, s.fail(ctx, err, "edit:persist", fallback.Operation{Name: "edit", Kind: fallback.KindMutation, ZeroValue: false})
	}
	s.cache.InvalidateWrite()
	return entry, nil
}

// SoftDelete delegates straight to the repository, invalidating on success.
func (s *Service) SoftDelete(ctx context.Context, id int64, reason string) (bool, error) {
	ok, err := s.repo.Delete(ctx, id, reason)
	if err != nil {
		return false, s.fail(ctx, err, "soft_delete", fallback.Operation{Name: "soft_delete", Kind: fallback.KindMutation, ZeroValue: false})
	}
	if ok {
		s.cache.InvalidateWrite()
	}
	return ok, nil
}

// Restore delegates straight to the repository, invalidating on success.
func (s *Service) Restore(ctx context.Context, id int64) (bool, error) {
	ok, err := s.repo.Restore(ctx, id)
	if err != nil {
		return false, s.fail(ctx, err, "restore", fallback.Operation{Name: "restore", Kind: fallback.KindMutation, ZeroValue: false})
	}
	if ok {
		s.cache.InvalidateWrite()
	}
	return ok, nil
}

// Search is cached under the search category's TTL.
func (s *Service) Search(ctx context.Context, keyword string, limit int) ([]*models.KnowledgePoint, error) {
	key := fmt.Sprintf("%s:%d", keyword, limit)
	v, err := s.cache.GetOrComputeAsync(ctx, cache.CategorySearch, key, func(ctx context.Context) (any, error) {
		return s.repo.Search(ctx, keyword, limit)
	}, false)
	if err != nil {
		degraded, handled, ue := s.errs.Handle(ctx, err, fallback.Operation{Name: "search", Kind: fallback.KindList, ZeroValue: []*models.KnowledgePoint{}})
		if !handled {
			return nil, ue
		}
		return asPoints(degraded), nil
	}
	points := v.([]*models.KnowledgePoint)
	s.chain.RecordSuccess("search", points)
	return points, nil
}

// FindByCategory is cached under the knowledge category.
func (s *Service) FindByCategory(ctx context.Context, cat models.Category, subtype *string) ([]*models.KnowledgePoint, error) {
	key := string(cat)
	if subtype != nil {
		key += ":" + *subtype
	}
	v, err := s.cache.GetOrComputeAsync(ctx, cache.CategoryKnowledge, key, func(ctx context.Context) (any, error) {
		return s.repo.FindByCategory(ctx, cat, subtype)
	}, false)
	if err != nil {
		degraded, handled, ue := s.errs.Handle(ctx, err, fallback.Operation{Name: "find_by_category", Kind: fallback.KindList, ZeroValue: []*models.KnowledgePoint{}})
		if !handled {
			return nil, ue
		}
		return asPoints(degraded), nil
	}
	points := v.([]*models.KnowledgePoint)
	s.chain.RecordSuccess("find_by_category", points)
	return points, nil
}

// GetReviewCandidates is cached under the review category per the 120s TTL.
func (s *Service) GetReviewCandidates(ctx context.Context, limit int) ([]*models.KnowledgePoint, error) {
	key := fmt.Sprintf("limit=%d", limit)
	v, err := s.cache.GetOrComputeAsync(ctx, cache.CategoryReview, key, func(ctx context.Context) (any, error) {
		return s.repo.FindDueForReview(ctx, limit)
	}, false)
	if err != nil {
		degraded, handled, ue := s.errs.Handle(ctx, err, fallback.Operation{Name: "get_review_candidates", Kind: fallback.KindList, ZeroValue: []*models.KnowledgePoint{}})
		if !handled {
			return nil, ue
		}
		return asPoints(degraded), nil
	}
	points := v.([]*models.KnowledgePoint)
	s.chain.RecordSuccess("get_review_candidates", points)
	return points, nil
}

func asPoints(v any) []*models.KnowledgePoint {
	if v == nil {
		return nil
	}
	if d, ok := v.(fallback.Degraded); ok {
		v = d.Value
	}
	points, _ := v.([]*models.KnowledgePoint)
	return points
}

// GetStatistics runs the statistics pipeline over every active point with full
// lineage, cached 60s.
func (s *Service) GetStatistics(ctx context.Context) (statistics.Stats, error) {
	v, err := s.cache.GetOrComputeAsync(ctx, cache.CategoryStatistics, "all", func(ctx context.Context) (any, error) {
		points, err := s.repo.ActiveFullForStatistics(ctx)
		if err != nil {
			return nil, err
		}
		return statistics.Calculate(points, time.Now()), nil
	}, false)
	if err != nil {
		degraded, handled, ue := s.errs.Handle(ctx, err, fallback.Operation{Name: "get_statistics", Kind: fallback.KindStats, ZeroValue: statistics.Zero()})
		if !handled {
			return statistics.Stats{}, ue
		}
		if d, ok := degraded.(fallback.Degraded); ok {
			if st, ok := d.Value.(statistics.Stats); ok {
				return st, nil
			}
		}
		return statistics.Zero(), nil
	}
	stats := v.(statistics.Stats)
	s.chain.RecordSuccess("get_statistics", stats)
	return stats, nil
}

// Recommendations is GetRecommendations's return shape.
type Recommendations struct {
	Recommendations []string
	FocusCategories []models.Category
	DifficultyLevel int
	PriorityPoints  []*models.KnowledgePoint
}

type subtypeBucket struct {
	category     models.Category
	subtype      string
	count        int
	masterySum   float64
	mostRecent   time.Time
}

// GetRecommendations partitions active points by subtype, scores each
// bucket by mastery and mistake recency, and derives focus areas, a
// difficulty level, and up to ten priority points.
func (s *Service) GetRecommendations(ctx context.Context) (Recommendations, error) {
	points, err := s.repo.FindAll(ctx, repository.Filters{})
	if err != nil {
		return Recommendations{}, s.fail(ctx, err, "get_recommendations", fallback.Operation{Name: "get_recommendations", Kind: fallback.KindSingle})
	}

	buckets := map[string]*subtypeBucket{}
	var masterySum float64
	for _, kp := range points {
		b, ok := buckets[kp.Subtype]
		if !ok {
			b = &subtypeBucket{category: kp.Category, subtype: kp.Subtype}
			buckets[kp.Subtype] = b
		}
		b.count++
		b.masterySum += kp.MasteryLevel
		if kp.LastSeen.After(b.mostRecent) {
			b.mostRecent = kp.LastSeen
		}
		masterySum += kp.MasteryLevel
	}

	var ranked []*subtypeBucket
	for _, b := range buckets {
		ranked = append(ranked, b)
	}
	now := time.Now()
	sort.SliceStable(ranked, func(i, j int) bool {
		return bucketScore(ranked[i], now) < bucketScore(ranked[j], now)
	})

	var recs []string
	var focus []models.Category
	seenFocus := map[models.Category]bool{}
	for i, b := range ranked {
		if i >= 3 {
			break
		}
		avg := b.masterySum / float64(b.count)
		recs = append(recs, fmt.Sprintf("Focus on %s (%s): average mastery %.0f%% across %d point(s)", b.subtype, b.category.DisplayLabel(), avg*100, b.count))
		if len(focus) < 2 && !seenFocus[b.category] {
			focus = append(focus, b.category)
			seenFocus[b.category] = true
		}
	}

	difficulty := 1
	if len(points) > 0 {
		avgMastery := masterySum / float64(len(points))
		switch {
		case avgMastery < 0.3:
			difficulty = 1
		case avgMastery < 0.6:
			difficulty = 2
		default:
			difficulty = 3
		}
	}

	priority := s.priorityPoints(points, now, 10)

	return Recommendations{Recommendations: recs, FocusCategories: focus, DifficultyLevel: difficulty, PriorityPoints: priority}, nil
}

func bucketScore(b *subtypeBucket, now time.Time) float64 {
	avg := b.masterySum / float64(b.count)
	recencyDays := now.Sub(b.mostRecent).Hours() / 24
	if recencyDays < 0 {
		recencyDays = 0
	}
	// Lower mastery and more recent mistakes both push a bucket toward the
	// front; recency is damped (divided by 30) so it only tie-breaks among
	// similarly-struggling buckets rather than dominating mastery.
	return avg + recencyDays/30
}

// priorityPoints selects up to limit points: overdue first, then low-mastery
// systematic points, then other low-mastery points, skipping duplicates.
func (s *Service) priorityPoints(points []*models.KnowledgePoint, now time.Time, limit int) []*models.KnowledgePoint {
	seen := map[int64]bool{}
	var out []*models.KnowledgePoint

	add := func(kp *models.KnowledgePoint) bool {
		if seen[kp.ID] {
			return false
		}
		seen[kp.ID] = true
		out = append(out, kp)
		return len(out) >= limit
	}

	for _, kp := range scheduler.SelectDueForReview(points, now, 0) {
		if add(kp) {
			return out
		}
	}

	var systematic []*models.KnowledgePoint
	for _, kp := range points {
		if !kp.IsDeleted && kp.Category == models.CategorySystematic && kp.MasteryLevel < 0.5 {
			systematic = append(systematic, kp)
		}
	}
	sort.SliceStable(systematic, func(i, j int) bool { return systematic[i].MasteryLevel < systematic[j].MasteryLevel })
	for _, kp := range systematic {
		if add(kp) {
			return out
		}
	}

	var other []*models.KnowledgePoint
	for _, kp := range points {
		if !kp.IsDeleted && kp.Category != models.CategorySystematic && kp.MasteryLevel < 0.5 {
			other = append(other, kp)
		}
	}
	sort.SliceStable(other, func(i, j int) bool { return other[i].MasteryLevel < other[j].MasteryLevel })
	for _, kp := range other {
		if add(kp) {
			return out
		}
	}

	return out
}

// PurgeResult is PermanentDeleteOld's return shape.
type PurgeResult struct {
	Scanned    int
	DeletedIDs []int64
	Preserved  int
}

// PermanentDeleteOld scans soft-deleted points older than days, preserving
// anything with low mastery or a high mistake count, and purges the
// remainder unless dryRun is set.
func (s *Service) PermanentDeleteOld(ctx context.Context, days int, dryRun bool) (PurgeResult, error) {
	points, err := s.repo.FindAll(ctx, repository.Filters{IncludeDeleted: true})
	if err != nil {
		return PurgeResult{}, s.fail(ctx, err, "permanent_delete_old", fallback.Operation{Name: "permanent_delete_old", Kind: fallback.KindSingle})
	}

	now := time.Now()
	var result PurgeResult
	for _, kp := range points {
		if !kp.IsDeleted {
			continue
		}
		result.Scanned++
		if !kp.EligibleForPermanentDelete(now, days) {
			result.Preserved++
			continue
		}
		result.DeletedIDs = append(result.DeletedIDs, kp.ID)
	}

	if dryRun {
		return result, nil
	}

	for _, id := range result.DeletedIDs {
		if err := s.repo.PermanentDelete(ctx, id); err != nil {
			return result, s.fail(ctx, err, "permanent_delete_old:purge", fallback.Operation{Name: "permanent_delete_old", Kind: fallback.KindMutation, ZeroValue: false})
		}
	}
	if len(result.DeletedIDs) > 0 {
		s.cache.InvalidateWrite()
	}
	return result, nil
}

// CleanupCache evicts expired cache entries and returns how many were
// removed, for the periodic sweep cmd/linker's serve command runs via
// robfig/cron.
func (s *Service) CleanupCache() int {
	return s.cache.CleanupExpired()
}

// CheckDailyLimit exposes the governor's read-only admission check for
// callers (cmd/linker's "limit status") that want to inspect state
// without recording a new practice. Results are cached per (user,
// day) under the limit_status category; AddFromMistake's counter writes
// invalidate that day's entries, so a cached denial never outlives the
// state that produced it by more than the category TTL.
func (s *Service) CheckDailyLimit(ctx context.Context, userID, subtype string) (dailylimit.Status, error) {
	if userID == "" {
		userID = DefaultUserID
	}
	now := time.Now()
	// Day-first key so InvalidateDailyLimitWrite's day-scoped pattern
	// matches every user's entry for that day.
	key := fmt.Sprintf("%s:%s:%s", civilDateKey(now), userID, subtype)
	v, err := s.cache.GetOrComputeAsync(ctx, cache.CategoryLimitStatus, key, func(ctx context.Context) (any, error) {
		return s.limit.Check(ctx, userID, subtype, now)
	}, false)
	if err != nil {
		return dailylimit.Status{}, s.fail(ctx, err, "check_daily_limit", fallback.Operation{Name: "check_daily_limit", Kind: fallback.KindSingle})
	}
	return v.(dailylimit.Status), nil
}

// UpdateDailyLimitSettings exposes the governor's per-user settings update. Both the
// settings cache and every cached limit status are dropped: a changed limit
// immediately changes every admission answer.
func (s *Service) UpdateDailyLimitSettings(ctx context.Context, settings dailylimit.UserSettings) error {
	if err := s.limit.UpdateSettings(ctx, settings); err != nil {
		return err
	}
	s.cache.InvalidateCategory(cache.CategoryPreferences)
	s.cache.InvalidateCategory(cache.CategoryLimitStatus)
	return nil
}
