package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"test-service/internal/apperror"
	"test-service/internal/models"
	"test-service/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// snapshotWindow is the trailing window a daily snapshot aggregates over.
const snapshotWindow = 24 * time.Hour

type AnalyticsService struct {
	Tests     *repository.TestRepository
	Questions *repository.QuestionRepository
	Attempts  *repository.AttemptRepository
	Responses *repository.ResponseRepository
	Snapshots *repository.SnapshotRepository

	Cache    *redis.Client
	CacheTTL time.Duration
}

func NewAnalyticsService(
	tests *repository.TestRepository,
	questions *repository.QuestionRepository,
	attempts *repository.AttemptRepository,
	responses *repository.ResponseRepository,
	snapshots *repository.SnapshotRepository,
	cache *redis.Client,
	cacheTTL time.Duration,
) *AnalyticsService {
	return &AnalyticsService{
		Tests:     tests,
		Questions: questions,
		Attempts:  attempts,
		Responses: responses,
		Snapshots: snapshots,
		Cache:     cache,
		CacheTTL:  cacheTTL,
	}
}

// GenerateDailySnapshot rolls up the trailing day of attempts into one
// snapshot per category. A category that fails is logged and skipped so the
// other categories still get their snapshot.
func (s *AnalyticsService) GenerateDailySnapshot(ctx context.Context) error {
	now := time.Now()
	var failed int
	for _, category := range models.SnapshotCategories {
		if err := s.generateCategorySnapshot(ctx, category, now); err != nil {
			failed++
			log.Printf("Warning: snapshot generation failed for category %s: %v", category, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("snapshot generation failed for %d of %d categories", failed, len(models.SnapshotCategories))
	}
	return nil
}

func (s *AnalyticsService) generateCategorySnapshot(ctx context.Context, category models.TestCategory, now time.Time) error {
	tests, err := s.Tests.FindByCategory(ctx, category)
	if err != nil {
		return err
	}

	testIDs := make([]string, len(tests))
	for i, t := range tests {
		testIDs[i] = t.ID
	}
	attempts, err := s.Attempts.FindByTestIDsSince(ctx, testIDs, now.Add(-snapshotWindow))
	if err != nil {
		return err
	}

	snapshot := buildDailySnapshot(now, category, tests, attempts)
	if err := s.Snapshots.Upsert(ctx, snapshot); err != nil {
		return err
	}
	s.invalidateDashboardCache(ctx, category)
	return nil
}

// buildDailySnapshot aggregates one category's tests and attempts into a
// snapshot document. Pure over its inputs; rerunning it for the same day and
// data produces an identical snapshot.
func buildDailySnapshot(now time.Time, category models.TestCategory, tests []models.Test, attempts []models.TestAttempt) *models.AnalyticsSnapshot {
	snapshot := &models.AnalyticsSnapshot{
		SnapshotDate: now,
		SnapshotType: models.SnapshotDaily,
		Category:     category,
		Metrics:      models.EmptySnapshotMetrics(),
		TestMetrics:  []models.SnapshotTestMetrics{},
	}

	snapshot.Metrics.TotalTests = len(tests)
	snapshot.Metrics.TotalAttempts = len(attempts)

	// Difficulty shares describe the test catalog, not attempt traffic.
	if len(tests) > 0 {
		difficultyCounts := make(map[models.Difficulty]int)
		for _, t := range tests {
			difficultyCounts[t.Difficulty]++
		}
		total := float64(len(tests))
		snapshot.Metrics.PercentagesPerDifficulty = models.DifficultyPercentages{
			Easy:   float64(difficultyCounts[models.DifficultyEasy]) / total * 100,
			Medium: float64(difficultyCounts[models.DifficultyMedium]) / total * 100,
			Hard:   float64(difficultyCounts[models.DifficultyHard]) / total * 100,
			Expert: float64(difficultyCounts[models.DifficultyExpert]) / total * 100,
		}
	}

	if len(attempts) == 0 {
		return snapshot
	}

	var completed int
	var scoreSum float64
	perTest := make(map[string]*models.SnapshotTestMetrics, len(tests))
	perTestCompleted := make(map[string]int, len(tests))
	perTestScore := make(map[string]float64, len(tests))
	perTestTime := make(map[string]int64, len(tests))

	for _, t := range tests {
		perTest[t.ID] = &models.SnapshotTestMetrics{TestID: t.ID, TestName: t.Name}
	}

	for _, a := range attempts {
		tm := perTest[a.TestID]
		if tm != nil {
			tm.Attempts++
		}
		if a.Status != models.AttemptStatusCompleted {
			continue
		}
		completed++
		scoreSum += a.PercentageScore
		if tm != nil {
			perTestCompleted[a.TestID]++
			perTestScore[a.TestID] += a.PercentageScore
			perTestTime[a.TestID] += a.TimeSpent
		}
	}

	snapshot.Metrics.CompletionRate = float64(completed) / float64(len(attempts)) * 100
	if completed > 0 {
		snapshot.Metrics.AverageScore = scoreSum / float64(completed)
	}

	for _, t := range tests {
		tm := perTest[t.ID]
		if tm == nil || tm.Attempts == 0 {
			continue
		}
		tm.CompletionRate = float64(perTestCompleted[t.ID]) / float64(tm.Attempts) * 100
		if n := perTestCompleted[t.ID]; n > 0 {
			tm.AverageScore = perTestScore[t.ID] / float64(n)
			tm.AverageTimeSpent = float64(perTestTime[t.ID]) / float64(n)
		}
		snapshot.TestMetrics = append(snapshot.TestMetrics, *tm)
	}

	return snapshot
}

func dashboardCacheKey(category models.TestCategory) string {
	return "analytics:dashboard:" + string(category)
}

func (s *AnalyticsService) invalidateDashboardCache(ctx context.Context, category models.TestCategory) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Del(ctx, dashboardCacheKey(category)).Err(); err != nil {
		log.Printf("Warning: failed to invalidate dashboard cache for %s: %v", category, err)
	}
}

// GetDashboardAnalytics returns the latest daily snapshot for a category. When
// no snapshot exists yet, generation is attempted once; if there is still
// nothing to show, a zero-valued snapshot is returned so the dashboard never
// errors on an empty system.
func (s *AnalyticsService) GetDashboardAnalytics(ctx context.Context, category models.TestCategory) (*models.AnalyticsSnapshot, error) {
	if s.Cache != nil {
		cached, err := s.Cache.Get(ctx, dashboardCacheKey(category)).Result()
		if err == nil {
			var snapshot models.AnalyticsSnapshot
			if jsonErr := json.Unmarshal([]byte(cached), &snapshot); jsonErr == nil {
				return &snapshot, nil
			}
		} else if err != redis.Nil {
			log.Printf("Warning: dashboard cache read failed for %s: %v", category, err)
		}
	}

	snapshot, err := s.Snapshots.FindLatest(ctx, models.SnapshotDaily, category)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		if genErr := s.generateCategorySnapshot(ctx, category, time.Now()); genErr != nil {
			log.Printf("Warning: on-demand snapshot generation failed for %s: %v", category, genErr)
		}
		snapshot, err = s.Snapshots.FindLatest(ctx, models.SnapshotDaily, category)
		if err != nil {
			return nil, err
		}
	}
	if snapshot == nil {
		snapshot = &models.AnalyticsSnapshot{
			SnapshotDate: time.Now(),
			SnapshotType: models.SnapshotDaily,
			Category:     category,
			Metrics:      models.EmptySnapshotMetrics(),
			TestMetrics:  []models.SnapshotTestMetrics{},
		}
		return snapshot, nil
	}

	if s.Cache != nil {
		if body, jsonErr := json.Marshal(snapshot); jsonErr == nil {
			if err := s.Cache.Set(ctx, dashboardCacheKey(category), body, s.CacheTTL).Err(); err != nil {
				log.Printf("Warning: dashboard cache write failed for %s: %v", category, err)
			}
		}
	}
	return snapshot, nil
}

// GetAnalyticsHistory returns the daily snapshots for a category between two
// dates, oldest first.
func (s *AnalyticsService) GetAnalyticsHistory(ctx context.Context, category models.TestCategory, from, to time.Time) ([]models.AnalyticsSnapshot, error) {
	if to.Before(from) {
		return nil, apperror.NewBadRequest("end date is before start date")
	}
	snapshots, err := s.Snapshots.FindRange(ctx, models.SnapshotDaily, category, from, to)
	if err != nil {
		return nil, err
	}
	if snapshots == nil {
		snapshots = []models.AnalyticsSnapshot{}
	}
	return snapshots, nil
}

// TestAnalyticsView pairs a test's aggregates with its attempt breakdown and
// per-question rates, optionally limited to a start-time range.
type TestAnalyticsView struct {
	Test             *models.Test      `json:"test"`
	TotalAttempts    int               `json:"totalAttempts"`
	StatusBreakdown  map[string]int    `json:"statusBreakdown"`
	CompletionRate   float64           `json:"completionRate"`
	AverageScore     float64           `json:"averageScore"`
	AverageTimeSpent float64           `json:"averageTimeSpent"`
	Questions        []models.Question `json:"questions"`
}

func (s *AnalyticsService) GetTestAnalytics(ctx context.Context, testID string, from, to *time.Time) (*TestAnalyticsView, error) {
	test, err := s.Tests.FindByID(ctx, testID)
	if err != nil {
		if err == mongo.ErrNoDocuments || primitiveHexError(err) {
			return nil, apperror.NewNotFound("test not found")
		}
		return nil, err
	}
	questions, err := s.Questions.FindByTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.Attempts.FindByTestInRange(ctx, testID, from, to)
	if err != nil {
		return nil, err
	}

	view := &TestAnalyticsView{
		Test:            test,
		TotalAttempts:   len(attempts),
		StatusBreakdown: make(map[string]int),
		Questions:       questions,
	}

	var completed int
	var scoreSum float64
	var timeSum int64
	for _, a := range attempts {
		view.StatusBreakdown[string(a.Status)]++
		if a.Status != models.AttemptStatusCompleted {
			continue
		}
		completed++
		scoreSum += a.PercentageScore
		timeSum += a.TimeSpent
	}
	if len(attempts) > 0 {
		view.CompletionRate = float64(completed) / float64(len(attempts)) * 100
	}
	if completed > 0 {
		view.AverageScore = scoreSum / float64(completed)
		view.AverageTimeSpent = float64(timeSum) / float64(completed)
	}
	return view, nil
}

// CategoryPerformance is a candidate's aggregate over one test category.
type CategoryPerformance struct {
	Attempts     int     `json:"attempts"`
	Completed    int     `json:"completed"`
	AverageScore float64 `json:"averageScore"`
}

// CandidateAnalytics summarizes one candidate's history across every test,
// broken down per test category.
type CandidateAnalytics struct {
	CandidateID       string                         `json:"candidateId"`
	TotalAttempts     int                            `json:"totalAttempts"`
	CompletedAttempts int                            `json:"completedAttempts"`
	AverageScore      float64                        `json:"averageScore"`
	TotalTimeSpent    int64                          `json:"totalTimeSpent"`
	ByCategory        map[string]CategoryPerformance `json:"byCategory"`
	Attempts          []models.TestAttempt           `json:"attempts"`
}

func (s *AnalyticsService) GetCandidateAnalytics(ctx context.Context, candidateID string) (*CandidateAnalytics, error) {
	attempts, err := s.Attempts.FindByCandidate(ctx, candidateID, repository.AttemptFilter{})
	if err != nil {
		return nil, err
	}

	analytics := &CandidateAnalytics{
		CandidateID:   candidateID,
		TotalAttempts: len(attempts),
		ByCategory:    make(map[string]CategoryPerformance),
		Attempts:      attempts,
	}

	// One lookup per distinct test; a candidate rarely touches more than a
	// handful.
	categoryByTest := make(map[string]string)
	categoryScores := make(map[string]float64)

	var scoreSum float64
	for _, a := range attempts {
		analytics.TotalTimeSpent += a.TimeSpent

		category, seen := categoryByTest[a.TestID]
		if !seen {
			test, err := s.Tests.FindByID(ctx, a.TestID)
			if err != nil {
				category = "unknown"
			} else {
				category = string(test.Category)
			}
			categoryByTest[a.TestID] = category
		}
		perf := analytics.ByCategory[category]
		perf.Attempts++

		if a.Status == models.AttemptStatusCompleted {
			analytics.CompletedAttempts++
			scoreSum += a.PercentageScore
			perf.Completed++
			categoryScores[category] += a.PercentageScore
		}
		if perf.Completed > 0 {
			perf.AverageScore = categoryScores[category] / float64(perf.Completed)
		}
		analytics.ByCategory[category] = perf
	}
	if analytics.CompletedAttempts > 0 {
		analytics.AverageScore = scoreSum / float64(analytics.CompletedAttempts)
	}
	return analytics, nil
}

// StartSnapshotScheduler runs the daily rollup on a fixed interval until the
// context is canceled. An initial run fires shortly after startup so a fresh
// deployment has dashboard data without waiting a full interval.
func (s *AnalyticsService) StartSnapshotScheduler(ctx context.Context, interval time.Duration) {
	go func() {
		startup := time.NewTimer(time.Minute)
		defer startup.Stop()
		select {
		case <-startup.C:
			if err := s.GenerateDailySnapshot(ctx); err != nil {
				log.Printf("Warning: initial snapshot run: %v", err)
			}
		case <-ctx.Done():
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.GenerateDailySnapshot(ctx); err != nil {
					log.Printf("Warning: scheduled snapshot run: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
