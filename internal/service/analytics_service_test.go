package service

import (
	"math"
	"testing"
	"time"

	"test-service/internal/models"
)

func TestBuildDailySnapshotEmpty(t *testing.T) {
	now := time.Now()
	snapshot := buildDailySnapshot(now, models.CategoryLogical, nil, nil)

	if snapshot.SnapshotType != models.SnapshotDaily {
		t.Errorf("SnapshotType = %s, want daily", snapshot.SnapshotType)
	}
	if snapshot.Category != models.CategoryLogical {
		t.Errorf("Category = %s, want logical", snapshot.Category)
	}
	if snapshot.Metrics.TotalAttempts != 0 || snapshot.Metrics.AverageScore != 0 {
		t.Errorf("empty snapshot must be zero-valued, got %+v", snapshot.Metrics)
	}
	if snapshot.TestMetrics == nil {
		t.Error("TestMetrics must be an empty slice, not nil")
	}
}

func near(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func TestBuildDailySnapshotDifficultyWithoutAttempts(t *testing.T) {
	tests := []models.Test{
		{ID: "t1", Name: "Only", Category: models.CategoryVerbal, Difficulty: models.DifficultyEasy},
	}

	snapshot := buildDailySnapshot(time.Now(), models.CategoryVerbal, tests, nil)

	if snapshot.Metrics.TotalTests != 1 || snapshot.Metrics.TotalAttempts != 0 {
		t.Fatalf("TotalTests/TotalAttempts = %d/%d, want 1/0",
			snapshot.Metrics.TotalTests, snapshot.Metrics.TotalAttempts)
	}
	if want := 100.0; !near(snapshot.Metrics.PercentagesPerDifficulty.Easy, want) {
		t.Errorf("Easy share = %.2f, want %.2f", snapshot.Metrics.PercentagesPerDifficulty.Easy, want)
	}
}

func TestBuildDailySnapshot(t *testing.T) {
	now := time.Now()
	tests := []models.Test{
		{ID: "t1", Name: "Logic A", Category: models.CategoryLogical, Difficulty: models.DifficultyEasy},
		{ID: "t2", Name: "Logic B", Category: models.CategoryLogical, Difficulty: models.DifficultyHard},
		{ID: "t3", Name: "Unvisited", Category: models.CategoryLogical, Difficulty: models.DifficultyMedium},
	}
	attempts := []models.TestAttempt{
		{TestID: "t1", Status: models.AttemptStatusCompleted, PercentageScore: 80, TimeSpent: 60000},
		{TestID: "t1", Status: models.AttemptStatusCompleted, PercentageScore: 60, TimeSpent: 40000},
		{TestID: "t1", Status: models.AttemptStatusAbandoned},
		{TestID: "t2", Status: models.AttemptStatusTimedOut},
	}

	snapshot := buildDailySnapshot(now, models.CategoryLogical, tests, attempts)

	m := snapshot.Metrics
	if m.TotalTests != 3 || m.TotalAttempts != 4 {
		t.Errorf("TotalTests/TotalAttempts = %d/%d, want 3/4", m.TotalTests, m.TotalAttempts)
	}
	if want := 50.0; m.CompletionRate != want {
		t.Errorf("CompletionRate = %.2f, want %.2f", m.CompletionRate, want)
	}
	if want := 70.0; m.AverageScore != want {
		t.Errorf("AverageScore = %.2f, want %.2f", m.AverageScore, want)
	}
	// Difficulty shares follow the catalog (1 easy, 1 hard, 1 medium test),
	// not how many attempts each test drew.
	third := float64(1) / 3 * 100
	if !near(m.PercentagesPerDifficulty.Easy, third) {
		t.Errorf("Easy share = %.2f, want %.2f", m.PercentagesPerDifficulty.Easy, third)
	}
	if !near(m.PercentagesPerDifficulty.Hard, third) {
		t.Errorf("Hard share = %.2f, want %.2f", m.PercentagesPerDifficulty.Hard, third)
	}
	if !near(m.PercentagesPerDifficulty.Medium, third) {
		t.Errorf("Medium share = %.2f, want %.2f", m.PercentagesPerDifficulty.Medium, third)
	}

	// Only tests with attempts appear in the per-test breakdown.
	if len(snapshot.TestMetrics) != 2 {
		t.Fatalf("TestMetrics has %d entries, want 2", len(snapshot.TestMetrics))
	}
	var t1 *models.SnapshotTestMetrics
	for i := range snapshot.TestMetrics {
		if snapshot.TestMetrics[i].TestID == "t1" {
			t1 = &snapshot.TestMetrics[i]
		}
	}
	if t1 == nil {
		t.Fatal("t1 missing from TestMetrics")
	}
	if t1.Attempts != 3 {
		t.Errorf("t1 attempts = %d, want 3", t1.Attempts)
	}
	if want := 70.0; t1.AverageScore != want {
		t.Errorf("t1 AverageScore = %.2f, want %.2f", t1.AverageScore, want)
	}
	if want := 50000.0; t1.AverageTimeSpent != want {
		t.Errorf("t1 AverageTimeSpent = %.2f, want %.2f", t1.AverageTimeSpent, want)
	}
}

func TestBuildDailySnapshotIsDeterministic(t *testing.T) {
	now := time.Now()
	tests := []models.Test{
		{ID: "t1", Name: "A", Difficulty: models.DifficultyEasy},
	}
	attempts := []models.TestAttempt{
		{TestID: "t1", Status: models.AttemptStatusCompleted, PercentageScore: 50},
	}

	first := buildDailySnapshot(now, models.CategoryAll, tests, attempts)
	second := buildDailySnapshot(now, models.CategoryAll, tests, attempts)

	if first.Metrics != second.Metrics {
		t.Errorf("rebuild diverged: %+v then %+v", first.Metrics, second.Metrics)
	}
}
