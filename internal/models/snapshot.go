package models

import "time"

type SnapshotType string

const (
	SnapshotDaily   SnapshotType = "daily"
	SnapshotWeekly  SnapshotType = "weekly"
	SnapshotMonthly SnapshotType = "monthly"
)

// SnapshotCategories are the rollup dimensions: every declared test category
// plus the "all" sentinel.
var SnapshotCategories = []TestCategory{
	CategoryPersonality,
	CategoryLogical,
	CategoryCognitive,
	CategoryVerbal,
	CategoryAll,
}

type DifficultyPercentages struct {
	Easy   float64 `bson:"easy" json:"easy"`
	Medium float64 `bson:"medium" json:"medium"`
	Hard   float64 `bson:"hard" json:"hard"`
	Expert float64 `bson:"expert" json:"expert"`
}

type SnapshotMetrics struct {
	TotalTests               int                   `bson:"total_tests" json:"totalTests"`
	TotalAttempts            int                   `bson:"total_attempts" json:"totalAttempts"`
	AverageScore             float64               `bson:"average_score" json:"averageScore"`
	CompletionRate           float64               `bson:"completion_rate" json:"completionRate"`
	PercentagesPerDifficulty DifficultyPercentages `bson:"percentages_per_difficulty" json:"percentagesPerDifficulty"`
}

type SnapshotTestMetrics struct {
	TestID           string  `bson:"test_id" json:"testId"`
	TestName         string  `bson:"test_name" json:"testName"`
	Attempts         int     `bson:"attempts" json:"attempts"`
	CompletionRate   float64 `bson:"completion_rate" json:"completionRate"`
	AverageScore     float64 `bson:"average_score" json:"averageScore"`
	AverageTimeSpent float64 `bson:"average_time_spent" json:"averageTimeSpent"`
}

// AnalyticsSnapshot is a dated rollup of attempt performance for one category.
// At most one snapshot exists per (type, category, calendar day); the
// repository enforces this with an upsert.
type AnalyticsSnapshot struct {
	ID           string                `bson:"_id,omitempty" json:"id"`
	SnapshotDate time.Time             `bson:"snapshot_date" json:"snapshotDate"`
	SnapshotType SnapshotType          `bson:"snapshot_type" json:"snapshotType"`
	Category     TestCategory          `bson:"category" json:"category"`
	Metrics      SnapshotMetrics       `bson:"metrics" json:"metrics"`
	TestMetrics  []SnapshotTestMetrics `bson:"test_metrics" json:"testMetrics"`
	CreatedAt    time.Time             `bson:"created_at,omitempty" json:"createdAt,omitempty"`
	UpdatedAt    time.Time             `bson:"updated_at,omitempty" json:"updatedAt,omitempty"`
}

// EmptySnapshotMetrics is the zero-valued dashboard structure returned when no
// snapshot can be produced; analytics reads never fail on absent data.
func EmptySnapshotMetrics() SnapshotMetrics {
	return SnapshotMetrics{}
}
