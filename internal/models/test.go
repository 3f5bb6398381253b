package models

import "time"

type TestCategory string

const (
	CategoryPersonality TestCategory = "personality"
	CategoryLogical     TestCategory = "logical"
	CategoryCognitive   TestCategory = "cognitive"
	CategoryVerbal      TestCategory = "verbal"
	// CategoryAll is the sentinel used by analytics snapshots, never stored on a test.
	CategoryAll TestCategory = "all"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

type TestAnalytics struct {
	TotalAttempts     int     `bson:"total_attempts" json:"totalAttempts"`
	CompletedAttempts int     `bson:"completed_attempts" json:"completedAttempts"`
	AverageScore      float64 `bson:"average_score" json:"averageScore"`
	AverageTimeSpent  float64 `bson:"average_time_spent" json:"averageTimeSpent"`
}

type Test struct {
	ID          string        `bson:"_id,omitempty" json:"id"`
	Name        string        `bson:"name" json:"name"`
	Description string        `bson:"description,omitempty" json:"description,omitempty"`
	Category    TestCategory  `bson:"category" json:"category"`
	Difficulty  Difficulty    `bson:"difficulty" json:"difficulty"`
	Duration    int           `bson:"duration" json:"duration"`
	IsActive    bool          `bson:"is_active" json:"isActive"`
	Analytics   TestAnalytics `bson:"analytics" json:"analytics"`
	CreatedAt   time.Time     `bson:"created_at,omitempty" json:"createdAt,omitempty"`
	UpdatedAt   time.Time     `bson:"updated_at,omitempty" json:"updatedAt,omitempty"`
}
