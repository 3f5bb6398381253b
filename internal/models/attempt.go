package models

import "time"

type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in-progress"
	AttemptStatusCompleted  AttemptStatus = "completed"
	AttemptStatusTimedOut   AttemptStatus = "timed-out"
	AttemptStatusAbandoned  AttemptStatus = "abandoned"
)

// IsTerminal reports whether the status permits no further transitions.
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptStatusCompleted || s == AttemptStatusTimedOut || s == AttemptStatusAbandoned
}

// AttemptMetrics aggregates per-question state onto the attempt. VisitCounts and
// TimePerQuestion are keyed by question id hex and mirror the authoritative
// values on the question responses; they are re-synced from the responses before
// the final score is computed.
type AttemptMetrics struct {
	QuestionsAnswered          int              `bson:"questions_answered" json:"questionsAnswered"`
	QuestionsSkipped           int              `bson:"questions_skipped" json:"questionsSkipped"`
	QuestionsTotal             int              `bson:"questions_total" json:"questionsTotal"`
	AnswerChanges              int              `bson:"answer_changes" json:"answerChanges"`
	FlaggedQuestions           int              `bson:"flagged_questions" json:"flaggedQuestions"`
	CorrectAnswers             int              `bson:"correct_answers" json:"correctAnswers"`
	HalfCorrectAnswers         int              `bson:"half_correct_answers" json:"halfCorrectAnswers"`
	ReversedAnswers            int              `bson:"reversed_answers" json:"reversedAnswers"`
	TotalPropositionsCorrect   int              `bson:"total_propositions_correct" json:"totalPropositionsCorrect"`
	TotalPropositionsAttempted int              `bson:"total_propositions_attempted" json:"totalPropositionsAttempted"`
	PropositionAccuracy        float64          `bson:"proposition_accuracy" json:"propositionAccuracy"`
	VisitCounts                map[string]int   `bson:"visit_counts,omitempty" json:"visitCounts,omitempty"`
	TimePerQuestion            map[string]int64 `bson:"time_per_question,omitempty" json:"timePerQuestion,omitempty"`
	CompletionRate             float64          `bson:"completion_rate" json:"completionRate"`
	AverageTimePerQuestion     float64          `bson:"average_time_per_question" json:"averageTimePerQuestion"`
	TotalTimeSpent             int64            `bson:"total_time_spent" json:"totalTimeSpent"`
	AverageVisitsPerQuestion   float64          `bson:"average_visits_per_question" json:"averageVisitsPerQuestion"`
}

type AiClassification struct {
	Prediction   string     `bson:"prediction,omitempty" json:"prediction,omitempty"`
	Confidence   float64    `bson:"confidence,omitempty" json:"confidence,omitempty"`
	ClassifiedAt *time.Time `bson:"classified_at,omitempty" json:"classifiedAt,omitempty"`
}

type ManualClassification struct {
	Classification string     `bson:"classification,omitempty" json:"classification,omitempty"`
	ClassifiedBy   string     `bson:"classified_by,omitempty" json:"classifiedBy,omitempty"`
	ClassifiedAt   *time.Time `bson:"classified_at,omitempty" json:"classifiedAt,omitempty"`
}

type AttemptComment struct {
	Comment     string     `bson:"comment,omitempty" json:"comment,omitempty"`
	CommentedBy string     `bson:"commented_by,omitempty" json:"commentedBy,omitempty"`
	CommentedAt *time.Time `bson:"commented_at,omitempty" json:"commentedAt,omitempty"`
}

// TestAttempt is one candidate's session against one test. EndTime and
// TimeSpent stay unset while the attempt is in progress; once the status is
// terminal only classification and comment fields may still change.
type TestAttempt struct {
	ID                   string                `bson:"_id,omitempty" json:"id"`
	TestID               string                `bson:"test_id" json:"testId"`
	CandidateID          string                `bson:"candidate_id" json:"candidateId"`
	Status               AttemptStatus         `bson:"status" json:"status"`
	StartTime            time.Time             `bson:"start_time" json:"startTime"`
	EndTime              *time.Time            `bson:"end_time,omitempty" json:"endTime,omitempty"`
	TimeSpent            int64                 `bson:"time_spent" json:"timeSpent"`
	LastActivityAt       time.Time             `bson:"last_activity_at" json:"lastActivityAt"`
	Score                int                   `bson:"score" json:"score"`
	PercentageScore      float64               `bson:"percentage_score" json:"percentageScore"`
	Metrics              AttemptMetrics        `bson:"metrics" json:"metrics"`
	Device               string                `bson:"device,omitempty" json:"device,omitempty"`
	Browser              string                `bson:"browser,omitempty" json:"browser,omitempty"`
	IPAddress            string                `bson:"ip_address,omitempty" json:"ipAddress,omitempty"`
	AiClassification     *AiClassification     `bson:"ai_classification,omitempty" json:"aiClassification,omitempty"`
	ManualClassification *ManualClassification `bson:"manual_classification,omitempty" json:"manualClassification,omitempty"`
	AiComment            *AttemptComment       `bson:"ai_comment,omitempty" json:"aiComment,omitempty"`
	PsychologistComment  *AttemptComment       `bson:"psychologist_comment,omitempty" json:"psychologistComment,omitempty"`
	CreatedAt            time.Time             `bson:"created_at,omitempty" json:"createdAt,omitempty"`
	UpdatedAt            time.Time             `bson:"updated_at,omitempty" json:"updatedAt,omitempty"`
}

// RecordVisitCount mirrors a question's visit count onto the attempt metrics.
func (a *TestAttempt) RecordVisitCount(questionID string, count int) {
	if a.Metrics.VisitCounts == nil {
		a.Metrics.VisitCounts = make(map[string]int)
	}
	a.Metrics.VisitCounts[questionID] = count
}

// RecordQuestionTime mirrors a question's accumulated time onto the attempt
// metrics.
func (a *TestAttempt) RecordQuestionTime(questionID string, timeSpentMs int64) {
	if a.Metrics.TimePerQuestion == nil {
		a.Metrics.TimePerQuestion = make(map[string]int64)
	}
	a.Metrics.TimePerQuestion[questionID] = timeSpentMs
}

// Finish transitions an in-progress attempt into a terminal status and stamps
// the end time and elapsed duration. Finishing an already-terminal attempt is a
// no-op, matching the idempotent completion contract.
func (a *TestAttempt) Finish(status AttemptStatus, now time.Time) {
	if a.Status != AttemptStatusInProgress {
		return
	}
	a.Status = status
	end := now
	a.EndTime = &end
	if !a.StartTime.IsZero() {
		a.TimeSpent = now.Sub(a.StartTime).Milliseconds()
	}
}
