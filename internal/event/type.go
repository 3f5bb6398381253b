package event

// Routing keys published on the test.events topic exchange.
const (
	EventTypeAttemptStarted   = "attempt.started"
	EventTypeAttemptCompleted = "attempt.completed"
	EventTypeAttemptTimedOut  = "attempt.timed_out"
	EventTypeAttemptAbandoned = "attempt.abandoned"
	EventTypeAttemptScored    = "attempt.scored"

	EventTypeAttemptClassified = "attempt.classified"
)

type AttemptEvent struct {
	EventType       string  `json:"eventType"`
	AttemptID       string  `json:"attemptId"`
	TestID          string  `json:"testId"`
	CandidateID     string  `json:"candidateId"`
	Status          string  `json:"status"`
	Score           int     `json:"score,omitempty"`
	PercentageScore float64 `json:"percentageScore,omitempty"`
	Timestamp       int64   `json:"timestamp"`
}

// ClassificationEvent is the payload the AI pipeline publishes on the
// ai.events exchange once it has classified a completed attempt.
type ClassificationEvent struct {
	AttemptID  string  `json:"attemptId"`
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
	Timestamp  string  `json:"timestamp"`
}
