package service

import (
	"test-service/internal/models"
)

// ScoreResult is the outcome of aggregating an attempt's responses: the earned
// and maximum score plus the full metrics block stored on the attempt.
type ScoreResult struct {
	Score       int
	MaxPossible int
	Percentage  float64
	Metrics     models.AttemptMetrics
}

// ComputeScore re-evaluates every answered response against its question and
// aggregates the attempt-level score and metrics. It is a pure function over
// its inputs (responses are mutated only by re-evaluation, which is
// idempotent), so recalculating an attempt always converges to the same result.
func ComputeScore(questions []models.Question, responses []models.QuestionResponse) ScoreResult {
	byID := make(map[string]*models.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	result := ScoreResult{
		Metrics: models.AttemptMetrics{
			QuestionsTotal:  len(questions),
			VisitCounts:     make(map[string]int, len(responses)),
			TimePerQuestion: make(map[string]int64, len(responses)),
		},
	}

	for i := range questions {
		result.MaxPossible += questions[i].MaxPoints()
	}

	var totalVisits int
	for i := range responses {
		r := &responses[i]

		result.Metrics.AnswerChanges += r.AnswerChanges
		result.Metrics.VisitCounts[r.QuestionID] = r.VisitCount
		result.Metrics.TimePerQuestion[r.QuestionID] = r.TimeSpent
		result.Metrics.TotalTimeSpent += r.TimeSpent
		totalVisits += r.VisitCount

		if r.IsFlagged {
			result.Metrics.FlaggedQuestions++
		}
		if r.IsSkipped {
			result.Metrics.QuestionsSkipped++
		}

		question, ok := byID[r.QuestionID]
		if !ok {
			continue
		}

		if !r.WasAnswered() {
			continue
		}
		result.Metrics.QuestionsAnswered++

		r.Evaluate(question)

		switch {
		case question.IsDominoFamily():
			if r.IsCorrect {
				result.Score++
				result.Metrics.CorrectAnswers++
			}
			if r.IsReversed {
				result.Metrics.ReversedAnswers++
			}
			if r.IsHalfCorrect {
				result.Metrics.HalfCorrectAnswers++
			}
		case question.QuestionType == models.QuestionTypeMultipleChoice:
			if r.IsCorrect {
				result.Metrics.CorrectAnswers++
			}
			for _, prop := range r.PropositionResponses {
				if prop.CandidateEvaluation == "" {
					continue
				}
				result.Metrics.TotalPropositionsAttempted++
				if prop.IsCorrect {
					result.Score++
					result.Metrics.TotalPropositionsCorrect++
				}
			}
		}
	}

	if result.Metrics.TotalPropositionsAttempted > 0 {
		result.Metrics.PropositionAccuracy = float64(result.Metrics.TotalPropositionsCorrect) /
			float64(result.Metrics.TotalPropositionsAttempted) * 100
	}
	if result.Metrics.QuestionsTotal > 0 {
		result.Metrics.CompletionRate = float64(result.Metrics.QuestionsAnswered) /
			float64(result.Metrics.QuestionsTotal) * 100
		result.Metrics.AverageVisitsPerQuestion = float64(totalVisits) /
			float64(result.Metrics.QuestionsTotal)
	}
	// Time is averaged over questions actually answered, not the whole test.
	if result.Metrics.QuestionsAnswered > 0 {
		result.Metrics.AverageTimePerQuestion = float64(result.Metrics.TotalTimeSpent) /
			float64(result.Metrics.QuestionsAnswered)
	}
	if result.MaxPossible > 0 {
		result.Percentage = float64(result.Score) / float64(result.MaxPossible) * 100
	}

	return result
}
