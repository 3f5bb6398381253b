package service

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"test-service/internal/apperror"
	"test-service/internal/event"
	"test-service/internal/models"
)

func TestValidateAttemptAccess(t *testing.T) {
	testCases := []struct {
		name        string
		attempt     models.TestAttempt
		candidateID string
		mutating    bool
		wantCode    int
	}{
		{
			name:        "owner of in-progress attempt can mutate",
			attempt:     models.TestAttempt{CandidateID: "u1", Status: models.AttemptStatusInProgress},
			candidateID: "u1",
			mutating:    true,
			wantCode:    0,
		},
		{
			name:        "other candidate is forbidden",
			attempt:     models.TestAttempt{CandidateID: "u1", Status: models.AttemptStatusInProgress},
			candidateID: "u2",
			mutating:    false,
			wantCode:    403,
		},
		{
			name:        "completed attempt rejects mutation",
			attempt:     models.TestAttempt{CandidateID: "u1", Status: models.AttemptStatusCompleted},
			candidateID: "u1",
			mutating:    true,
			wantCode:    400,
		},
		{
			name:        "completed attempt still readable by owner",
			attempt:     models.TestAttempt{CandidateID: "u1", Status: models.AttemptStatusCompleted},
			candidateID: "u1",
			mutating:    false,
			wantCode:    0,
		},
		{
			// The terminal status is reported before ownership.
			name:        "other candidate mutating a completed attempt gets the status error",
			attempt:     models.TestAttempt{CandidateID: "u1", Status: models.AttemptStatusCompleted},
			candidateID: "u2",
			mutating:    true,
			wantCode:    400,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAttemptAccess(&tc.attempt, tc.candidateID, tc.mutating)
			if tc.wantCode == 0 {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := apperror.StatusCode(err); got != tc.wantCode {
				t.Errorf("status = %d, want %d", got, tc.wantCode)
			}
		})
	}
}

func TestNewResponseRecord(t *testing.T) {
	attempt := &models.TestAttempt{ID: "a1", TestID: "t1", CandidateID: "u1"}

	response, err := newResponseRecord(attempt, &models.Question{ID: "q1", TestID: "t1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response.AttemptID != "a1" || response.QuestionID != "q1" || response.CandidateID != "u1" {
		t.Errorf("record = %+v, want attempt a1 / question q1 / candidate u1", response)
	}
	if response.WasAnswered() {
		t.Error("a fresh record must not count as answered")
	}

	_, err = newResponseRecord(attempt, &models.Question{ID: "q2", TestID: "other"})
	if err == nil {
		t.Fatal("expected an error for a question from another test")
	}
	if got := apperror.StatusCode(err); got != 404 {
		t.Errorf("status = %d, want 404", got)
	}
}

func TestPrimitiveHexError(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{"invalid hex", primitive.ErrInvalidHex, true},
		{"bad byte in id", errors.New("encoding/hex: invalid byte: U+0067 'g'"), true},
		{"infrastructure failure", errors.New("server selection timeout"), false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := primitiveHexError(tc.err); got != tc.want {
				t.Errorf("primitiveHexError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestAlreadyFinishedSignalsReplay(t *testing.T) {
	attempt := &models.TestAttempt{ID: "a1", Status: models.AttemptStatusCompleted, Score: 7}

	result := alreadyFinished(attempt)
	if !result.AlreadyCompleted {
		t.Error("AlreadyCompleted must be set for a replayed completion")
	}
	if !result.Success {
		t.Error("a replayed completion is still a success")
	}
	if result.Attempt != attempt || result.Attempt.Score != 7 {
		t.Error("the attempt must come back unchanged")
	}
}

func TestSniffUserAgent(t *testing.T) {
	testCases := []struct {
		name        string
		userAgent   string
		wantDevice  string
		wantBrowser string
	}{
		{
			name:        "desktop chrome",
			userAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			wantDevice:  "desktop",
			wantBrowser: "chrome",
		},
		{
			name:        "iphone safari",
			userAgent:   "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			wantDevice:  "mobile",
			wantBrowser: "safari",
		},
		{
			name:        "android firefox",
			userAgent:   "Mozilla/5.0 (Android 14; Mobile; rv:120.0) Gecko/120.0 Firefox/120.0",
			wantDevice:  "mobile",
			wantBrowser: "firefox",
		},
		{
			name:        "ipad",
			userAgent:   "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/604.1",
			wantDevice:  "tablet",
			wantBrowser: "safari",
		},
		{
			name:        "edge identifies before chrome",
			userAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0",
			wantDevice:  "desktop",
			wantBrowser: "edge",
		},
		{
			name:        "empty",
			userAgent:   "",
			wantDevice:  "unknown",
			wantBrowser: "unknown",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			device, browser := sniffUserAgent(tc.userAgent)
			if device != tc.wantDevice {
				t.Errorf("device = %s, want %s", device, tc.wantDevice)
			}
			if browser != tc.wantBrowser {
				t.Errorf("browser = %s, want %s", browser, tc.wantBrowser)
			}
		})
	}
}

func TestEventTypeForStatus(t *testing.T) {
	testCases := []struct {
		status models.AttemptStatus
		want   string
	}{
		{models.AttemptStatusCompleted, event.EventTypeAttemptCompleted},
		{models.AttemptStatusTimedOut, event.EventTypeAttemptTimedOut},
		{models.AttemptStatusAbandoned, event.EventTypeAttemptAbandoned},
	}
	for _, tc := range testCases {
		if got := eventTypeForStatus(tc.status); got != tc.want {
			t.Errorf("eventTypeForStatus(%s) = %s, want %s", tc.status, got, tc.want)
		}
	}
}

func TestBuildQuestionAnalyticsDomino(t *testing.T) {
	question := &models.Question{
		QuestionType:  models.QuestionTypeDomino,
		CorrectAnswer: &models.DominoValue{DominoID: 1, TopValue: 3, BottomValue: 2},
	}
	responses := []models.QuestionResponse{
		{DominoAnswer: &models.DominoAnswer{TopValue: intp(3), BottomValue: intp(2)}, IsCorrect: true, TimeSpent: 2000, VisitCount: 1},
		{DominoAnswer: &models.DominoAnswer{TopValue: intp(2), BottomValue: intp(3)}, IsReversed: true, TimeSpent: 4000, VisitCount: 3},
		{IsSkipped: true, TimeSpent: 1000, VisitCount: 2},
	}

	analytics := buildQuestionAnalytics(question, responses)

	if want := 50.0; analytics.CorrectAnswerRate != want {
		t.Errorf("CorrectAnswerRate = %.2f, want %.2f", analytics.CorrectAnswerRate, want)
	}
	if want := 50.0; analytics.ReversedAnswerRate != want {
		t.Errorf("ReversedAnswerRate = %.2f, want %.2f", analytics.ReversedAnswerRate, want)
	}
	if analytics.DontUnderstandRate != 0 {
		t.Errorf("DontUnderstandRate = %.2f, want 0 for domino questions", analytics.DontUnderstandRate)
	}
	// Averages cover every response, skipped ones included.
	if want := float64(7000) / 3; analytics.AverageTimeSpent != want {
		t.Errorf("AverageTimeSpent = %.2f, want %.2f", analytics.AverageTimeSpent, want)
	}
	if want := 2.0; analytics.VisitCountAverage != want {
		t.Errorf("VisitCountAverage = %.2f, want %.2f", analytics.VisitCountAverage, want)
	}
}

func TestBuildQuestionAnalyticsPropositions(t *testing.T) {
	question := &models.Question{
		QuestionType: models.QuestionTypeMultipleChoice,
		Propositions: []models.Proposition{{Text: "a", CorrectEvaluation: "V"}},
	}
	responses := []models.QuestionResponse{
		{PropositionResponses: []models.PropositionResponse{{PropositionIndex: 0, CandidateEvaluation: "V", IsCorrect: true}}, IsCorrect: true},
		{PropositionResponses: []models.PropositionResponse{{PropositionIndex: 0, CandidateEvaluation: "X"}}},
	}

	analytics := buildQuestionAnalytics(question, responses)
	if want := 50.0; analytics.CorrectAnswerRate != want {
		t.Errorf("CorrectAnswerRate = %.2f, want %.2f", analytics.CorrectAnswerRate, want)
	}
	if want := 50.0; analytics.DontUnderstandRate != want {
		t.Errorf("DontUnderstandRate = %.2f, want %.2f", analytics.DontUnderstandRate, want)
	}
	if analytics.ReversedAnswerRate != 0 {
		t.Errorf("ReversedAnswerRate = %.2f, want 0 for proposition questions", analytics.ReversedAnswerRate)
	}
}

func TestBuildQuestionAnalyticsNoResponses(t *testing.T) {
	question := &models.Question{QuestionType: models.QuestionTypeDomino}
	analytics := buildQuestionAnalytics(question, nil)
	if analytics != (models.QuestionAnalytics{}) {
		t.Errorf("no responses should produce zero analytics, got %+v", analytics)
	}
}
