package service

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"test-service/internal/apperror"
	"test-service/internal/event"
	"test-service/internal/models"
	"test-service/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// responseInitBatchSize bounds the insert batches used when an attempt is
// started, so one oversized test cannot produce a single giant insert.
const responseInitBatchSize = 10

type AttemptService struct {
	Tests     *repository.TestRepository
	Questions *repository.QuestionRepository
	Attempts  *repository.AttemptRepository
	Responses *repository.ResponseRepository
	Publisher event.Publisher
}

func NewAttemptService(
	tests *repository.TestRepository,
	questions *repository.QuestionRepository,
	attempts *repository.AttemptRepository,
	responses *repository.ResponseRepository,
	publisher event.Publisher,
) *AttemptService {
	return &AttemptService{
		Tests:     tests,
		Questions: questions,
		Attempts:  attempts,
		Responses: responses,
		Publisher: publisher,
	}
}

// StartResult is what a candidate gets back when starting (or resuming) an
// attempt.
type StartResult struct {
	Attempt *models.TestAttempt `json:"attempt"`
	Resumed bool                `json:"resumed"`
}

// StartTestAttempt opens a new attempt for (test, candidate), or resumes the
// existing in-progress one. A candidate who already completed the test gets a
// conflict; retakes are not allowed.
func (s *AttemptService) StartTestAttempt(ctx context.Context, testID, candidateID, userAgent, ipAddress string) (*StartResult, error) {
	test, err := s.Tests.FindByID(ctx, testID)
	if err != nil {
		if err == mongo.ErrNoDocuments || primitiveHexError(err) {
			return nil, apperror.NewNotFound("test not found")
		}
		return nil, err
	}
	if !test.IsActive {
		return nil, apperror.NewBadRequest("test is not active")
	}

	// Resume before conflict: an in-progress attempt always wins.
	existing, err := s.Attempts.FindByStatus(ctx, testID, candidateID, models.AttemptStatusInProgress)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existing.LastActivityAt = time.Now()
		if err := s.Attempts.Save(ctx, existing); err != nil {
			return nil, err
		}
		return &StartResult{Attempt: existing, Resumed: true}, nil
	}

	completed, err := s.Attempts.FindByStatus(ctx, testID, candidateID, models.AttemptStatusCompleted)
	if err != nil {
		return nil, err
	}
	if completed != nil {
		return nil, apperror.NewConflict("test already completed by this candidate")
	}

	questions, err := s.Questions.FindByTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, apperror.NewBadRequest("test has no questions")
	}

	now := time.Now()
	device, browser := sniffUserAgent(userAgent)
	attempt := &models.TestAttempt{
		TestID:         testID,
		CandidateID:    candidateID,
		Status:         models.AttemptStatusInProgress,
		StartTime:      now,
		LastActivityAt: now,
		Metrics: models.AttemptMetrics{
			QuestionsTotal: len(questions),
		},
		Device:    device,
		Browser:   browser,
		IPAddress: ipAddress,
	}
	if err := s.Attempts.Create(ctx, attempt); err != nil {
		return nil, err
	}

	if err := s.initResponses(ctx, attempt, questions); err != nil {
		// The attempt is unusable without its response shells, so roll it back
		// rather than leaving a half-initialized session behind.
		attempt.Finish(models.AttemptStatusAbandoned, time.Now())
		if saveErr := s.Attempts.Save(ctx, attempt); saveErr != nil {
			log.Printf("Warning: failed to abandon half-initialized attempt %s: %v", attempt.ID, saveErr)
		}
		return nil, err
	}

	s.publishAttemptEvent(event.EventTypeAttemptStarted, attempt)
	return &StartResult{Attempt: attempt, Resumed: false}, nil
}

func (s *AttemptService) initResponses(ctx context.Context, attempt *models.TestAttempt, questions []models.Question) error {
	for start := 0; start < len(questions); start += responseInitBatchSize {
		end := start + responseInitBatchSize
		if end > len(questions) {
			end = len(questions)
		}
		batch := make([]models.QuestionResponse, 0, end-start)
		for _, q := range questions[start:end] {
			batch = append(batch, models.QuestionResponse{
				AttemptID:   attempt.ID,
				QuestionID:  q.ID,
				CandidateID: attempt.CandidateID,
			})
		}
		if err := s.Responses.CreateMany(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAttemptAccess checks that the candidate owns the attempt and, when
// mutating is set, that the attempt still accepts interaction.
func ValidateAttemptAccess(attempt *models.TestAttempt, candidateID string, mutating bool) error {
	if mutating && attempt.Status != models.AttemptStatusInProgress {
		return apperror.NewBadRequest("attempt is no longer in progress")
	}
	if attempt.CandidateID != candidateID {
		return apperror.NewForbidden("attempt belongs to another candidate")
	}
	return nil
}

func (s *AttemptService) loadAttempt(ctx context.Context, attemptID string) (*models.TestAttempt, error) {
	attempt, err := s.Attempts.FindByID(ctx, attemptID)
	if err != nil {
		if err == mongo.ErrNoDocuments || primitiveHexError(err) {
			return nil, apperror.NewNotFound("attempt not found")
		}
		return nil, err
	}
	return attempt, nil
}

// primitiveHexError reports whether err came from parsing a malformed id; a
// bad id in the URL reads as "not found" rather than a server failure.
func primitiveHexError(err error) bool {
	return err == primitive.ErrInvalidHex || strings.Contains(err.Error(), "invalid byte")
}

// loadResponse fetches the (attempt, question) record, creating it on first
// interaction. Records are pre-created in batches at start, but a question
// added after the attempt began, or a batch that failed part-way, must not
// leave the question unanswerable.
func (s *AttemptService) loadResponse(ctx context.Context, attempt *models.TestAttempt, questionID string) (*models.QuestionResponse, error) {
	response, err := s.Responses.FindOne(ctx, attempt.ID, questionID)
	if err != nil {
		return nil, err
	}
	if response != nil {
		return response, nil
	}

	question, err := s.Questions.FindByID(ctx, questionID)
	if err != nil {
		if err == mongo.ErrNoDocuments || primitiveHexError(err) {
			return nil, apperror.NewNotFound("question not found")
		}
		return nil, err
	}

	response, err = newResponseRecord(attempt, question)
	if err != nil {
		return nil, err
	}
	if err := s.Responses.Create(ctx, response); err != nil {
		return nil, err
	}
	return response, nil
}

// newResponseRecord builds the empty response record for a question, rejecting
// questions that belong to a different test than the attempt's.
func newResponseRecord(attempt *models.TestAttempt, question *models.Question) (*models.QuestionResponse, error) {
	if question.TestID != attempt.TestID {
		return nil, apperror.NewNotFound("question is not part of this attempt")
	}
	return &models.QuestionResponse{
		AttemptID:   attempt.ID,
		QuestionID:  question.ID,
		CandidateID: attempt.CandidateID,
	}, nil
}

// touchAttempt bumps the attempt's activity timestamp after any interaction.
func (s *AttemptService) touchAttempt(ctx context.Context, attempt *models.TestAttempt) {
	attempt.LastActivityAt = time.Now()
	if err := s.Attempts.Save(ctx, attempt); err != nil {
		log.Printf("Warning: failed to update attempt activity for %s: %v", attempt.ID, err)
	}
}

// VisitQuestion records a navigation event onto the question's response.
func (s *AttemptService) VisitQuestion(ctx context.Context, attemptID, questionID, candidateID string) (*models.QuestionResponse, error) {
	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if err := ValidateAttemptAccess(attempt, candidateID, true); err != nil {
		return nil, err
	}

	response, err := s.loadResponse(ctx, attempt, questionID)
	if err != nil {
		return nil, err
	}

	response.RecordVisit(time.Now())
	if err := s.Responses.Save(ctx, response); err != nil {
		return nil, err
	}

	attempt.RecordVisitCount(questionID, response.VisitCount)
	s.touchAttempt(ctx, attempt)
	return response, nil
}

// SubmitAnswer stores and evaluates a candidate's answer for one question. The
// raw payload is either a domino value object or a proposition evaluation list.
func (s *AttemptService) SubmitAnswer(ctx context.Context, attemptID, questionID, candidateID string, raw json.RawMessage) (*models.QuestionResponse, error) {
	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if err := ValidateAttemptAccess(attempt, candidateID, true); err != nil {
		return nil, err
	}

	question, err := s.Questions.FindByID(ctx, questionID)
	if err != nil {
		if err == mongo.ErrNoDocuments || primitiveHexError(err) {
			return nil, apperror.NewNotFound("question not found")
		}
		return nil, err
	}

	response, err := s.loadResponse(ctx, attempt, questionID)
	if err != nil {
		return nil, err
	}

	response.RecordAnswer(raw, time.Now())
	response.Evaluate(question)
	if err := s.Responses.Save(ctx, response); err != nil {
		return nil, err
	}

	// Question analytics follow the response write; a failure there must not
	// fail the submission.
	if err := s.RecomputeQuestionAnalytics(ctx, questionID); err != nil {
		log.Printf("Warning: failed to recompute analytics for question %s: %v", questionID, err)
	}

	s.touchAttempt(ctx, attempt)
	return response, nil
}

// ToggleQuestionFlag flips the candidate's review flag on a question.
func (s *AttemptService) ToggleQuestionFlag(ctx context.Context, attemptID, questionID, candidateID string) (*models.QuestionResponse, error) {
	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if err := ValidateAttemptAccess(attempt, candidateID, true); err != nil {
		return nil, err
	}

	response, err := s.loadResponse(ctx, attempt, questionID)
	if err != nil {
		return nil, err
	}

	response.ToggleFlag(time.Now())
	if err := s.Responses.Save(ctx, response); err != nil {
		return nil, err
	}
	s.touchAttempt(ctx, attempt)
	return response, nil
}

// SkipQuestion marks a question skipped, discarding any answer already given.
func (s *AttemptService) SkipQuestion(ctx context.Context, attemptID, questionID, candidateID string) (*models.QuestionResponse, error) {
	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if err := ValidateAttemptAccess(attempt, candidateID, true); err != nil {
		return nil, err
	}

	response, err := s.loadResponse(ctx, attempt, questionID)
	if err != nil {
		return nil, err
	}

	response.Skip(time.Now())
	if err := s.Responses.Save(ctx, response); err != nil {
		return nil, err
	}
	s.touchAttempt(ctx, attempt)
	return response, nil
}

// UpdateTimeSpent adds deltaMs of viewing time to a question's response and
// mirrors the total onto the attempt metrics. Negative deltas are rejected.
func (s *AttemptService) UpdateTimeSpent(ctx context.Context, attemptID, questionID, candidateID string, deltaMs int64) (*models.QuestionResponse, error) {
	if deltaMs < 0 {
		return nil, apperror.NewBadRequest("time delta cannot be negative")
	}

	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if err := ValidateAttemptAccess(attempt, candidateID, true); err != nil {
		return nil, err
	}

	response, err := s.loadResponse(ctx, attempt, questionID)
	if err != nil {
		return nil, err
	}

	response.TimeSpent += deltaMs
	if err := s.Responses.Save(ctx, response); err != nil {
		return nil, err
	}

	attempt.RecordQuestionTime(questionID, response.TimeSpent)
	s.touchAttempt(ctx, attempt)
	return response, nil
}

// CompleteResult carries the finished attempt plus a warning when scoring could
// not run; completion itself never fails on a scoring error.
type CompleteResult struct {
	Attempt          *models.TestAttempt `json:"attempt"`
	Success          bool                `json:"success"`
	AlreadyCompleted bool                `json:"alreadyCompleted"`
	Warning          string              `json:"warning,omitempty"`
}

// alreadyFinished is the outcome of completing an attempt that is already
// terminal: the attempt comes back unchanged, flagged so callers can tell a
// replayed completion from a fresh one.
func alreadyFinished(attempt *models.TestAttempt) *CompleteResult {
	return &CompleteResult{Attempt: attempt, Success: true, AlreadyCompleted: true}
}

// CompleteAttempt finishes an in-progress attempt and computes its final score.
// Completing an already-terminal attempt returns it unchanged.
func (s *AttemptService) CompleteAttempt(ctx context.Context, attemptID, candidateID string) (*CompleteResult, error) {
	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if err := ValidateAttemptAccess(attempt, candidateID, false); err != nil {
		return nil, err
	}

	if attempt.Status.IsTerminal() {
		return alreadyFinished(attempt), nil
	}

	return s.finish(ctx, attempt, models.AttemptStatusCompleted)
}

// FinishAttemptWithStatus terminates an attempt without candidate interaction;
// the scheduler uses it for timed-out and abandoned sessions.
func (s *AttemptService) FinishAttemptWithStatus(ctx context.Context, attemptID string, status models.AttemptStatus) (*CompleteResult, error) {
	if !status.IsTerminal() {
		return nil, apperror.NewBadRequest("status must be terminal")
	}

	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status.IsTerminal() {
		return alreadyFinished(attempt), nil
	}

	return s.finish(ctx, attempt, status)
}

func (s *AttemptService) finish(ctx context.Context, attempt *models.TestAttempt, status models.AttemptStatus) (*CompleteResult, error) {
	now := time.Now()
	s.syncQuestionTimes(ctx, attempt)
	attempt.Finish(status, now)

	result := &CompleteResult{Attempt: attempt, Success: true}
	if err := s.scoreAttempt(ctx, attempt); err != nil {
		// The terminal status must stick even when aggregation fails; the
		// score can be recalculated later.
		result.Success = false
		result.Warning = "score calculation failed: " + err.Error()
		log.Printf("Warning: failed to score attempt %s: %v", attempt.ID, err)
	}

	if err := s.Attempts.Save(ctx, attempt); err != nil {
		return nil, err
	}

	if err := s.RecomputeTestAnalytics(ctx, attempt.TestID); err != nil {
		log.Printf("Warning: failed to recompute analytics for test %s: %v", attempt.TestID, err)
	}

	s.publishAttemptEvent(eventTypeForStatus(status), attempt)
	return result, nil
}

func eventTypeForStatus(status models.AttemptStatus) string {
	switch status {
	case models.AttemptStatusTimedOut:
		return event.EventTypeAttemptTimedOut
	case models.AttemptStatusAbandoned:
		return event.EventTypeAttemptAbandoned
	default:
		return event.EventTypeAttemptCompleted
	}
}

// syncQuestionTimes copies the authoritative per-question times from the
// responses onto the attempt before the final score is computed.
func (s *AttemptService) syncQuestionTimes(ctx context.Context, attempt *models.TestAttempt) {
	responses, err := s.Responses.FindByAttempt(ctx, attempt.ID)
	if err != nil {
		log.Printf("Warning: failed to sync question times for attempt %s: %v", attempt.ID, err)
		return
	}
	times := make(map[string]int64, len(responses))
	for _, r := range responses {
		times[r.QuestionID] = r.TimeSpent
	}
	attempt.Metrics.TimePerQuestion = times
}

func (s *AttemptService) scoreAttempt(ctx context.Context, attempt *models.TestAttempt) error {
	questions, err := s.Questions.FindByTest(ctx, attempt.TestID)
	if err != nil {
		return err
	}
	responses, err := s.Responses.FindByAttempt(ctx, attempt.ID)
	if err != nil {
		return err
	}

	score := ComputeScore(questions, responses)
	attempt.Score = score.Score
	attempt.PercentageScore = score.Percentage
	attempt.Metrics = score.Metrics
	if attempt.TimeSpent > 0 {
		attempt.Metrics.TotalTimeSpent = attempt.TimeSpent
	}

	// Persist the per-proposition and correctness results the evaluation wrote
	// back onto the responses.
	for i := range responses {
		if err := s.Responses.Save(ctx, &responses[i]); err != nil {
			return err
		}
	}
	return nil
}

// RecalculateScore re-runs aggregation for a terminal attempt, for when a
// completion-time scoring failure left the attempt unscored.
func (s *AttemptService) RecalculateScore(ctx context.Context, attemptID string) (*models.TestAttempt, error) {
	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !attempt.Status.IsTerminal() {
		return nil, apperror.NewBadRequest("attempt is still in progress")
	}

	if err := s.scoreAttempt(ctx, attempt); err != nil {
		return nil, err
	}
	if err := s.Attempts.Save(ctx, attempt); err != nil {
		return nil, err
	}

	s.publishAttemptEvent(event.EventTypeAttemptScored, attempt)
	return attempt, nil
}

// AttemptQuestion pairs a question with the candidate's response state for it.
type AttemptQuestion struct {
	Question models.Question          `json:"question"`
	Response *models.QuestionResponse `json:"response,omitempty"`
}

// GetAttemptQuestions returns the attempt's questions with response state.
// While the attempt is in progress the questions are sanitized so canonical
// answers never reach the candidate.
func (s *AttemptService) GetAttemptQuestions(ctx context.Context, attemptID, candidateID string) ([]AttemptQuestion, error) {
	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if err := ValidateAttemptAccess(attempt, candidateID, false); err != nil {
		return nil, err
	}

	questions, err := s.Questions.FindByTest(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}
	responses, err := s.Responses.FindByAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	byQuestion := make(map[string]*models.QuestionResponse, len(responses))
	for i := range responses {
		byQuestion[responses[i].QuestionID] = &responses[i]
	}

	inProgress := attempt.Status == models.AttemptStatusInProgress
	out := make([]AttemptQuestion, 0, len(questions))
	for _, q := range questions {
		item := AttemptQuestion{Question: q, Response: byQuestion[q.ID]}
		if inProgress {
			item.Question = q.Sanitized()
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *AttemptService) GetAttempt(ctx context.Context, attemptID string) (*models.TestAttempt, error) {
	return s.loadAttempt(ctx, attemptID)
}

func (s *AttemptService) GetCandidateAttempts(ctx context.Context, candidateID string, filter repository.AttemptFilter) ([]models.TestAttempt, error) {
	return s.Attempts.FindByCandidate(ctx, candidateID, filter)
}

// AttemptPage is one page of a paged attempt listing.
type AttemptPage struct {
	Attempts []models.TestAttempt `json:"attempts"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	Limit    int                  `json:"limit"`
}

func (s *AttemptService) GetTestAttempts(ctx context.Context, testID string, filter repository.AttemptFilter, page repository.PageOptions) (*AttemptPage, error) {
	if page.Page < 1 {
		page.Page = 1
	}
	if page.Limit < 1 || page.Limit > 100 {
		page.Limit = 20
	}
	attempts, total, err := s.Attempts.FindByTest(ctx, testID, filter, page)
	if err != nil {
		return nil, err
	}
	return &AttemptPage{Attempts: attempts, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

// QuestionResult is the reviewed outcome of one question inside an attempt's
// results view.
type QuestionResult struct {
	Question models.Question          `json:"question"`
	Response *models.QuestionResponse `json:"response,omitempty"`
	Correct  bool                     `json:"correct"`
	Points   int                      `json:"points"`
	Max      int                      `json:"max"`
}

// GroupPerformance is one slice of the per-difficulty and per-type breakdowns.
type GroupPerformance struct {
	Answered int     `json:"answered"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// PerformanceAnalytics summarizes how the candidate worked through the test.
type PerformanceAnalytics struct {
	ByDifficulty       map[string]GroupPerformance `json:"byDifficulty"`
	ByType             map[string]GroupPerformance `json:"byType"`
	FastestQuestionID  string                      `json:"fastestQuestionId,omitempty"`
	FastestTimeMs      int64                       `json:"fastestTimeMs,omitempty"`
	SlowestQuestionID  string                      `json:"slowestQuestionId,omitempty"`
	SlowestTimeMs      int64                       `json:"slowestTimeMs,omitempty"`
	TotalVisits        int                         `json:"totalVisits"`
	TotalAnswerChanges int                         `json:"totalAnswerChanges"`
}

// AttemptResults is the full post-completion review: scores, metrics and the
// per-question breakdown with canonical answers included.
type AttemptResults struct {
	Attempt     *models.TestAttempt  `json:"attempt"`
	Test        *models.Test         `json:"test"`
	Questions   []QuestionResult     `json:"questions"`
	Performance PerformanceAnalytics `json:"performance"`
}

// GetAttemptResults builds the comprehensive results view. Only completed and
// timed-out attempts have results; abandoned sessions carry nothing worth
// reviewing.
func (s *AttemptService) GetAttemptResults(ctx context.Context, attemptID string) (*AttemptResults, error) {
	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != models.AttemptStatusCompleted && attempt.Status != models.AttemptStatusTimedOut {
		return nil, apperror.NewBadRequest("results are only available for completed or timed-out attempts")
	}

	test, err := s.Tests.FindByID(ctx, attempt.TestID)
	if err != nil && err != mongo.ErrNoDocuments {
		return nil, err
	}

	questions, err := s.Questions.FindByTest(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}
	responses, err := s.Responses.FindByAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	byQuestion := make(map[string]*models.QuestionResponse, len(responses))
	for i := range responses {
		byQuestion[responses[i].QuestionID] = &responses[i]
	}

	results := &AttemptResults{
		Attempt: attempt,
		Test:    test,
		Performance: PerformanceAnalytics{
			ByDifficulty: make(map[string]GroupPerformance),
			ByType:       make(map[string]GroupPerformance),
		},
	}
	for _, q := range questions {
		r := byQuestion[q.ID]
		item := QuestionResult{Question: q, Response: r, Max: q.MaxPoints()}
		if r != nil {
			item.Correct = r.IsCorrect
			if q.IsDominoFamily() {
				if r.IsCorrect {
					item.Points = 1
				}
			} else {
				for _, prop := range r.PropositionResponses {
					if prop.IsCorrect {
						item.Points++
					}
				}
			}

			results.Performance.TotalVisits += r.VisitCount
			results.Performance.TotalAnswerChanges += r.AnswerChanges
			if r.WasAnswered() {
				recordGroup(results.Performance.ByDifficulty, string(q.Difficulty), r.IsCorrect)
				recordGroup(results.Performance.ByType, q.QuestionType, r.IsCorrect)
				if r.TimeSpent > 0 {
					if results.Performance.FastestQuestionID == "" || r.TimeSpent < results.Performance.FastestTimeMs {
						results.Performance.FastestQuestionID = q.ID
						results.Performance.FastestTimeMs = r.TimeSpent
					}
					if r.TimeSpent > results.Performance.SlowestTimeMs {
						results.Performance.SlowestQuestionID = q.ID
						results.Performance.SlowestTimeMs = r.TimeSpent
					}
				}
			}
		}
		results.Questions = append(results.Questions, item)
	}
	return results, nil
}

func recordGroup(groups map[string]GroupPerformance, key string, correct bool) {
	g := groups[key]
	g.Answered++
	if correct {
		g.Correct++
	}
	g.Accuracy = float64(g.Correct) / float64(g.Answered) * 100
	groups[key] = g
}

// HandleAiClassification applies an AI pipeline verdict to an attempt. An
// unknown attempt is logged and dropped so the consumer does not requeue it.
func (s *AttemptService) HandleAiClassification(ctx context.Context, attemptID, prediction string, confidence float64) error {
	attempt, err := s.Attempts.FindByID(ctx, attemptID)
	if err != nil {
		// A bad or unknown id is a poison message; dropping it keeps the
		// consumer from requeueing forever.
		if err == mongo.ErrNoDocuments || primitiveHexError(err) {
			log.Printf("Classification for unknown attempt %s, dropping", attemptID)
			return nil
		}
		return err
	}

	now := time.Now()
	attempt.AiClassification = &models.AiClassification{
		Prediction:   prediction,
		Confidence:   confidence,
		ClassifiedAt: &now,
	}
	if err := s.Attempts.Save(ctx, attempt); err != nil {
		return err
	}

	s.publishAttemptEvent(event.EventTypeAttemptClassified, attempt)
	return nil
}

// UpdateManualClassification records a psychologist's classification, which
// always takes precedence over the AI one when both are present.
func (s *AttemptService) UpdateManualClassification(ctx context.Context, attemptID, classification, classifiedBy string) (*models.TestAttempt, error) {
	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	attempt.ManualClassification = &models.ManualClassification{
		Classification: classification,
		ClassifiedBy:   classifiedBy,
		ClassifiedAt:   &now,
	}
	if err := s.Attempts.Save(ctx, attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

func (s *AttemptService) UpdateAiComment(ctx context.Context, attemptID, comment string) (*models.TestAttempt, error) {
	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	attempt.AiComment = &models.AttemptComment{
		Comment:     comment,
		CommentedBy: "ai",
		CommentedAt: &now,
	}
	if err := s.Attempts.Save(ctx, attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

func (s *AttemptService) UpdatePsychologistComment(ctx context.Context, attemptID, comment, commentedBy string) (*models.TestAttempt, error) {
	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	attempt.PsychologistComment = &models.AttemptComment{
		Comment:     comment,
		CommentedBy: commentedBy,
		CommentedAt: &now,
	}
	if err := s.Attempts.Save(ctx, attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

// RecomputeQuestionAnalytics rebuilds a question's aggregate rates from every
// response ever recorded against it.
func (s *AttemptService) RecomputeQuestionAnalytics(ctx context.Context, questionID string) error {
	question, err := s.Questions.FindByID(ctx, questionID)
	if err != nil {
		return err
	}
	responses, err := s.Responses.FindByQuestion(ctx, questionID)
	if err != nil {
		return err
	}

	analytics := buildQuestionAnalytics(question, responses)
	return s.Questions.SaveAnalytics(ctx, questionID, analytics)
}

func buildQuestionAnalytics(question *models.Question, responses []models.QuestionResponse) models.QuestionAnalytics {
	var analytics models.QuestionAnalytics

	var answered, correct, half, reversed, unknown int
	var totalTime int64
	var totalVisits int
	for _, r := range responses {
		totalTime += r.TimeSpent
		totalVisits += r.VisitCount
		if !r.WasAnswered() {
			continue
		}
		answered++
		if r.IsCorrect {
			correct++
		}
		if r.IsHalfCorrect {
			half++
		}
		if r.IsReversed {
			reversed++
		}
		for _, prop := range r.PropositionResponses {
			if prop.CandidateEvaluation == models.EvaluationUnknown {
				unknown++
				break
			}
		}
	}

	if answered > 0 {
		analytics.CorrectAnswerRate = float64(correct) / float64(answered) * 100
		if question.IsDominoFamily() {
			analytics.HalfCorrectRate = float64(half) / float64(answered) * 100
			analytics.ReversedAnswerRate = float64(reversed) / float64(answered) * 100
		} else {
			analytics.DontUnderstandRate = float64(unknown) / float64(answered) * 100
		}
	}
	if len(responses) > 0 {
		analytics.AverageTimeSpent = float64(totalTime) / float64(len(responses))
		analytics.VisitCountAverage = float64(totalVisits) / float64(len(responses))
	}
	return analytics
}

// RecomputeTestAnalytics rebuilds a test's aggregate attempt statistics.
func (s *AttemptService) RecomputeTestAnalytics(ctx context.Context, testID string) error {
	attempts, err := s.Attempts.FindByTestInRange(ctx, testID, nil, nil)
	if err != nil {
		return err
	}

	var analytics models.TestAnalytics
	analytics.TotalAttempts = len(attempts)

	var scoreSum float64
	var timeSum int64
	for _, a := range attempts {
		if a.Status != models.AttemptStatusCompleted {
			continue
		}
		analytics.CompletedAttempts++
		scoreSum += a.PercentageScore
		timeSum += a.TimeSpent
	}
	if analytics.CompletedAttempts > 0 {
		analytics.AverageScore = scoreSum / float64(analytics.CompletedAttempts)
		analytics.AverageTimeSpent = float64(timeSum) / float64(analytics.CompletedAttempts)
	}

	return s.Tests.SaveAnalytics(ctx, testID, analytics)
}

func (s *AttemptService) publishAttemptEvent(eventType string, attempt *models.TestAttempt) {
	if s.Publisher == nil {
		return
	}
	err := s.Publisher.PublishAttemptEvent(&event.AttemptEvent{
		EventType:       eventType,
		AttemptID:       attempt.ID,
		TestID:          attempt.TestID,
		CandidateID:     attempt.CandidateID,
		Status:          string(attempt.Status),
		Score:           attempt.Score,
		PercentageScore: attempt.PercentageScore,
		Timestamp:       time.Now().Unix(),
	})
	if err != nil {
		log.Printf("Warning: failed to publish %s for attempt %s: %v", eventType, attempt.ID, err)
	}
}

// sniffUserAgent extracts a coarse device and browser label from the request's
// user agent header; both fall back to "unknown".
func sniffUserAgent(userAgent string) (device, browser string) {
	device = "desktop"
	browser = "unknown"
	if userAgent == "" {
		return "unknown", "unknown"
	}

	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		device = "tablet"
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		device = "mobile"
	}

	switch {
	case strings.Contains(ua, "edg/"):
		browser = "edge"
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera"):
		browser = "opera"
	case strings.Contains(ua, "chrome"):
		browser = "chrome"
	case strings.Contains(ua, "firefox"):
		browser = "firefox"
	case strings.Contains(ua, "safari"):
		browser = "safari"
	}
	return device, browser
}
