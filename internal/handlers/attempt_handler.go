package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"test-service/internal/apperror"
	"test-service/internal/models"
	"test-service/internal/repository"
	"test-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counter for attempt starts
	attemptStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_attempt_starts_total",
			Help: "Total number of attempt start requests",
		},
		[]string{"status"}, // status: started/resumed/rejected
	)

	// Counter for answer submissions
	answerSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_answer_submissions_total",
			Help: "Total number of answer submissions",
		},
		[]string{"status"}, // status: success/failure
	)

	// Counter for attempt completions by terminal status
	attemptCompletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_attempt_completions_total",
			Help: "Total number of attempts reaching a terminal status",
		},
		[]string{"status"},
	)

	// Histogram for completion processing time
	completionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "test_attempt_completion_duration_seconds",
			Help:    "Time spent scoring and finalizing attempts",
			Buckets: prometheus.DefBuckets,
		},
	)
)

type AttemptHandler struct {
	Service *service.AttemptService
}

func NewAttemptHandler(s *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{Service: s}
}

// candidateID reads the authenticated user from the header set by the gateway.
func candidateID(c *gin.Context) string {
	return c.GetHeader("X-User-ID")
}

func respondError(c *gin.Context, err error) {
	c.JSON(apperror.StatusCode(err), gin.H{"error": err.Error()})
}

// StartAttempt opens or resumes an attempt for the authenticated candidate.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	testID := c.Param("testId")
	userID := candidateID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID is required"})
		return
	}

	result, err := h.Service.StartTestAttempt(
		context.Background(),
		testID,
		userID,
		c.GetHeader("User-Agent"),
		c.ClientIP(),
	)
	if err != nil {
		attemptStarts.WithLabelValues("rejected").Inc()
		respondError(c, err)
		return
	}

	if result.Resumed {
		attemptStarts.WithLabelValues("resumed").Inc()
		c.JSON(http.StatusOK, gin.H{
			"attempt": result.Attempt,
			"resumed": true,
			"message": "Resumed existing attempt",
		})
		return
	}

	attemptStarts.WithLabelValues("started").Inc()
	c.JSON(http.StatusCreated, gin.H{
		"attempt": result.Attempt,
		"resumed": false,
		"message": "Attempt started successfully",
	})
}

// GetAttempt returns one attempt by id.
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	attempt, err := h.Service.GetAttempt(context.Background(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempt)
}

// GetAttemptQuestions returns the attempt's questions with the candidate's
// response state; answers are stripped while the attempt is in progress.
func (h *AttemptHandler) GetAttemptQuestions(c *gin.Context) {
	questions, err := h.Service.GetAttemptQuestions(context.Background(), c.Param("id"), candidateID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"questions": questions,
		"count":     len(questions),
	})
}

// VisitQuestion records a navigation event.
func (h *AttemptHandler) VisitQuestion(c *gin.Context) {
	response, err := h.Service.VisitQuestion(
		context.Background(),
		c.Param("id"),
		c.Param("questionId"),
		candidateID(c),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// SubmitAnswer records and evaluates a candidate's answer. The body carries
// either a domino value or a proposition evaluation list under "answer".
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	var req struct {
		Answer json.RawMessage `json:"answer" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid answer format",
			"details": err.Error(),
		})
		return
	}

	response, err := h.Service.SubmitAnswer(
		context.Background(),
		c.Param("id"),
		c.Param("questionId"),
		candidateID(c),
		req.Answer,
	)
	if err != nil {
		answerSubmissions.WithLabelValues("failure").Inc()
		respondError(c, err)
		return
	}

	answerSubmissions.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, response)
}

// ToggleFlag flips the review flag on a question.
func (h *AttemptHandler) ToggleFlag(c *gin.Context) {
	response, err := h.Service.ToggleQuestionFlag(
		context.Background(),
		c.Param("id"),
		c.Param("questionId"),
		candidateID(c),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"response": response,
		"flagged":  response.IsFlagged,
	})
}

// SkipQuestion marks a question skipped.
func (h *AttemptHandler) SkipQuestion(c *gin.Context) {
	response, err := h.Service.SkipQuestion(
		context.Background(),
		c.Param("id"),
		c.Param("questionId"),
		candidateID(c),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// UpdateTimeSpent adds viewing time to a question.
func (h *AttemptHandler) UpdateTimeSpent(c *gin.Context) {
	var req struct {
		DeltaMs int64 `json:"deltaMs"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.Service.UpdateTimeSpent(
		context.Background(),
		c.Param("id"),
		c.Param("questionId"),
		candidateID(c),
		req.DeltaMs,
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// CompleteAttempt finishes an attempt and returns the scored result.
func (h *AttemptHandler) CompleteAttempt(c *gin.Context) {
	start := time.Now()
	result, err := h.Service.CompleteAttempt(context.Background(), c.Param("id"), candidateID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	completionDuration.Observe(time.Since(start).Seconds())
	attemptCompletions.WithLabelValues(string(result.Attempt.Status)).Inc()

	response := gin.H{
		"attempt":          result.Attempt,
		"success":          result.Success,
		"alreadyCompleted": result.AlreadyCompleted,
	}
	if result.Warning != "" {
		response["warning"] = result.Warning
	}
	c.JSON(http.StatusOK, response)
}

// FinishAttempt terminates an attempt with an explicit terminal status; used
// by the proctoring side for timed-out and abandoned sessions.
func (h *AttemptHandler) FinishAttempt(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Service.FinishAttemptWithStatus(
		context.Background(),
		c.Param("id"),
		models.AttemptStatus(req.Status),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	attemptCompletions.WithLabelValues(string(result.Attempt.Status)).Inc()
	c.JSON(http.StatusOK, result)
}

// RecalculateScore re-runs score aggregation for a terminal attempt.
func (h *AttemptHandler) RecalculateScore(c *gin.Context) {
	attempt, err := h.Service.RecalculateScore(context.Background(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"attempt": attempt,
		"message": "Score recalculated successfully",
	})
}

// GetAttemptResults returns the full post-completion review.
func (h *AttemptHandler) GetAttemptResults(c *gin.Context) {
	results, err := h.Service.GetAttemptResults(context.Background(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// GetMyAttempts lists the authenticated candidate's attempts.
func (h *AttemptHandler) GetMyAttempts(c *gin.Context) {
	userID := candidateID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID is required"})
		return
	}

	filter := repository.AttemptFilter{
		Status: models.AttemptStatus(c.Query("status")),
		TestID: c.Query("test_id"),
	}
	attempts, err := h.Service.GetCandidateAttempts(context.Background(), userID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"attempts": attempts,
		"count":    len(attempts),
	})
}

// GetTestAttempts lists a test's attempts, paged.
func (h *AttemptHandler) GetTestAttempts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	filter := repository.AttemptFilter{
		Status:      models.AttemptStatus(c.Query("status")),
		CandidateID: c.Query("candidate_id"),
	}
	pageOpts := repository.PageOptions{
		Page:  page,
		Limit: limit,
		Sort:  c.DefaultQuery("sort", "start_time"),
		Desc:  c.DefaultQuery("order", "desc") == "desc",
	}

	result, err := h.Service.GetTestAttempts(context.Background(), c.Param("testId"), filter, pageOpts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// UpdateClassification records a manual classification by a psychologist.
func (h *AttemptHandler) UpdateClassification(c *gin.Context) {
	var req struct {
		Classification string `json:"classification" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := candidateID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID is required"})
		return
	}

	attempt, err := h.Service.UpdateManualClassification(context.Background(), c.Param("id"), req.Classification, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempt)
}

// UpdateComment stores an AI or psychologist comment on the attempt.
func (h *AttemptHandler) UpdateComment(c *gin.Context) {
	var req struct {
		Comment string `json:"comment" binding:"required"`
		Source  string `json:"source"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var attempt *models.TestAttempt
	var err error
	if req.Source == "ai" {
		attempt, err = h.Service.UpdateAiComment(context.Background(), c.Param("id"), req.Comment)
	} else {
		attempt, err = h.Service.UpdatePsychologistComment(context.Background(), c.Param("id"), req.Comment, candidateID(c))
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempt)
}
