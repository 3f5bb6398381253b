package handlers

import (
	"context"
	"net/http"
	"time"

	"test-service/internal/models"
	"test-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counter for dashboard reads
	dashboardReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_analytics_dashboard_reads_total",
			Help: "Total number of dashboard analytics reads",
		},
		[]string{"category"},
	)

	// Counter for snapshot generations
	snapshotRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_analytics_snapshot_runs_total",
			Help: "Total number of snapshot generation runs",
		},
		[]string{"trigger", "status"}, // trigger: manual/scheduled
	)
)

type AnalyticsHandler struct {
	Service *service.AnalyticsService
}

func NewAnalyticsHandler(s *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{Service: s}
}

func parseCategory(c *gin.Context) models.TestCategory {
	category := models.TestCategory(c.DefaultQuery("category", string(models.CategoryAll)))
	switch category {
	case models.CategoryPersonality, models.CategoryLogical, models.CategoryCognitive, models.CategoryVerbal:
		return category
	}
	return models.CategoryAll
}

// GetDashboard returns the latest daily snapshot for a category.
func (h *AnalyticsHandler) GetDashboard(c *gin.Context) {
	category := parseCategory(c)
	dashboardReads.WithLabelValues(string(category)).Inc()

	snapshot, err := h.Service.GetDashboardAnalytics(context.Background(), category)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// GetHistory returns daily snapshots between two dates (YYYY-MM-DD).
func (h *AnalyticsHandler) GetHistory(c *gin.Context) {
	from, err := time.Parse("2006-01-02", c.DefaultQuery("from", time.Now().AddDate(0, 0, -30).Format("2006-01-02")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date, expected YYYY-MM-DD"})
		return
	}
	to, err := time.Parse("2006-01-02", c.DefaultQuery("to", time.Now().Format("2006-01-02")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date, expected YYYY-MM-DD"})
		return
	}

	snapshots, err := h.Service.GetAnalyticsHistory(context.Background(), parseCategory(c), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

// GenerateSnapshot triggers an immediate rollup run.
func (h *AnalyticsHandler) GenerateSnapshot(c *gin.Context) {
	if err := h.Service.GenerateDailySnapshot(context.Background()); err != nil {
		snapshotRuns.WithLabelValues("manual", "failure").Inc()
		respondError(c, err)
		return
	}
	snapshotRuns.WithLabelValues("manual", "success").Inc()
	c.JSON(http.StatusOK, gin.H{"message": "Snapshot generated successfully"})
}

// GetTestAnalytics returns a test's aggregates with per-question rates,
// optionally limited to a start-time range (from/to, YYYY-MM-DD).
func (h *AnalyticsHandler) GetTestAnalytics(c *gin.Context) {
	var from, to *time.Time
	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date, expected YYYY-MM-DD"})
			return
		}
		from = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date, expected YYYY-MM-DD"})
			return
		}
		to = &t
	}

	view, err := h.Service.GetTestAnalytics(context.Background(), c.Param("testId"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetCandidateAnalytics summarizes a candidate's attempt history.
func (h *AnalyticsHandler) GetCandidateAnalytics(c *gin.Context) {
	analytics, err := h.Service.GetCandidateAnalytics(context.Background(), c.Param("candidateId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}
