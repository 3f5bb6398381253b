package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"test-service/internal/config"
	"test-service/internal/db"
	"test-service/internal/event"
	"test-service/internal/handlers"
	"test-service/internal/repository"
	"test-service/internal/service"
	"test-service/pkg/discovery"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system env")
	}
	cfg := config.ServiceConfig

	if cfg.MongoDB.URI == "" {
		log.Fatal("MONGO_URI is required")
	}
	db.InitMongo(cfg.MongoDB.URI)
	defer db.DisconnectMongo()

	db.InitRedis(cfg.Redis)

	database := db.Client.Database(cfg.MongoDB.Database)

	// Repositories
	testRepo := repository.NewTestRepository(database)
	questionRepo := repository.NewQuestionRepository(database)
	attemptRepo := repository.NewAttemptRepository(database)
	responseRepo := repository.NewResponseRepository(database)
	snapshotRepo := repository.NewSnapshotRepository(database)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := attemptRepo.CreateIndexes(ctx); err != nil {
		log.Printf("Warning: Failed to create attempt indexes: %v", err)
	}
	if err := responseRepo.CreateIndexes(ctx); err != nil {
		log.Printf("Warning: Failed to create response indexes: %v", err)
	}
	if err := snapshotRepo.CreateIndexes(ctx); err != nil {
		log.Printf("Warning: Failed to create snapshot indexes: %v", err)
	}
	cancel()

	// Event publisher
	publisher, err := event.NewEventPublisher(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange)
	if err != nil {
		log.Printf("Warning: Failed to initialize event publisher: %v", err)
	} else {
		defer publisher.Close()
	}

	// Services
	attemptService := service.NewAttemptService(testRepo, questionRepo, attemptRepo, responseRepo, publisher)
	analyticsService := service.NewAnalyticsService(
		testRepo, questionRepo, attemptRepo, responseRepo, snapshotRepo,
		db.RedisClient, cfg.Analytics.DashboardCacheTTL,
	)

	// AI classification consumer
	consumer, err := event.NewEventConsumer(cfg.RabbitMQ.URI, attemptService)
	if err != nil {
		log.Printf("Warning: Failed to initialize event consumer: %v", err)
	} else {
		if err := consumer.Start(); err != nil {
			log.Printf("Warning: Failed to start event consumer: %v", err)
			consumer.Close()
		} else {
			log.Println("Successfully started AI classification consumer")
			defer consumer.Close()
		}
	}

	// Background workers
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	analyticsService.StartSnapshotScheduler(schedulerCtx, cfg.Analytics.SnapshotInterval)
	if cfg.Lifecycle.ReaperEnabled {
		attemptService.StartAttemptReaper(schedulerCtx, cfg.Lifecycle.ReaperInterval, cfg.Lifecycle.AbandonAfter)
	}

	// Handlers
	attemptHandler := handlers.NewAttemptHandler(attemptService)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "https://evolvia.phrimp.io.vn"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Length", "Accept-Encoding", "X-CSRF-Token", "Authorization", "accept", "origin", "Cache-Control", "X-Requested-With", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": cfg.Server.ServiceName,
			"status":  "healthy",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupAttemptRoutes(r, attemptHandler)
	setupAnalyticsRoutes(r, analyticsHandler)

	// Service discovery
	registry, err := discovery.NewServiceRegistry(cfg)
	if err != nil {
		log.Printf("Warning: Failed to create service registry: %v", err)
	} else {
		if err := registry.Register(); err != nil {
			log.Printf("Warning: Failed to register with Consul: %v", err)
		}
		defer registry.Deregister()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting server: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}
	log.Println("Server stopped")
}

func setupAttemptRoutes(r *gin.Engine, h *handlers.AttemptHandler) {
	protected := r.Group("/protected/test")
	protected.Use(requireUser())
	{
		protected.POST("/tests/:testId/attempts", h.StartAttempt)
		protected.GET("/tests/:testId/attempts", h.GetTestAttempts)
		protected.GET("/attempts/me", h.GetMyAttempts)

		protected.GET("/attempts/:id", h.GetAttempt)
		protected.GET("/attempts/:id/questions", h.GetAttemptQuestions)
		protected.GET("/attempts/:id/results", h.GetAttemptResults)

		protected.POST("/attempts/:id/questions/:questionId/visit", h.VisitQuestion)
		protected.POST("/attempts/:id/questions/:questionId/answer", h.SubmitAnswer)
		protected.POST("/attempts/:id/questions/:questionId/flag", h.ToggleFlag)
		protected.POST("/attempts/:id/questions/:questionId/skip", h.SkipQuestion)
		protected.POST("/attempts/:id/questions/:questionId/time", h.UpdateTimeSpent)

		protected.POST("/attempts/:id/complete", h.CompleteAttempt)
		protected.POST("/attempts/:id/finish", h.FinishAttempt)
		protected.POST("/attempts/:id/recalculate", h.RecalculateScore)

		protected.PUT("/attempts/:id/classification", h.UpdateClassification)
		protected.PUT("/attempts/:id/comment", h.UpdateComment)
	}
}

func setupAnalyticsRoutes(r *gin.Engine, h *handlers.AnalyticsHandler) {
	protected := r.Group("/protected/test/analytics")
	protected.Use(requireUser())
	{
		protected.GET("/dashboard", h.GetDashboard)
		protected.GET("/history", h.GetHistory)
		protected.POST("/snapshots", h.GenerateSnapshot)
		protected.GET("/tests/:testId", h.GetTestAnalytics)
		protected.GET("/candidates/:candidateId", h.GetCandidateAnalytics)
	}
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-User-ID") == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
				"code":  "MISSING_USER_ID",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
