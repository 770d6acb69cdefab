// Package api exposes the diagnosis, patient, community, report and review
// services over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/middleware"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/service"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// formOverhead is the multipart allowance on top of the image size limit.
const formOverhead = 1 << 20

// Services are the application services behind the routes.
type Services struct {
	Diagnoses *service.DiagnosisService
	Patients  *service.PatientService
	Community *service.CommunityService
	Reports   *service.ReportService
	Feedback  *service.FeedbackService
}

// Options carries the optional pieces of the server.
type Options struct {
	// UploadDir is served at the upload public path when set.
	UploadDir string
	// Checks are run by /readyz. A failing check marks the service not ready.
	Checks map[string]func(context.Context) error
	// BreakerState reports the inference circuit breaker state.
	BreakerState func() string
}

// Server represents the HTTP server
type Server struct {
	config   *domain.Config
	services Services
	options  Options
	logger   *logrus.Logger
	router   *gin.Engine
	server   *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(config *domain.Config, services Services, options Options, logger *logrus.Logger) *Server {
	if config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	origins := config.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(
		middleware.CorrelationID(),
		middleware.AuditLogger(logger),
		gin.Recovery(),
		middleware.SecurityHeaders(),
		cors.New(cors.Config{
			AllowOrigins:  origins,
			AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Correlation-ID", "X-Request-ID"},
			ExposeHeaders: []string{"X-Correlation-ID", "Content-Disposition"},
			MaxAge:        12 * time.Hour,
		}),
		middleware.BodyLimit(config.Upload.MaxFileSize+formOverhead),
		middleware.RequestTimeout(config.Server.RequestTimeout),
	)

	s := &Server{
		config:   config,
		services: services,
		options:  options,
		logger:   logger,
		router:   router,
	}
	s.setupRoutes()
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.server.Addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/readyz", s.handleReady)

	if s.options.UploadDir != "" {
		s.router.Static(s.config.Upload.PublicPath, s.options.UploadDir)
	}

	api := s.router.Group("/api")

	diagnosis := api.Group("/diagnosis")
	{
		diagnosis.POST("", s.handleSubmitDiagnosis)
		diagnosis.GET("", s.handleListDiagnoses)
		diagnosis.GET("/:id", s.handleGetDiagnosis)
		diagnosis.PUT("/:id/status", s.handleUpdateDiagnosisStatus)
		diagnosis.POST("/:id/feedback", s.handleReviewDiagnosis)
		diagnosis.GET("/:id/feedback", s.handleGetReview)
	}

	patients := api.Group("/patients")
	{
		patients.GET("", s.handleListPatients)
		patients.POST("", s.handleCreatePatient)
		patients.GET("/stats/summary", s.handlePatientStats)
		patients.GET("/:id", s.handleGetPatient)
		patients.PUT("/:id", s.handleUpdatePatient)
		patients.GET("/:id/history", s.handlePatientHistory)
	}

	community := api.Group("/community")
	{
		community.GET("/stats", s.handleCommunityStats)
		community.GET("/outbreaks", s.handleListOutbreaks)
		community.POST("/outbreaks", s.handleReportOutbreak)
		community.PUT("/outbreaks/:id/status", s.handleUpdateOutbreakStatus)
		community.GET("/trends", s.handleTrends)
		community.GET("/villages/:name", s.handleVillage)
		community.GET("/recommendations", s.handleRecommendations)
	}

	reports := api.Group("/reports")
	{
		reports.GET("", s.handleListReports)
		reports.GET("/monthly", s.handleMonthlyReport)
		reports.GET("/weekly", s.handleWeeklyReport)
		reports.GET("/:id", s.handleGetReport)
		reports.POST("/export", s.handleExportReports)
	}

	feedback := api.Group("/feedback")
	{
		feedback.GET("", s.handleListReviews)
		feedback.GET("/summary", s.handleReviewSummary)
		feedback.GET("/export", s.handleExportReviews)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   Version,
	})
}

// handleReady runs the readiness checks.
func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{}
	for name, check := range s.options.Checks {
		if err := check(ctx); err != nil {
			checks[name] = fmt.Sprintf("unhealthy: %v", err)
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := gin.H{"status": "ok", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	// An open breaker only means analyses use the fallback classifier.
	if s.options.BreakerState != nil {
		body["inference_breaker"] = s.options.BreakerState()
	}
	c.JSON(status, body)
}
