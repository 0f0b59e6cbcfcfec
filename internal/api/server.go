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

	"github.com/meddiag-engine/internal/domain"
	"github.com/meddiag-engine/internal/health"
	"github.com/meddiag-engine/internal/middleware"
	"github.com/meddiag-engine/internal/monitoring"
	"github.com/meddiag-engine/internal/scoring"
	"github.com/meddiag-engine/internal/service"
)

// Version is reported by /health.
const Version = "1.0.0"

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	logger        *logrus.Logger
	service       *service.DiagnosticService
	engine        *scoring.Engine
	health        *health.Checker
	extraChecks   []health.Check
	metrics       *monitoring.Collector
	router        *gin.Engine
	server        *http.Server
}

// Option customizes a Server.
type Option func(*Server)

// WithHealthChecks adds component checks to /health. The rule registry is
// always checked.
func WithHealthChecks(checks ...health.Check) Option {
	return func(s *Server) { s.extraChecks = append(s.extraChecks, checks...) }
}

// WithMetrics shares a collector with other components. Without it the
// server keeps its own.
func WithMetrics(collector *monitoring.Collector) Option {
	return func(s *Server) { s.metrics = collector }
}

// NewServer creates a new HTTP server instance
func NewServer(
	configManager domain.ConfigManager,
	logger *logrus.Logger,
	svc *service.DiagnosticService,
	engine *scoring.Engine,
	opts ...Option,
) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		configManager: configManager,
		logger:        logger,
		service:       svc,
		engine:        engine,
	}
	for _, opt := range opts {
		opt(server)
	}
	if server.metrics == nil {
		server.metrics = monitoring.NewCollector(0)
	}

	router := gin.New()
	router.Use(
		middleware.CorrelationID(),
		middleware.Recovery(logger),
		middleware.AccessLog(logger),
		middleware.Metrics(server.metrics),
		middleware.SecurityHeaders(),
		middleware.BodyLimit(cfg.Server.MaxBodyBytes),
		corsMiddleware(cfg.Server.AllowOrigins),
	)
	server.router = router
	server.health = health.NewChecker(logger, Version, 5*time.Second,
		append([]health.Check{health.NewRulesCheck(engine.Registry())}, server.extraChecks...)...)

	server.setupRoutes()
	return server
}

// Router exposes the handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/rules", s.handleRules)
	s.router.GET("/metrics", s.handleMetrics)

	s.router.POST("/diagnostic", s.handleDiagnostic)
	s.router.POST("/predict-treatment", s.handlePredictTreatment)
	s.router.POST("/suggest-medications", s.handleSuggestMedications)
	s.router.POST("/generate-prescription", s.handleGeneratePrescription)
	s.router.POST("/check-medication-compatibility", s.handleCheckCompatibility)
	s.router.POST("/suggest-analyses", s.handleSuggestAnalyses)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.HeaderCorrelationID},
		ExposeHeaders: []string{middleware.HeaderCorrelationID},
		MaxAge:        12 * time.Hour,
	}
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
