// Package api exposes the study lifecycle over HTTP: upload and registration,
// validation reporting, gate-checked inference and result retrieval.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/brain-mri-analysis-server/internal/domain"
	"github.com/brain-mri-analysis-server/internal/ingest"
	"github.com/brain-mri-analysis-server/internal/middleware"
	"github.com/brain-mri-analysis-server/internal/service"
)

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	logger        *logrus.Logger
	orchestrator  *service.Orchestrator
	assembler     *service.StudyAssembler
	gate          *service.ValidationGate
	store         *ingest.LocalStore
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(
	configManager domain.ConfigManager,
	logger *logrus.Logger,
	orchestrator *service.Orchestrator,
	assembler *service.StudyAssembler,
	gate *service.ValidationGate,
	store *ingest.LocalStore,
) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(middleware.SecurityHeaders())
	router.Use(requestIDMiddleware())
	router.Use(middleware.RequestLogger(logger))
	if cfg.RateLimit.Enabled {
		router.Use(rateLimitMiddleware(cfg.RateLimit))
	}

	server := &Server{
		configManager: configManager,
		logger:        logger,
		orchestrator:  orchestrator,
		assembler:     assembler,
		gate:          gate,
		store:         store,
		router:        router,
	}

	server.setupRoutes()
	return server
}

// Router exposes the underlying handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully.
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
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/studies", s.handleRegisterStudy)
		v1.GET("/studies", s.handleListStudies)
		v1.GET("/studies/:id", s.handleGetStudy)
		v1.GET("/studies/:id/validation", s.handleGetValidation)
		v1.POST("/studies/:id/revalidate", s.handleRevalidate)
		v1.POST("/studies/:id/files", s.handleUploadFiles)
		v1.DELETE("/studies/:id", s.handleDeleteStudy)
		v1.POST("/inference", s.handleInference)
		v1.GET("/results/:id", s.handleGetResults)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// respondError maps business errors onto HTTP responses. Gate rejections get
// a structured 422 payload so clients can show exactly what is missing.
func (s *Server) respondError(c *gin.Context, err error) {
	var blocked *domain.ValidationBlockedError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "study not found"})
	case errors.Is(err, domain.ErrStudyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "study already registered"})
	case errors.As(err, &blocked):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":              "study failed validation - analysis blocked",
			"study_id":           blocked.StudyID,
			"validation_errors":  blocked.Errors,
			"required_sequences": blocked.RequiredSequences,
		})
	default:
		s.logger.WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
