// Package api exposes the dashboard and the scan endpoints over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kestrelsec/graphaudit/internal/analyzer"
	"github.com/kestrelsec/graphaudit/internal/config"
	"github.com/kestrelsec/graphaudit/internal/database"
	"github.com/kestrelsec/graphaudit/internal/logger"
)

type Server struct {
	cfg      config.ServerConfig
	router   *gin.Engine
	analyzer *analyzer.Analyzer
	store    database.Store
	logger   *logger.Logger
}

// New builds the HTTP server. The store may be nil when report persistence
// is not configured; the reports endpoints then answer 503.
func New(cfg config.ServerConfig, an *analyzer.Analyzer, store database.Store, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:      cfg,
		router:   router,
		analyzer: an,
		store:    store,
		logger:   log.WithComponent("api"),
	}

	router.Use(LoggingMiddleware(s.logger))
	if cfg.EnableCORS {
		router.Use(CORSMiddleware())
	}
	if cfg.EnableAuth {
		router.Use(AuthMiddleware(cfg.APIKey, s.logger))
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/", s.handleDashboard)
	s.router.GET("/health", s.handleHealth)

	apiGroup := s.router.Group("/api")
	apiGroup.POST("/graphql-cop", s.handleGraphqlCop)
	apiGroup.POST("/graphw00f", s.handleGraphw00f)
	apiGroup.POST("/introspection", s.handleIntrospection)
	apiGroup.POST("/analyze", s.handleAnalyze)
	apiGroup.POST("/query", s.handleQuery)
	apiGroup.GET("/reports", s.handleListReports)
	apiGroup.GET("/reports/:id", s.handleGetReport)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Infow("Shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "graphaudit",
	})
}

func (s *Server) handleDashboard(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.String(http.StatusOK, dashboardHTML)
}
