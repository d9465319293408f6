package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zero71st/farmgate/internal/config"
	securityHTTP "github.com/zero71st/farmgate/internal/security/http"
	"github.com/zero71st/farmgate/internal/security/usecase"
)

// Handlers bundles the domain handlers the router mounts.
type Handlers struct {
	Auth   *securityHTTP.AuthHandler
	Key    *securityHTTP.KeyHandler
	User   *securityHTTP.UserHandler
	Status *securityHTTP.StatusHandler
}

// Server represents the main HTTP server.
type Server struct {
	server *http.Server
	router *gin.Engine
	db     *sql.DB
	logger *slog.Logger
}

// NewServer creates a new HTTP server. The database handle is used only by the
// readiness endpoint; a nil handle reports not ready.
func NewServer(db *sql.DB, host string, port int, logger *slog.Logger) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter builds the route table. Health endpoints sit outside the
// security pipeline; every /api/v1 route passes through SecurityMiddleware,
// which itself honors the configured excluded paths (login among them).
// metricsMiddleware may be nil when metrics are disabled.
func (s *Server) SetupRouter(
	cfg *config.Config,
	securityUseCase usecase.SecurityUseCase,
	handlers Handlers,
	metricsMiddleware gin.HandlerFunc,
) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(
		cfg.CORSEnabled, cfg.CORSAllowOrigins,
		cfg.APIKeyHeader, cfg.SessionHeader,
		s.logger,
	); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}
	if metricsMiddleware != nil {
		router.Use(metricsMiddleware)
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	api := router.Group("/api/v1")
	api.Use(securityHTTP.SecurityMiddleware(
		securityUseCase, cfg.APIKeyHeader, cfg.SessionHeader, s.logger,
	))

	auth := api.Group("/auth")
	auth.POST("/login",
		securityHTTP.LoginRateLimitMiddleware(cfg.LoginRateLimitRPS, cfg.LoginRateLimitBurst, s.logger),
		handlers.Auth.LoginHandler)
	auth.POST("/logout", handlers.Auth.LogoutHandler)
	auth.GET("/me", handlers.Auth.MeHandler)

	api.POST("/keys", handlers.Key.IssueHandler)
	api.DELETE("/keys/:id", handlers.Key.RevokeHandler)

	api.POST("/users", handlers.User.CreateHandler)
	api.GET("/users/:id", handlers.User.GetHandler)
	api.GET("/users/:id/keys", handlers.Key.ListUserKeysHandler)
	api.DELETE("/users/:id/keys", handlers.Key.RevokeAllHandler)

	api.GET("/security/status", handlers.Status.GetHandler)

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server. SetupRouter must have been called first.
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler reports liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports readiness, including database connectivity.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{"database": "ok"}
	status := "ready"
	code := http.StatusOK

	if s.db == nil {
		components["database"] = "error"
		status = "not_ready"
		code = http.StatusServiceUnavailable
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			components["database"] = "error"
			status = "not_ready"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{"status": status, "components": components})
}
