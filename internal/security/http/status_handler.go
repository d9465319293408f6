package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zero71st/farmgate/internal/config"
	"github.com/zero71st/farmgate/internal/security/http/dto"
	"github.com/zero71st/farmgate/internal/session"
)

// StatusHandler exposes a live snapshot of the security pipeline for
// operators: active sessions and the configured rate-limit policies.
type StatusHandler struct {
	sessions       *session.Manager
	policies       []config.RateLimitPolicy
	detailedErrors bool
	logger         *slog.Logger
}

// NewStatusHandler creates a new status handler with required dependencies.
func NewStatusHandler(
	sessions *session.Manager,
	policies []config.RateLimitPolicy,
	detailedErrors bool,
	logger *slog.Logger,
) *StatusHandler {
	return &StatusHandler{
		sessions:       sessions,
		policies:       policies,
		detailedErrors: detailedErrors,
		logger:         logger,
	}
}

// GetHandler returns the pipeline status snapshot.
// GET /api/v1/security/status - requires admin:system.
func (h *StatusHandler) GetHandler(c *gin.Context) {
	c.JSON(http.StatusOK, dto.SecurityStatusResponse{
		Sessions:          h.sessions.Stats(),
		RateLimitPolicies: dto.MapPoliciesToResponse(h.policies),
		DetailedErrors:    h.detailedErrors,
		GeneratedAt:       time.Now().UTC(),
	})
}
