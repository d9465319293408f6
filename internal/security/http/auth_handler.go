package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/zero71st/farmgate/internal/errors"
	"github.com/zero71st/farmgate/internal/httputil"
	"github.com/zero71st/farmgate/internal/security/domain"
	"github.com/zero71st/farmgate/internal/security/http/dto"
	"github.com/zero71st/farmgate/internal/security/usecase"
	"github.com/zero71st/farmgate/internal/session"
	userUseCase "github.com/zero71st/farmgate/internal/user/usecase"
	customValidation "github.com/zero71st/farmgate/internal/validation"
)

var (
	errNoSessionPresented     = errors.New("logout requires a session header")
	errMissingSecurityContext = apperrors.Wrap(apperrors.ErrUnauthorized, "missing security context")
)

// AuthHandler handles interactive authentication: login, logout and caller
// introspection.
type AuthHandler struct {
	users    userUseCase.UseCase
	keys     usecase.KeyUseCase
	sessions *session.Manager
	// loginKeyTTL bounds the lifetime of keys issued through login. Keys issued
	// by an admin through the key endpoint are not affected.
	loginKeyTTL time.Duration
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler with required dependencies.
func NewAuthHandler(
	users userUseCase.UseCase,
	keys usecase.KeyUseCase,
	sessions *session.Manager,
	loginKeyTTL time.Duration,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:       users,
		keys:        keys,
		sessions:    sessions,
		loginKeyTTL: loginKeyTTL,
		logger:      logger,
	}
}

// LoginHandler authenticates a username/password pair and, on success, issues
// a fresh API key plus a session bound to the account.
// POST /api/v1/auth/login - unauthenticated, per-IP rate limited.
// Returns 200 OK with the plain key; the key is never retrievable again.
func (h *AuthHandler) LoginHandler(c *gin.Context) {
	var req dto.LoginRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	output, err := h.keys.Issue(c.Request.Context(), &domain.IssueKeyInput{
		UserID: user.ID,
		Label:  "interactive login",
		TTL:    h.loginKeyTTL,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	sess, err := h.sessions.Create(user.ID, user.Role, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.logger.Info("login succeeded",
		slog.String("user_id", user.ID.String()),
		slog.String("client_ip", c.ClientIP()))

	c.JSON(http.StatusOK, dto.LoginResponse{
		APIKey:           output.PlainKey,
		SessionID:        sess.ID,
		Role:             user.Role,
		SessionExpiresAt: sess.AbsExpiresAt,
		KeyExpiresAt:     output.Key.ExpiresAt,
	})
}

// LogoutHandler invalidates the caller's current session.
// POST /api/v1/auth/logout - requires a valid credential and session.
// Returns 204 No Content; logging out twice is not an error.
func (h *AuthHandler) LogoutHandler(c *gin.Context) {
	sc, ok := GetSecurityContext(c.Request.Context())
	if !ok || sc.SessionID == "" {
		httputil.HandleBadRequestGin(c, errNoSessionPresented, h.logger)
		return
	}

	h.sessions.Invalidate(sc.SessionID)

	h.logger.Info("logout", slog.String("user_id", sc.UserID.String()))

	c.Data(http.StatusNoContent, "application/json", nil)
}

// MeHandler returns the caller's identity as resolved by the pipeline.
// GET /api/v1/auth/me - requires a valid credential.
// Returns 200 OK with user ID, role, permissions and session info.
func (h *AuthHandler) MeHandler(c *gin.Context) {
	sc, ok := GetSecurityContext(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, errMissingSecurityContext, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSecurityContextToMeResponse(sc))
}
