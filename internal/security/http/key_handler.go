package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/zero71st/farmgate/internal/errors"
	"github.com/zero71st/farmgate/internal/httputil"
	"github.com/zero71st/farmgate/internal/security/domain"
	"github.com/zero71st/farmgate/internal/security/http/dto"
	"github.com/zero71st/farmgate/internal/security/usecase"
	customValidation "github.com/zero71st/farmgate/internal/validation"
)

// KeyHandler handles HTTP requests for API key administration.
type KeyHandler struct {
	keys   usecase.KeyUseCase
	logger *slog.Logger
}

// NewKeyHandler creates a new key handler with required dependencies.
func NewKeyHandler(keys usecase.KeyUseCase, logger *slog.Logger) *KeyHandler {
	return &KeyHandler{
		keys:   keys,
		logger: logger,
	}
}

// IssueHandler issues a new API key for a user.
// POST /api/v1/keys - requires admin:apikeys.
// Returns 201 Created with the plain key; the key is never retrievable again.
func (h *KeyHandler) IssueHandler(c *gin.Context) {
	var req dto.IssueKeyRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		httputil.HandleBadRequestGin(c,
			fmt.Errorf("invalid user ID format: must be a valid UUID"),
			h.logger)
		return
	}

	output, err := h.keys.Issue(c.Request.Context(), &domain.IssueKeyInput{
		UserID: userID,
		Label:  req.Label,
		TTL:    time.Duration(req.TTLHours) * time.Hour,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.IssueKeyResponse{
		Key:       output.PlainKey,
		APIKey:    dto.MapKeyToResponse(output.Key),
		ExpiresAt: output.Key.ExpiresAt,
	})
}

// RevokeHandler revokes a single API key.
// DELETE /api/v1/keys/:id - requires admin:apikeys.
// Returns 200 OK; revoking an already revoked key reports revoked=false.
func (h *KeyHandler) RevokeHandler(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleBadRequestGin(c,
			fmt.Errorf("invalid key ID format: must be a valid UUID"),
			h.logger)
		return
	}

	performed, err := h.keys.Revoke(c.Request.Context(), keyID, revokedBy(c))
	if err != nil {
		httputil.HandleErrorGin(c, adminKeyError(err), h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"revoked": performed})
}

// ListUserKeysHandler lists a user's active API keys.
// GET /api/v1/users/:id/keys - requires admin:users.
// Returns 200 OK; key digests are never included.
func (h *KeyHandler) ListUserKeysHandler(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleBadRequestGin(c,
			fmt.Errorf("invalid user ID format: must be a valid UUID"),
			h.logger)
		return
	}

	keys, err := h.keys.ListActive(c.Request.Context(), userID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapKeysToListResponse(keys))
}

// RevokeAllHandler revokes every active key owned by a user.
// DELETE /api/v1/users/:id/keys - requires admin:users.
// Returns 200 OK with the number of keys revoked.
func (h *KeyHandler) RevokeAllHandler(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleBadRequestGin(c,
			fmt.Errorf("invalid user ID format: must be a valid UUID"),
			h.logger)
		return
	}

	count, err := h.keys.RevokeAll(c.Request.Context(), userID, revokedBy(c))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.RevokeAllResponse{RevokedCount: count})
}

// adminKeyError translates credential-flavored key errors for the admin
// surface, where an unknown key is a missing resource rather than a failed
// authentication.
func adminKeyError(err error) error {
	if apperrors.Is(err, domain.ErrKeyNotFound) {
		return apperrors.Wrap(apperrors.ErrNotFound, "api key not found")
	}
	return err
}

// revokedBy resolves the acting identity for revocation audit fields.
func revokedBy(c *gin.Context) string {
	if sc, ok := GetSecurityContext(c.Request.Context()); ok {
		return sc.UserID.String()
	}
	return "unknown"
}
