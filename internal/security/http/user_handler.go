package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zero71st/farmgate/internal/httputil"
	"github.com/zero71st/farmgate/internal/security/http/dto"
	userDomain "github.com/zero71st/farmgate/internal/user/domain"
	userUseCase "github.com/zero71st/farmgate/internal/user/usecase"
	customValidation "github.com/zero71st/farmgate/internal/validation"
)

// UserHandler handles HTTP requests for user account administration.
type UserHandler struct {
	users  userUseCase.UseCase
	logger *slog.Logger
}

// NewUserHandler creates a new user handler with required dependencies.
func NewUserHandler(users userUseCase.UseCase, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger,
	}
}

// CreateHandler creates a new user account.
// POST /api/v1/users - requires admin:users.
// Returns 201 Created with the user data (no password hash).
func (h *UserHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateUserRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	user, err := h.users.Create(c.Request.Context(), userDomain.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapUserToResponse(user))
}

// GetHandler retrieves a user by ID.
// GET /api/v1/users/:id - requires admin:users.
// Returns 200 OK with the user data (no password hash).
func (h *UserHandler) GetHandler(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleBadRequestGin(c,
			fmt.Errorf("invalid user ID format: must be a valid UUID"),
			h.logger)
		return
	}

	user, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapUserToResponse(user))
}
