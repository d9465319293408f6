package http

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/zero71st/farmgate/internal/security/http/dto"
	userDomain "github.com/zero71st/farmgate/internal/user/domain"
)

func TestUserHandler_CreateHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		users := new(MockUserUseCase)
		handler := NewUserHandler(users, testLogger())

		created := activeUser("User")
		users.On("Create", mock.Anything, userDomain.CreateUserInput{
			Username: "somchai",
			Email:    "somchai@farm.example",
			Name:     "Somchai J.",
			Password: "Secret123",
		}).Return(created, nil).Once()

		c, w := createTestContext(t, http.MethodPost, "/api/v1/users", dto.CreateUserRequest{
			Username: "somchai",
			Email:    "somchai@farm.example",
			Name:     "Somchai J.",
			Password: "Secret123",
		})

		handler.CreateHandler(c)

		assert.Equal(t, http.StatusCreated, w.Code)

		response := decodeJSON[dto.UserResponse](t, w)
		assert.Equal(t, created.ID.String(), response.ID)
		assert.Equal(t, "somchai", response.Username)
		assert.NotContains(t, w.Body.String(), "password")
		users.AssertExpectations(t)
	})

	t.Run("MissingFields", func(t *testing.T) {
		handler := NewUserHandler(new(MockUserUseCase), testLogger())

		c, w := createTestContext(t, http.MethodPost, "/api/v1/users", dto.CreateUserRequest{
			Username: "somchai",
		})

		handler.CreateHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		users := new(MockUserUseCase)
		handler := NewUserHandler(users, testLogger())

		users.On("Create", mock.Anything, mock.Anything).
			Return(nil, userDomain.ErrUserAlreadyExists).Once()

		c, w := createTestContext(t, http.MethodPost, "/api/v1/users", dto.CreateUserRequest{
			Username: "somchai",
			Email:    "somchai@farm.example",
			Name:     "Somchai J.",
			Password: "Secret123",
		})

		handler.CreateHandler(c)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestUserHandler_GetHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		users := new(MockUserUseCase)
		handler := NewUserHandler(users, testLogger())

		user := activeUser("Admin")
		users.On("Get", mock.Anything, user.ID).Return(user, nil).Once()

		c, w := createTestContext(t, http.MethodGet, "/api/v1/users/"+user.ID.String(), nil)
		setParam(c, "id", user.ID.String())

		handler.GetHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)

		response := decodeJSON[dto.UserResponse](t, w)
		assert.Equal(t, "Admin", response.Role)
	})

	t.Run("InvalidID", func(t *testing.T) {
		handler := NewUserHandler(new(MockUserUseCase), testLogger())

		c, w := createTestContext(t, http.MethodGet, "/api/v1/users/abc", nil)
		setParam(c, "id", "abc")

		handler.GetHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("NotFound", func(t *testing.T) {
		users := new(MockUserUseCase)
		handler := NewUserHandler(users, testLogger())

		userID := uuid.Must(uuid.NewV7())
		users.On("Get", mock.Anything, userID).
			Return(nil, userDomain.ErrUserNotFound).Once()

		c, w := createTestContext(t, http.MethodGet, "/api/v1/users/"+userID.String(), nil)
		setParam(c, "id", userID.String())

		handler.GetHandler(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
