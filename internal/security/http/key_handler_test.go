package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/zero71st/farmgate/internal/security/domain"
	"github.com/zero71st/farmgate/internal/security/http/dto"
	userDomain "github.com/zero71st/farmgate/internal/user/domain"
)

func setParam(c *gin.Context, key, value string) {
	c.Params = append(c.Params, gin.Param{Key: key, Value: value})
}

func TestKeyHandler_IssueHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		keys := new(MockKeyUseCase)
		handler := NewKeyHandler(keys, testLogger())

		userID := uuid.Must(uuid.NewV7())
		expires := time.Now().Add(48 * time.Hour).UTC()

		keys.On("Issue", mock.Anything, mock.MatchedBy(func(input *domain.IssueKeyInput) bool {
			return input.UserID == userID &&
				input.Label == "mobile app" &&
				input.TTL == 48*time.Hour
		})).Return(&domain.IssueKeyOutput{
			PlainKey: "fgk_plain",
			Key: &domain.APIKey{
				ID:        uuid.Must(uuid.NewV7()),
				UserID:    userID,
				Label:     "mobile app",
				Role:      "User",
				ExpiresAt: &expires,
				IsActive:  true,
			},
		}, nil).Once()

		c, w := createTestContext(t, http.MethodPost, "/api/v1/keys", dto.IssueKeyRequest{
			UserID:   userID.String(),
			Label:    "mobile app",
			TTLHours: 48,
		})

		handler.IssueHandler(c)

		assert.Equal(t, http.StatusCreated, w.Code)

		response := decodeJSON[dto.IssueKeyResponse](t, w)
		assert.Equal(t, "fgk_plain", response.Key)
		assert.Equal(t, "mobile app", response.APIKey.Label)
		keys.AssertExpectations(t)
	})

	t.Run("InvalidUserID", func(t *testing.T) {
		handler := NewKeyHandler(new(MockKeyUseCase), testLogger())

		c, w := createTestContext(t, http.MethodPost, "/api/v1/keys", dto.IssueKeyRequest{
			UserID: "not-a-uuid",
			Label:  "mobile app",
		})

		handler.IssueHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("MissingLabel", func(t *testing.T) {
		handler := NewKeyHandler(new(MockKeyUseCase), testLogger())

		c, w := createTestContext(t, http.MethodPost, "/api/v1/keys", dto.IssueKeyRequest{
			UserID: uuid.Must(uuid.NewV7()).String(),
		})

		handler.IssueHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		keys := new(MockKeyUseCase)
		handler := NewKeyHandler(keys, testLogger())

		keys.On("Issue", mock.Anything, mock.Anything).
			Return(nil, userDomain.ErrUserNotFound).Once()

		c, w := createTestContext(t, http.MethodPost, "/api/v1/keys", dto.IssueKeyRequest{
			UserID: uuid.Must(uuid.NewV7()).String(),
			Label:  "mobile app",
		})

		handler.IssueHandler(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestKeyHandler_RevokeHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		keys := new(MockKeyUseCase)
		handler := NewKeyHandler(keys, testLogger())

		keyID := uuid.Must(uuid.NewV7())
		adminID := uuid.Must(uuid.NewV7())

		keys.On("Revoke", mock.Anything, keyID, adminID.String()).
			Return(true, nil).Once()

		c, w := createTestContext(t, http.MethodDelete, "/api/v1/keys/"+keyID.String(), nil)
		setParam(c, "id", keyID.String())
		attachSecurityContext(c, &domain.SecurityContext{UserID: adminID, Role: "Admin"})

		handler.RevokeHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"revoked": true}`, w.Body.String())
		keys.AssertExpectations(t)
	})

	t.Run("AlreadyRevoked", func(t *testing.T) {
		keys := new(MockKeyUseCase)
		handler := NewKeyHandler(keys, testLogger())

		keyID := uuid.Must(uuid.NewV7())
		keys.On("Revoke", mock.Anything, keyID, "unknown").
			Return(false, nil).Once()

		c, w := createTestContext(t, http.MethodDelete, "/api/v1/keys/"+keyID.String(), nil)
		setParam(c, "id", keyID.String())

		handler.RevokeHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"revoked": false}`, w.Body.String())
	})

	t.Run("InvalidKeyID", func(t *testing.T) {
		handler := NewKeyHandler(new(MockKeyUseCase), testLogger())

		c, w := createTestContext(t, http.MethodDelete, "/api/v1/keys/abc", nil)
		setParam(c, "id", "abc")

		handler.RevokeHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("UnknownKey", func(t *testing.T) {
		keys := new(MockKeyUseCase)
		handler := NewKeyHandler(keys, testLogger())

		keyID := uuid.Must(uuid.NewV7())
		keys.On("Revoke", mock.Anything, keyID, "unknown").
			Return(false, domain.ErrKeyNotFound).Once()

		c, w := createTestContext(t, http.MethodDelete, "/api/v1/keys/"+keyID.String(), nil)
		setParam(c, "id", keyID.String())

		handler.RevokeHandler(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestKeyHandler_ListUserKeysHandler(t *testing.T) {
	keys := new(MockKeyUseCase)
	handler := NewKeyHandler(keys, testLogger())

	userID := uuid.Must(uuid.NewV7())
	keys.On("ListActive", mock.Anything, userID).Return([]*domain.APIKey{
		{ID: uuid.Must(uuid.NewV7()), UserID: userID, Label: "first", IsActive: true},
		{ID: uuid.Must(uuid.NewV7()), UserID: userID, Label: "second", IsActive: true},
	}, nil).Once()

	c, w := createTestContext(t, http.MethodGet, "/api/v1/users/"+userID.String()+"/keys", nil)
	setParam(c, "id", userID.String())

	handler.ListUserKeysHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)

	response := decodeJSON[dto.ListKeysResponse](t, w)
	assert.Len(t, response.Data, 2)
	keys.AssertExpectations(t)
}

func TestKeyHandler_RevokeAllHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		keys := new(MockKeyUseCase)
		handler := NewKeyHandler(keys, testLogger())

		userID := uuid.Must(uuid.NewV7())
		adminID := uuid.Must(uuid.NewV7())

		keys.On("RevokeAll", mock.Anything, userID, adminID.String()).
			Return(3, nil).Once()

		c, w := createTestContext(t, http.MethodDelete, "/api/v1/users/"+userID.String()+"/keys", nil)
		setParam(c, "id", userID.String())
		attachSecurityContext(c, &domain.SecurityContext{UserID: adminID, Role: "Admin"})

		handler.RevokeAllHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)

		response := decodeJSON[dto.RevokeAllResponse](t, w)
		assert.Equal(t, 3, response.RevokedCount)
		keys.AssertExpectations(t)
	})

	t.Run("InvalidUserID", func(t *testing.T) {
		handler := NewKeyHandler(new(MockKeyUseCase), testLogger())

		c, w := createTestContext(t, http.MethodDelete, "/api/v1/users/abc/keys", nil)
		setParam(c, "id", "abc")

		handler.RevokeAllHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
