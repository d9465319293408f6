package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zero71st/farmgate/internal/security/domain"
	userDomain "github.com/zero71st/farmgate/internal/user/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createTestContext builds a gin test context with an optional JSON body.
func createTestContext(t *testing.T, method, path string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, reader)
	if body != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	return c, w
}

// attachSecurityContext simulates a request that passed the security middleware.
func attachSecurityContext(c *gin.Context, sc *domain.SecurityContext) {
	ctx := WithSecurityContext(c.Request.Context(), sc)
	c.Request = c.Request.WithContext(ctx)
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// MockKeyUseCase is a testify mock for the key lifecycle use case.
type MockKeyUseCase struct {
	mock.Mock
}

func (m *MockKeyUseCase) Issue(ctx context.Context, input *domain.IssueKeyInput) (*domain.IssueKeyOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IssueKeyOutput), args.Error(1)
}

func (m *MockKeyUseCase) Validate(ctx context.Context, plainKey string) (*domain.KeyValidation, error) {
	args := m.Called(ctx, plainKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KeyValidation), args.Error(1)
}

func (m *MockKeyUseCase) Revoke(ctx context.Context, id uuid.UUID, revokedBy string) (bool, error) {
	args := m.Called(ctx, id, revokedBy)
	return args.Bool(0), args.Error(1)
}

func (m *MockKeyUseCase) RevokeAll(ctx context.Context, userID uuid.UUID, revokedBy string) (int, error) {
	args := m.Called(ctx, userID, revokedBy)
	return args.Int(0), args.Error(1)
}

func (m *MockKeyUseCase) ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.APIKey, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.APIKey), args.Error(1)
}

func (m *MockKeyUseCase) CleanupExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockUserUseCase is a testify mock for the user use case.
type MockUserUseCase struct {
	mock.Mock
}

func (m *MockUserUseCase) Create(ctx context.Context, input userDomain.CreateUserInput) (*userDomain.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*userDomain.User), args.Error(1)
}

func (m *MockUserUseCase) Authenticate(ctx context.Context, username, password string) (*userDomain.User, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*userDomain.User), args.Error(1)
}

func (m *MockUserUseCase) Get(ctx context.Context, id uuid.UUID) (*userDomain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*userDomain.User), args.Error(1)
}

// activeUser builds a user fixture for handler tests.
func activeUser(role string) *userDomain.User {
	return &userDomain.User{
		ID:        uuid.Must(uuid.NewV7()),
		Username:  "somchai",
		Email:     "somchai@farm.example",
		Name:      "Somchai J.",
		Role:      role,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
}
