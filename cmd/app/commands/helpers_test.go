package commands

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/zero71st/farmgate/internal/security/domain"
	userDomain "github.com/zero71st/farmgate/internal/user/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockKeyUseCase is a testify mock for the key lifecycle use case.
type mockKeyUseCase struct {
	mock.Mock
}

func (m *mockKeyUseCase) Issue(ctx context.Context, input *domain.IssueKeyInput) (*domain.IssueKeyOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IssueKeyOutput), args.Error(1)
}

func (m *mockKeyUseCase) Validate(ctx context.Context, plainKey string) (*domain.KeyValidation, error) {
	args := m.Called(ctx, plainKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KeyValidation), args.Error(1)
}

func (m *mockKeyUseCase) Revoke(ctx context.Context, id uuid.UUID, revokedBy string) (bool, error) {
	args := m.Called(ctx, id, revokedBy)
	return args.Bool(0), args.Error(1)
}

func (m *mockKeyUseCase) RevokeAll(ctx context.Context, userID uuid.UUID, revokedBy string) (int, error) {
	args := m.Called(ctx, userID, revokedBy)
	return args.Int(0), args.Error(1)
}

func (m *mockKeyUseCase) ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.APIKey, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.APIKey), args.Error(1)
}

func (m *mockKeyUseCase) CleanupExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// mockUserUseCase is a testify mock for the user use case.
type mockUserUseCase struct {
	mock.Mock
}

func (m *mockUserUseCase) Create(ctx context.Context, input userDomain.CreateUserInput) (*userDomain.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*userDomain.User), args.Error(1)
}

func (m *mockUserUseCase) Authenticate(ctx context.Context, username, password string) (*userDomain.User, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*userDomain.User), args.Error(1)
}

func (m *mockUserUseCase) Get(ctx context.Context, id uuid.UUID) (*userDomain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*userDomain.User), args.Error(1)
}

func testKey(userID uuid.UUID) *domain.APIKey {
	expiresAt := time.Now().UTC().Add(24 * time.Hour)
	return &domain.APIKey{
		ID:        uuid.Must(uuid.NewV7()),
		UserID:    userID,
		Label:     "ci-pipeline",
		Role:      "User",
		IsActive:  true,
		ExpiresAt: &expiresAt,
		CreatedAt: time.Now().UTC(),
	}
}
