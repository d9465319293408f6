// Package usecase implements the security business logic: API key lifecycle,
// request authorization and usage accounting.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/zero71st/farmgate/internal/security/domain"
	userDomain "github.com/zero71st/farmgate/internal/user/domain"
)

// APIKeyRepository defines persistence operations for API keys.
// Implementations must support transaction-aware operations via context propagation.
type APIKeyRepository interface {
	// Create stores a new API key record.
	Create(ctx context.Context, key *domain.APIKey) error

	// Get retrieves a key by ID. Returns ErrKeyNotFound if not found.
	Get(ctx context.Context, id uuid.UUID) (*domain.APIKey, error)

	// GetByKeyHash retrieves a key by its digest. Returns ErrKeyNotFound if
	// no key matches.
	GetByKeyHash(ctx context.Context, keyHash string) (*domain.APIKey, error)

	// UpdateUsage atomically increments the usage counter and stamps the last
	// usage time.
	UpdateUsage(ctx context.Context, id uuid.UUID, usedAt time.Time) error

	// MarkRevoked revokes a key unless it is already revoked. The bool result
	// reports whether this call performed the revoke.
	MarkRevoked(ctx context.Context, id uuid.UUID, revokedBy string, revokedAt time.Time) (bool, error)

	// ListActiveByUser returns all non-revoked active keys owned by a user.
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*domain.APIKey, error)

	// DeactivateExpired flags every key past its expiry as inactive and
	// returns the number of keys affected.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// UserRepository defines the user lookups the security pipeline needs.
type UserRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*userDomain.User, error)
}

// KeyUseCase defines business logic operations for the API key lifecycle.
type KeyUseCase interface {
	// Issue creates a new API key for a user. The plain key in the output is
	// returned exactly once and never retrievable afterwards.
	Issue(ctx context.Context, input *domain.IssueKeyInput) (*domain.IssueKeyOutput, error)

	// Validate authenticates a presented plain key. Distinct failure modes
	// surface as distinct errors: ErrKeyNotFound, ErrKeyExpired,
	// ErrKeyRevoked, ErrKeyInactive, ErrUserInactive.
	Validate(ctx context.Context, plainKey string) (*domain.KeyValidation, error)

	// Revoke revokes a key by ID. Revoking an already revoked key is a no-op;
	// the bool result reports whether this call performed the revoke.
	Revoke(ctx context.Context, id uuid.UUID, revokedBy string) (bool, error)

	// RevokeAll revokes every active key owned by a user within a single
	// transaction and returns the number of keys revoked.
	RevokeAll(ctx context.Context, userID uuid.UUID, revokedBy string) (int, error)

	// ListActive returns the user's active keys.
	ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.APIKey, error)

	// CleanupExpired deactivates keys past their expiry.
	CleanupExpired(ctx context.Context) (int64, error)
}

// SecurityUseCase runs the full request authorization pipeline.
type SecurityUseCase interface {
	// Authorize evaluates an inbound request through the credential, session,
	// rate-limit and permission stages and returns a unified decision.
	// Storage failures produce a denial rather than an error so callers have a
	// single result shape.
	Authorize(ctx context.Context, req *domain.AccessRequest) *domain.Decision
}
