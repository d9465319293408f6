package usecase

import (
	"context"
	"log/slog"
	"time"

	validation "github.com/jellydator/validation"

	"github.com/google/uuid"

	"github.com/zero71st/farmgate/internal/database"
	"github.com/zero71st/farmgate/internal/security/domain"
	"github.com/zero71st/farmgate/internal/security/service"
	userDomain "github.com/zero71st/farmgate/internal/user/domain"

	apperrors "github.com/zero71st/farmgate/internal/errors"
	appValidation "github.com/zero71st/farmgate/internal/validation"
)

// KeyUseCaseImpl handles the API key lifecycle.
type KeyUseCaseImpl struct {
	txManager  database.TxManager
	keyRepo    APIKeyRepository
	userRepo   UserRepository
	keyService service.KeyService
	logger     *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewKeyUseCase creates a new KeyUseCaseImpl.
func NewKeyUseCase(
	txManager database.TxManager,
	keyRepo APIKeyRepository,
	userRepo UserRepository,
	keyService service.KeyService,
	logger *slog.Logger,
) *KeyUseCaseImpl {
	return &KeyUseCaseImpl{
		txManager:  txManager,
		keyRepo:    keyRepo,
		userRepo:   userRepo,
		keyService: keyService,
		logger:     logger,
		now:        time.Now,
	}
}

// validateIssueKeyInput validates key issuance parameters.
func (uc *KeyUseCaseImpl) validateIssueKeyInput(input *domain.IssueKeyInput) error {
	err := validation.ValidateStruct(input,
		validation.Field(&input.Label,
			validation.Required.Error("label is required"),
			appValidation.NotBlank,
			validation.Length(1, 255).Error("label must be between 1 and 255 characters"),
		),
	)
	if err != nil {
		return appValidation.WrapValidationError(err)
	}
	if input.UserID == uuid.Nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "user id is required")
	}
	if input.TTL < 0 {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "ttl must not be negative")
	}
	return nil
}

// Issue creates a new API key. The owner's role is snapshotted into the key
// record, so a later role change does not affect already issued keys until
// they are reissued.
func (uc *KeyUseCaseImpl) Issue(ctx context.Context, input *domain.IssueKeyInput) (*domain.IssueKeyOutput, error) {
	if err := uc.validateIssueKeyInput(input); err != nil {
		return nil, err
	}

	user, err := uc.userRepo.Get(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	plainKey, keyHash, err := uc.keyService.GenerateKey()
	if err != nil {
		return nil, err
	}

	now := uc.now()
	key := &domain.APIKey{
		ID:        uuid.Must(uuid.NewV7()),
		UserID:    user.ID,
		KeyHash:   keyHash,
		Label:     input.Label,
		Role:      user.Role,
		IsActive:  true,
		CreatedAt: now,
	}
	if input.TTL > 0 {
		expiresAt := now.Add(input.TTL)
		key.ExpiresAt = &expiresAt
	}

	if err := uc.keyRepo.Create(ctx, key); err != nil {
		return nil, err
	}

	uc.logger.Info("api key issued",
		slog.String("key_id", key.ID.String()),
		slog.String("user_id", user.ID.String()),
		slog.String("label", key.Label),
		slog.String("role", key.Role))

	return &domain.IssueKeyOutput{PlainKey: plainKey, Key: key}, nil
}

// Validate authenticates a presented plain key against the stored digest and
// the owner's account state. The checks are ordered so the most specific
// failure wins: unknown, revoked, expired, inactive, then owner state. Expiry
// precedes the active flag so a key deactivated by the cleanup pass still
// reports as expired.
func (uc *KeyUseCaseImpl) Validate(ctx context.Context, plainKey string) (*domain.KeyValidation, error) {
	keyHash, err := uc.keyService.HashKey(plainKey)
	if err != nil {
		return nil, domain.ErrKeyNotFound
	}

	key, err := uc.keyRepo.GetByKeyHash(ctx, keyHash)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	switch {
	case key.RevokedAt != nil:
		return nil, domain.ErrKeyRevoked
	case key.IsExpired(now):
		return nil, domain.ErrKeyExpired
	case !key.IsActive:
		return nil, domain.ErrKeyInactive
	}

	user, err := uc.userRepo.Get(ctx, key.UserID)
	if err != nil {
		if apperrors.Is(err, userDomain.ErrUserNotFound) {
			// Orphaned key: the owner record is gone.
			return nil, domain.ErrKeyInactive
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	return &domain.KeyValidation{
		UserID: key.UserID,
		Role:   key.Role,
		Key:    key,
	}, nil
}

// Revoke revokes a single key. A second revoke of the same key returns
// (false, nil) rather than an error.
func (uc *KeyUseCaseImpl) Revoke(ctx context.Context, id uuid.UUID, revokedBy string) (bool, error) {
	// Existence check first so unknown IDs surface as ErrKeyNotFound instead
	// of a silent no-op.
	if _, err := uc.keyRepo.Get(ctx, id); err != nil {
		return false, err
	}

	revoked, err := uc.keyRepo.MarkRevoked(ctx, id, revokedBy, uc.now())
	if err != nil {
		return false, err
	}

	if revoked {
		uc.logger.Info("api key revoked",
			slog.String("key_id", id.String()),
			slog.String("revoked_by", revokedBy))
	}
	return revoked, nil
}

// RevokeAll revokes every active key owned by a user within one transaction,
// so a partial failure leaves no key half-revoked.
func (uc *KeyUseCaseImpl) RevokeAll(ctx context.Context, userID uuid.UUID, revokedBy string) (int, error) {
	revokedAt := uc.now()
	count := 0

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		keys, err := uc.keyRepo.ListActiveByUser(ctx, userID)
		if err != nil {
			return err
		}
		for _, key := range keys {
			revoked, err := uc.keyRepo.MarkRevoked(ctx, key.ID, revokedBy, revokedAt)
			if err != nil {
				return err
			}
			if revoked {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if count > 0 {
		uc.logger.Info("all api keys revoked",
			slog.String("user_id", userID.String()),
			slog.String("revoked_by", revokedBy),
			slog.Int("count", count))
	}
	return count, nil
}

// ListActive returns the user's active keys.
func (uc *KeyUseCaseImpl) ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.APIKey, error) {
	return uc.keyRepo.ListActiveByUser(ctx, userID)
}

// CleanupExpired deactivates keys whose expiry has passed.
func (uc *KeyUseCaseImpl) CleanupExpired(ctx context.Context) (int64, error) {
	count, err := uc.keyRepo.DeactivateExpired(ctx, uc.now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		uc.logger.Info("expired api keys deactivated", slog.Int64("count", count))
	}
	return count, nil
}

// RunCleanup executes CleanupExpired on the given interval until the context
// is cancelled.
func (uc *KeyUseCaseImpl) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := uc.CleanupExpired(ctx); err != nil {
				uc.logger.Error("api key cleanup failed", slog.String("error", err.Error()))
			}
		}
	}
}
