// Package repository provides data persistence implementations for API keys.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zero71st/farmgate/internal/database"
	"github.com/zero71st/farmgate/internal/security/domain"

	apperrors "github.com/zero71st/farmgate/internal/errors"
)

const apiKeyColumns = `id, user_id, key_hash, label, role, usage_count, last_used_at,
			  expires_at, revoked_at, revoked_by, is_active, created_at`

// PostgreSQLAPIKeyRepository handles API key persistence for PostgreSQL.
type PostgreSQLAPIKeyRepository struct {
	db *sql.DB
}

// NewPostgreSQLAPIKeyRepository creates a new PostgreSQLAPIKeyRepository.
func NewPostgreSQLAPIKeyRepository(db *sql.DB) *PostgreSQLAPIKeyRepository {
	return &PostgreSQLAPIKeyRepository{db: db}
}

// Create inserts a new API key record.
func (r *PostgreSQLAPIKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO api_keys (id, user_id, key_hash, label, role, usage_count, expires_at, is_active, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`

	_, err := querier.ExecContext(ctx, query,
		key.ID, key.UserID, key.KeyHash, key.Label, key.Role, key.UsageCount, key.ExpiresAt, key.IsActive,
	)
	if err != nil {
		if isPostgreSQLUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "api key already exists")
		}
		return apperrors.Wrap(err, "failed to create api key")
	}
	return nil
}

// Get retrieves an API key by ID. Returns ErrKeyNotFound if not found.
func (r *PostgreSQLAPIKeyRepository) Get(ctx context.Context, id uuid.UUID) (*domain.APIKey, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE id = $1`

	return scanAPIKey(querier.QueryRowContext(ctx, query, id))
}

// GetByKeyHash retrieves an API key by its digest. This is the hot path for
// request validation. Returns ErrKeyNotFound if no key matches.
func (r *PostgreSQLAPIKeyRepository) GetByKeyHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_hash = $1`

	return scanAPIKey(querier.QueryRowContext(ctx, query, keyHash))
}

// UpdateUsage atomically increments the usage counter and stamps the last
// usage time.
func (r *PostgreSQLAPIKeyRepository) UpdateUsage(ctx context.Context, id uuid.UUID, usedAt time.Time) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE api_keys SET usage_count = usage_count + 1, last_used_at = $2 WHERE id = $1`

	result, err := querier.ExecContext(ctx, query, id, usedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to update api key usage")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows")
	}
	if rows == 0 {
		return domain.ErrKeyNotFound
	}
	return nil
}

// MarkRevoked revokes a key. The update is guarded so an already revoked key
// is left untouched; the bool result reports whether this call did the revoke.
func (r *PostgreSQLAPIKeyRepository) MarkRevoked(
	ctx context.Context,
	id uuid.UUID,
	revokedBy string,
	revokedAt time.Time,
) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE api_keys SET revoked_at = $2, revoked_by = $3, is_active = FALSE
			  WHERE id = $1 AND revoked_at IS NULL`

	result, err := querier.ExecContext(ctx, query, id, revokedAt, revokedBy)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to revoke api key")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to get affected rows")
	}
	return rows > 0, nil
}

// ListActiveByUser returns all non-revoked active keys owned by a user.
func (r *PostgreSQLAPIKeyRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*domain.APIKey, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + apiKeyColumns + ` FROM api_keys
			  WHERE user_id = $1 AND is_active = TRUE AND revoked_at IS NULL
			  ORDER BY created_at DESC`

	rows, err := querier.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list api keys")
	}
	defer rows.Close()

	var keys []*domain.APIKey
	for rows.Next() {
		var key domain.APIKey
		var revokedBy sql.NullString
		if err := rows.Scan(
			&key.ID, &key.UserID, &key.KeyHash, &key.Label, &key.Role, &key.UsageCount,
			&key.LastUsedAt, &key.ExpiresAt, &key.RevokedAt, &revokedBy, &key.IsActive, &key.CreatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan api key")
		}
		key.RevokedBy = revokedBy.String
		keys = append(keys, &key)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate api keys")
	}
	return keys, nil
}

// DeactivateExpired flags every key whose expiry has passed as inactive and
// returns the number of keys affected.
func (r *PostgreSQLAPIKeyRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE api_keys SET is_active = FALSE
			  WHERE is_active = TRUE AND expires_at IS NOT NULL AND expires_at <= $1`

	result, err := querier.ExecContext(ctx, query, now)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to deactivate expired api keys")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get affected rows")
	}
	return rows, nil
}

func scanAPIKey(row *sql.Row) (*domain.APIKey, error) {
	var key domain.APIKey
	var revokedBy sql.NullString
	err := row.Scan(
		&key.ID, &key.UserID, &key.KeyHash, &key.Label, &key.Role, &key.UsageCount,
		&key.LastUsedAt, &key.ExpiresAt, &key.RevokedAt, &revokedBy, &key.IsActive, &key.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get api key")
	}
	key.RevokedBy = revokedBy.String
	return &key, nil
}

// isPostgreSQLUniqueViolation checks for a unique constraint violation.
func isPostgreSQLUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}
