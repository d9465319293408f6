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

// MySQLAPIKeyRepository handles API key persistence for MySQL. The same
// placeholder syntax works for the sqlite driver used in local development.
type MySQLAPIKeyRepository struct {
	db *sql.DB
}

// NewMySQLAPIKeyRepository creates a new MySQLAPIKeyRepository.
func NewMySQLAPIKeyRepository(db *sql.DB) *MySQLAPIKeyRepository {
	return &MySQLAPIKeyRepository{db: db}
}

// Create inserts a new API key record.
func (r *MySQLAPIKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO api_keys (id, user_id, key_hash, label, role, usage_count, expires_at, is_active, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, NOW())`

	_, err := querier.ExecContext(ctx, query,
		key.ID.String(), key.UserID.String(), key.KeyHash, key.Label, key.Role,
		key.UsageCount, key.ExpiresAt, key.IsActive,
	)
	if err != nil {
		if isMySQLDuplicateEntry(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "api key already exists")
		}
		return apperrors.Wrap(err, "failed to create api key")
	}
	return nil
}

// Get retrieves an API key by ID. Returns ErrKeyNotFound if not found.
func (r *MySQLAPIKeyRepository) Get(ctx context.Context, id uuid.UUID) (*domain.APIKey, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE id = ?`

	return scanMySQLAPIKey(querier.QueryRowContext(ctx, query, id.String()))
}

// GetByKeyHash retrieves an API key by its digest. Returns ErrKeyNotFound if
// no key matches.
func (r *MySQLAPIKeyRepository) GetByKeyHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_hash = ?`

	return scanMySQLAPIKey(querier.QueryRowContext(ctx, query, keyHash))
}

// UpdateUsage atomically increments the usage counter and stamps the last
// usage time.
func (r *MySQLAPIKeyRepository) UpdateUsage(ctx context.Context, id uuid.UUID, usedAt time.Time) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE api_keys SET usage_count = usage_count + 1, last_used_at = ? WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, usedAt, id.String())
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

// MarkRevoked revokes a key if it is not already revoked. The bool result
// reports whether this call did the revoke.
func (r *MySQLAPIKeyRepository) MarkRevoked(
	ctx context.Context,
	id uuid.UUID,
	revokedBy string,
	revokedAt time.Time,
) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE api_keys SET revoked_at = ?, revoked_by = ?, is_active = FALSE
			  WHERE id = ? AND revoked_at IS NULL`

	result, err := querier.ExecContext(ctx, query, revokedAt, revokedBy, id.String())
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
func (r *MySQLAPIKeyRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*domain.APIKey, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + apiKeyColumns + ` FROM api_keys
			  WHERE user_id = ? AND is_active = TRUE AND revoked_at IS NULL
			  ORDER BY created_at DESC`

	rows, err := querier.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list api keys")
	}
	defer rows.Close()

	var keys []*domain.APIKey
	for rows.Next() {
		key, err := scanMySQLAPIKeyRow(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate api keys")
	}
	return keys, nil
}

// DeactivateExpired flags every key whose expiry has passed as inactive and
// returns the number of keys affected.
func (r *MySQLAPIKeyRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE api_keys SET is_active = FALSE
			  WHERE is_active = TRUE AND expires_at IS NOT NULL AND expires_at <= ?`

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

func scanMySQLAPIKey(row *sql.Row) (*domain.APIKey, error) {
	var key domain.APIKey
	var id, userID string
	var revokedBy sql.NullString
	err := row.Scan(
		&id, &userID, &key.KeyHash, &key.Label, &key.Role, &key.UsageCount,
		&key.LastUsedAt, &key.ExpiresAt, &key.RevokedAt, &revokedBy, &key.IsActive, &key.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get api key")
	}
	return finishMySQLAPIKey(&key, id, userID, revokedBy)
}

func scanMySQLAPIKeyRow(rows *sql.Rows) (*domain.APIKey, error) {
	var key domain.APIKey
	var id, userID string
	var revokedBy sql.NullString
	err := rows.Scan(
		&id, &userID, &key.KeyHash, &key.Label, &key.Role, &key.UsageCount,
		&key.LastUsedAt, &key.ExpiresAt, &key.RevokedAt, &revokedBy, &key.IsActive, &key.CreatedAt,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to scan api key")
	}
	return finishMySQLAPIKey(&key, id, userID, revokedBy)
}

// isMySQLDuplicateEntry checks for a duplicate key error.
func isMySQLDuplicateEntry(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Duplicate entry")
}

func finishMySQLAPIKey(key *domain.APIKey, id, userID string, revokedBy sql.NullString) (*domain.APIKey, error) {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse api key id")
	}
	parsedUserID, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse api key user id")
	}
	key.ID = parsedID
	key.UserID = parsedUserID
	key.RevokedBy = revokedBy.String
	return key, nil
}
