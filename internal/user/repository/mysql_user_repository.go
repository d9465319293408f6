package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/zero71st/farmgate/internal/database"
	"github.com/zero71st/farmgate/internal/user/domain"

	apperrors "github.com/zero71st/farmgate/internal/errors"
)

// MySQLUserRepository handles user persistence for MySQL. The same
// placeholder syntax works for the sqlite driver used in local development.
type MySQLUserRepository struct {
	db *sql.DB
}

// NewMySQLUserRepository creates a new MySQLUserRepository.
func NewMySQLUserRepository(db *sql.DB) *MySQLUserRepository {
	return &MySQLUserRepository{db: db}
}

// Create inserts a new user.
func (r *MySQLUserRepository) Create(ctx context.Context, user *domain.User) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO users (id, username, email, name, password_hash, role, is_active, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`

	_, err := querier.ExecContext(ctx, query,
		user.ID.String(), user.Username, user.Email, user.Name, user.PasswordHash, user.Role, user.IsActive,
	)
	if err != nil {
		if isMySQLDuplicateEntry(err) {
			return domain.ErrUserAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create user")
	}
	return nil
}

// Get retrieves a user by ID. Returns ErrUserNotFound if not found.
func (r *MySQLUserRepository) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, username, email, name, password_hash, role, is_active, created_at, updated_at
			  FROM users WHERE id = ?`

	return scanMySQLUser(querier.QueryRowContext(ctx, query, id.String()))
}

// GetByUsername retrieves a user by username. Returns ErrUserNotFound if not found.
func (r *MySQLUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, username, email, name, password_hash, role, is_active, created_at, updated_at
			  FROM users WHERE username = ?`

	return scanMySQLUser(querier.QueryRowContext(ctx, query, username))
}

func scanMySQLUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	var id string
	err := row.Scan(
		&id, &user.Username, &user.Email, &user.Name, &user.PasswordHash,
		&user.Role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get user")
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse user id")
	}
	user.ID = parsed
	return &user, nil
}

// isMySQLDuplicateEntry checks for a duplicate key error.
func isMySQLDuplicateEntry(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Duplicate entry")
}
