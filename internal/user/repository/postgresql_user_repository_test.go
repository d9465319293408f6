package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero71st/farmgate/internal/user/domain"
)

func newMockDB(t *testing.T) (*PostgreSQLUserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgreSQLUserRepository(db), mock
}

func userColumns() []string {
	return []string{
		"id", "username", "email", "name", "password_hash",
		"role", "is_active", "created_at", "updated_at",
	}
}

func TestPostgreSQLUserRepository_Create(t *testing.T) {
	repo, mock := newMockDB(t)
	ctx := context.Background()

	user := &domain.User{
		ID:           uuid.Must(uuid.NewV7()),
		Username:     "somchai01",
		Email:        "somchai@example.com",
		Name:         "Somchai Prasert",
		PasswordHash: "hashed_password",
		Role:         "User",
		IsActive:     true,
	}

	mock.ExpectExec("INSERT INTO users").
		WithArgs(user.ID, user.Username, user.Email, user.Name, user.PasswordHash, user.Role, user.IsActive).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(ctx, user)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLUserRepository_Create_DuplicateUsername(t *testing.T) {
	repo, mock := newMockDB(t)
	ctx := context.Background()

	user := &domain.User{
		ID:       uuid.Must(uuid.NewV7()),
		Username: "somchai01",
		Email:    "somchai@example.com",
	}

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(assertablePGError("duplicate key value violates unique constraint \"users_username_key\""))

	err := repo.Create(ctx, user)
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLUserRepository_Get(t *testing.T) {
	repo, mock := newMockDB(t)
	ctx := context.Background()

	id := uuid.Must(uuid.NewV7())
	now := time.Now()

	rows := sqlmock.NewRows(userColumns()).AddRow(
		id, "somchai01", "somchai@example.com", "Somchai Prasert", "hashed_password",
		"User", true, now, now,
	)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
		WithArgs(id).
		WillReturnRows(rows)

	user, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "somchai01", user.Username)
	assert.Equal(t, "User", user.Role)
	assert.True(t, user.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLUserRepository_Get_NotFound(t *testing.T) {
	repo, mock := newMockDB(t)
	ctx := context.Background()

	id := uuid.Must(uuid.NewV7())
	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(userColumns()))

	user, err := repo.Get(ctx, id)
	assert.Nil(t, user)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLUserRepository_GetByUsername(t *testing.T) {
	repo, mock := newMockDB(t)
	ctx := context.Background()

	id := uuid.Must(uuid.NewV7())
	now := time.Now()

	rows := sqlmock.NewRows(userColumns()).AddRow(
		id, "somchai01", "somchai@example.com", "Somchai Prasert", "hashed_password",
		"Admin", true, now, now,
	)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE username").
		WithArgs("somchai01").
		WillReturnRows(rows)

	user, err := repo.GetByUsername(ctx, "somchai01")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "Admin", user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLUserRepository_GetByUsername_NotFound(t *testing.T) {
	repo, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT (.+) FROM users WHERE username").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(userColumns()))

	user, err := repo.GetByUsername(ctx, "ghost")
	assert.Nil(t, user)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// assertablePGError fakes the driver error text lib/pq produces for unique violations.
type assertablePGError string

func (e assertablePGError) Error() string { return string(e) }
