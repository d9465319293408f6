// Package domain defines the core user domain entities and types.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/zero71st/farmgate/internal/errors"
)

// User represents an account that can own API keys and sessions.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	Name         string
	// PasswordHash holds the Argon2id hash of the login password.
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Domain-specific errors for user operations.
var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.Wrap(errors.ErrNotFound, "user not found")

	// ErrUserAlreadyExists indicates a user with the same username or email already exists.
	ErrUserAlreadyExists = errors.Wrap(errors.ErrConflict, "user already exists")

	// ErrInvalidCredentials indicates a failed username/password login attempt.
	// Deliberately generic to prevent user enumeration.
	ErrInvalidCredentials = errors.Wrap(errors.ErrUnauthorized, "invalid credentials")
)

// CreateUserInput contains the parameters for creating a new user.
type CreateUserInput struct {
	Username string
	Email    string
	Name     string
	Password string
	// Role is optional; empty means the configured default role.
	Role string
}
