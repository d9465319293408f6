// Package usecase implements the user business logic and orchestrates user domain operations.
package usecase

import (
	"context"
	"strings"
	"time"

	validation "github.com/jellydator/validation"

	"github.com/allisson/go-pwdhash"
	"github.com/google/uuid"

	apperrors "github.com/zero71st/farmgate/internal/errors"
	"github.com/zero71st/farmgate/internal/user/domain"
	appValidation "github.com/zero71st/farmgate/internal/validation"
)

// UseCase defines the interface for user business logic operations
type UseCase interface {
	Create(ctx context.Context, input domain.CreateUserInput) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// UserRepository interface defines user repository operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Get(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// UserUseCase handles user-related business logic
type UserUseCase struct {
	userRepo       UserRepository
	passwordHasher *pwdhash.PasswordHasher
	defaultRole    string
	knownRoles     map[string]int
}

// NewUserUseCase creates a new UserUseCase. Roles are validated against the
// configured hierarchy so that a typo in a role name fails at creation time
// instead of silently producing an account with no permissions.
func NewUserUseCase(
	userRepo UserRepository,
	defaultRole string,
	roleHierarchy map[string]int,
) (UseCase, error) {
	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyModerate))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create password hasher")
	}

	return &UserUseCase{
		userRepo:       userRepo,
		passwordHasher: hasher,
		defaultRole:    defaultRole,
		knownRoles:     roleHierarchy,
	}, nil
}

// validateCreateUserInput validates the creation input using jellydator/validation
func (uc *UserUseCase) validateCreateUserInput(input domain.CreateUserInput) error {
	err := validation.ValidateStruct(&input,
		validation.Field(&input.Username,
			validation.Required.Error("username is required"),
			appValidation.NotBlank,
			appValidation.Username,
			validation.Length(3, 64).Error("username must be between 3 and 64 characters"),
		),
		validation.Field(&input.Email,
			validation.Required.Error("email is required"),
			appValidation.NotBlank,
			appValidation.Email,
			validation.Length(5, 255).Error("email must be between 5 and 255 characters"),
		),
		validation.Field(&input.Name,
			validation.Required.Error("name is required"),
			appValidation.NotBlank,
			validation.Length(1, 255).Error("name must be between 1 and 255 characters"),
		),
		validation.Field(&input.Password,
			validation.Required.Error("password is required"),
			validation.Length(8, 128).Error("password must be between 8 and 128 characters"),
			appValidation.PasswordStrength{
				MinLength:     8,
				RequireUpper:  true,
				RequireLower:  true,
				RequireNumber: true,
			},
		),
	)
	return appValidation.WrapValidationError(err)
}

// Create creates a new user with a hashed password
func (uc *UserUseCase) Create(ctx context.Context, input domain.CreateUserInput) (*domain.User, error) {
	if err := uc.validateCreateUserInput(input); err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = uc.defaultRole
	}
	if _, ok := uc.knownRoles[role]; !ok {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "unknown role: "+role)
	}

	hashedPassword, err := uc.passwordHasher.Hash([]byte(input.Password))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to hash password")
	}

	user := &domain.User{
		ID:           uuid.Must(uuid.NewV7()),
		Username:     strings.TrimSpace(strings.ToLower(input.Username)),
		Email:        strings.TrimSpace(strings.ToLower(input.Email)),
		Name:         strings.TrimSpace(input.Name),
		PasswordHash: hashedPassword,
		Role:         role,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Authenticate verifies a username and password pair.
// Failures collapse into ErrInvalidCredentials so that callers cannot
// distinguish an unknown username from a wrong password.
func (uc *UserUseCase) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := uc.userRepo.GetByUsername(ctx, strings.TrimSpace(strings.ToLower(username)))
	if err != nil {
		if apperrors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, domain.ErrInvalidCredentials
	}

	ok, err := uc.passwordHasher.Verify([]byte(password), user.PasswordHash)
	if err != nil || !ok {
		return nil, domain.ErrInvalidCredentials
	}

	return user, nil
}

// Get retrieves a user by ID
func (uc *UserUseCase) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return uc.userRepo.Get(ctx, id)
}
