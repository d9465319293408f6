// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/zero71st/farmgate/internal/validation"
)

// LoginRequest contains the credentials for an interactive login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks if the login request is valid.
func (r *LoginRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Username,
			validation.Required,
			customValidation.NotBlank,
		),
		validation.Field(&r.Password,
			validation.Required,
			customValidation.NotBlank,
		),
	)
}

// IssueKeyRequest contains the parameters for issuing a new API key.
type IssueKeyRequest struct {
	UserID string `json:"user_id"`
	Label  string `json:"label"`
	// TTLHours of zero means the key never expires.
	TTLHours int `json:"ttl_hours"`
}

// Validate checks if the issue key request is valid.
func (r *IssueKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UserID,
			validation.Required,
			customValidation.NotBlank,
		),
		validation.Field(&r.Label,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 64),
		),
		validation.Field(&r.TTLHours,
			validation.Min(0),
		),
	)
}

// CreateUserRequest contains the parameters for creating a new user account.
// Field-level constraints (password strength, email format) are enforced by
// the user use case; this only rejects structurally empty requests early.
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Validate checks if the create user request is valid.
func (r *CreateUserRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Username,
			validation.Required,
			customValidation.NotBlank,
		),
		validation.Field(&r.Email,
			validation.Required,
			customValidation.NotBlank,
		),
		validation.Field(&r.Name,
			validation.Required,
			customValidation.NotBlank,
		),
		validation.Field(&r.Password,
			validation.Required,
			customValidation.NotBlank,
		),
	)
}
