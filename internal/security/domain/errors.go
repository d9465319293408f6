package domain

import (
	"github.com/zero71st/farmgate/internal/errors"
)

// API key validation errors. Each maps to a distinct denial reason so callers
// can give precise feedback; the HTTP layer collapses them when detailed
// errors are disabled.
var (
	// ErrKeyNotFound indicates no key record matches the presented digest.
	ErrKeyNotFound = errors.Wrap(errors.ErrUnauthorized, "api key not found")

	// ErrKeyExpired indicates the key exists but its expiry has passed.
	ErrKeyExpired = errors.Wrap(errors.ErrUnauthorized, "api key expired")

	// ErrKeyRevoked indicates the key was explicitly revoked.
	ErrKeyRevoked = errors.Wrap(errors.ErrUnauthorized, "api key revoked")

	// ErrKeyInactive indicates the key record is deactivated.
	ErrKeyInactive = errors.Wrap(errors.ErrUnauthorized, "api key inactive")

	// ErrUserInactive indicates the key's owner account is disabled.
	ErrUserInactive = errors.Wrap(errors.ErrForbidden, "user account is inactive")
)
