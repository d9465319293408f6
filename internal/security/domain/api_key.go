// Package domain defines the security domain models: API keys, request
// descriptors and authorization decisions.
//
// API keys are opaque bearer credentials. Only a one-way digest of the key is
// ever stored; the raw value is returned exactly once at issuance.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// APIKey represents an issued API key record. The raw key value is never
// stored; KeyHash holds its SHA-256 digest.
type APIKey struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	KeyHash    string
	Label      string
	// Role is a snapshot of the owner's role at issuance time.
	Role       string
	UsageCount int64
	LastUsedAt *time.Time
	ExpiresAt  *time.Time
	RevokedAt  *time.Time
	RevokedBy  string
	IsActive   bool
	CreatedAt  time.Time
}

// ValidForUse reports whether the key can authenticate a request at the given
// instant: active, not revoked, and either non-expiring or not yet expired.
func (k *APIKey) ValidForUse(now time.Time) bool {
	if !k.IsActive || k.RevokedAt != nil {
		return false
	}
	if k.ExpiresAt != nil && !k.ExpiresAt.After(now) {
		return false
	}
	return true
}

// IsExpired reports whether the key has an expiry in the past.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}

// IssueKeyInput contains the parameters for issuing a new API key.
type IssueKeyInput struct {
	UserID uuid.UUID
	Label  string
	// TTL of zero means the key never expires.
	TTL time.Duration
}

// IssueKeyOutput contains the result of issuing a new API key.
// SECURITY: PlainKey is only returned once and must be securely transmitted
// to the caller. It is never retrievable again after this response.
type IssueKeyOutput struct {
	PlainKey string
	Key      *APIKey
}

// KeyValidation is the successful outcome of validating a presented API key.
type KeyValidation struct {
	UserID uuid.UUID
	Role   string
	Key    *APIKey
}
