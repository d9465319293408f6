// Package service provides security-related services for API key generation
// and digest computation.
package service

// KeyService defines API key generation and hashing operations.
type KeyService interface {
	// GenerateKey creates a new cryptographically secure API key.
	// Returns the plain key and its SHA-256 digest; the plain key is never
	// stored and must be transmitted to the caller exactly once.
	GenerateKey() (plainKey string, keyHash string, err error)

	// HashKey computes the SHA-256 hex digest of a plain key.
	// Hashing an empty key is a programming error and is rejected.
	HashKey(plainKey string) (string, error)

	// MatchKey reports whether the plain key's digest equals the stored hash,
	// using a constant-time comparison.
	MatchKey(plainKey, keyHash string) bool
}
