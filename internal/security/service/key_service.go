package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	apperrors "github.com/zero71st/farmgate/internal/errors"
)

const (
	// keyPrefix namespaces farmgate keys so they are recognizable in logs
	// and support rotation of the key format.
	keyPrefix = "fgk_"

	// keyLength is the number of random characters after the prefix.
	keyLength = 64

	keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// keyService implements KeyService using crypto/rand and SHA-256.
type keyService struct{}

// GenerateKey creates a new API key of the form fgk_[64 alphanumeric chars],
// drawn from a cryptographically secure random source.
// Returns the plain key and its SHA-256 hex digest.
func (k *keyService) GenerateKey() (plainKey string, keyHash string, err error) {
	randomBytes := make([]byte, keyLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", apperrors.Wrap(err, "failed to generate random key")
	}

	chars := make([]byte, keyLength)
	for i, b := range randomBytes {
		chars[i] = keyAlphabet[int(b)%len(keyAlphabet)]
	}
	plainKey = keyPrefix + string(chars)

	keyHash, err = k.HashKey(plainKey)
	if err != nil {
		return "", "", err
	}

	return plainKey, keyHash, nil
}

// HashKey hashes a plain key using SHA-256 and returns a hexadecimal string.
// An empty key is rejected rather than silently digested.
func (k *keyService) HashKey(plainKey string) (string, error) {
	if plainKey == "" {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "cannot hash empty key")
	}
	hash := sha256.Sum256([]byte(plainKey))
	return hex.EncodeToString(hash[:]), nil
}

// MatchKey recomputes the digest of plainKey and compares it against keyHash
// in constant time.
func (k *keyService) MatchKey(plainKey, keyHash string) bool {
	computed, err := k.HashKey(plainKey)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(keyHash)) == 1
}

// NewKeyService creates a new KeyService instance.
func NewKeyService() KeyService {
	return &keyService{}
}
