package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zero71st/farmgate/internal/errors"
)

func TestKeyService_GenerateKey(t *testing.T) {
	svc := NewKeyService()

	plain, hash, err := svc.GenerateKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(plain, "fgk_"))
	assert.Len(t, plain, 68)
	assert.Len(t, hash, 64, "SHA-256 hex digest is 64 characters")

	for _, c := range plain[4:] {
		assert.True(t,
			(c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9'),
			"unexpected character %q in key", c)
	}
}

func TestKeyService_GeneratedKeysAreUnique(t *testing.T) {
	svc := NewKeyService()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		plain, _, err := svc.GenerateKey()
		require.NoError(t, err)
		assert.False(t, seen[plain], "duplicate key generated")
		seen[plain] = true
	}
}

func TestKeyService_HashKey(t *testing.T) {
	svc := NewKeyService()

	t.Run("Deterministic", func(t *testing.T) {
		first, err := svc.HashKey("fgk_sample")
		require.NoError(t, err)
		second, err := svc.HashKey("fgk_sample")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("DistinctInputsDistinctDigests", func(t *testing.T) {
		a, err := svc.HashKey("fgk_a")
		require.NoError(t, err)
		b, err := svc.HashKey("fgk_b")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("EmptyInputRejected", func(t *testing.T) {
		_, err := svc.HashKey("")
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestKeyService_MatchKey(t *testing.T) {
	svc := NewKeyService()

	plain, hash, err := svc.GenerateKey()
	require.NoError(t, err)

	assert.True(t, svc.MatchKey(plain, hash))
	assert.False(t, svc.MatchKey("fgk_other", hash))
	assert.False(t, svc.MatchKey("", hash))
}
