package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	t.Run("WrapsErrorWithContext", func(t *testing.T) {
		err := Wrap(ErrNotFound, "api key lookup")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "api key lookup")
		assert.True(t, Is(err, ErrNotFound))
	})

	t.Run("NilErrorReturnsNil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "context"))
	})

	t.Run("PreservesChainAcrossMultipleWraps", func(t *testing.T) {
		err := Wrap(Wrap(ErrRateLimited, "inner"), "outer")
		assert.True(t, Is(err, ErrRateLimited))
		assert.Contains(t, err.Error(), "outer: inner")
	})
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound,
		ErrConflict,
		ErrInvalidInput,
		ErrUnauthorized,
		ErrForbidden,
		ErrRateLimited,
		ErrInternal,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, Is(a, b), "%v should not match %v", a, b)
		}
	}
}
