package orders

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	assert.ErrorIs(t, invalid("qty", "must be positive"), ErrValidation)
	assert.ErrorIs(t, notFound("product", 7), ErrNotFound)
	assert.EqualError(t, notFound("product", 7), "product 7 not found")
	assert.ErrorIs(t, &ConflictError{Reason: "x"}, ErrConflict)
	assert.NotErrorIs(t, &ConflictError{Reason: "x"}, ErrNotFound)
}

func TestWrapStorage(t *testing.T) {
	assert.NoError(t, wrapStorage("op", nil))

	v := invalid("name", "required")
	assert.Same(t, v, wrapStorage("op", v))

	conflict := fmt.Errorf("%w: duplicate payment", ErrConflict)
	assert.Equal(t, conflict, wrapStorage("op", conflict))

	boom := errors.New("connection reset")
	err := wrapStorage("accept request", boom)
	var se *StorageError
	assert.True(t, errors.As(err, &se))
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, boom)
	assert.False(t, se.Retryable)
	assert.Equal(t, "accept request: connection reset", err.Error())

	retry := fmt.Errorf("%w: lock timeout", ErrRetryable)
	assert.True(t, errors.As(wrapStorage("op", retry), &se))
	assert.True(t, se.Retryable)
}
