package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_Is(t *testing.T) {
	err := NewNotFoundError("Declaration", "abc")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrInvalidInput))

	wrapped := fmt.Errorf("loading: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.True(t, IsNotFound(wrapped))
}

func TestWrapError(t *testing.T) {
	t.Run("keeps storage cause", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := WrapError(cause, "STORE_FAILED", "Failed to save declaration")
		assert.Equal(t, KindInternal, err.Kind)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "Failed to save declaration: connection reset", err.Error())
	})

	t.Run("inherits kind from domain cause", func(t *testing.T) {
		err := WrapError(NewConflictError("DUPLICATE_CODE", "taken"), "CREATE_FAILED", "Failed to create")
		assert.True(t, IsConflict(err))
		var de *DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "CREATE_FAILED", de.Code)
	})
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(NewValidationError("X", "bad")))
	assert.Equal(t, KindInvalidState, KindOf(NewDomainError("X", "no")))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.True(t, IsValidation(ErrInvalidInput))
	assert.True(t, IsConflict(ErrConcurrencyConflict))
}

func TestNewPaginated(t *testing.T) {
	p := NewPaginated([]int{1, 2}, 45, 2, 20)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 0, NewPaginated([]int{}, 10, 1, 0).TotalPages)
	assert.Equal(t, 20, Filter{Page: 2, PageSize: 20}.Offset())
	assert.Equal(t, 0, Filter{Page: 0, PageSize: 20}.Offset())
}
