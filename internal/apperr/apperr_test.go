package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFound_Message(t *testing.T) {
	assert.Equal(t, "Item with id 'abc' not found", NotFound("Item", "abc").Message)
	assert.Equal(t, "Item not found", NotFound("Item", "").Message)
	assert.Equal(t, "Resource not found", NotFound("", "").Message)
}

func TestDefaults(t *testing.T) {
	tests := []struct {
		err  *Error
		kind Kind
		msg  string
	}{
		{Validation("", ""), KindValidation, "Validation failed"},
		{Conflict(""), KindConflict, "Resource conflict"},
		{Forbidden(""), KindAuthorization, "Not authorized"},
		{Application(""), KindApplication, "An error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.msg, tt.err.Message)
		})
	}
}

func TestAs_ThroughWrapping(t *testing.T) {
	base := Validation("insufficient quantity", "quantity")
	wrapped := fmt.Errorf("place order: %w", base)

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Same(t, base, got)
	assert.Equal(t, "quantity", got.Field)
	assert.Equal(t, KindValidation, KindOf(wrapped))
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(errors.New("boom")))
	assert.Equal(t, Kind(0), KindOf(nil))
}

func TestIs_MatchesByKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NotFound("Order", "o1"))

	assert.True(t, errors.Is(err, &Error{Kind: KindNotFound}))
	assert.False(t, errors.Is(err, &Error{Kind: KindConflict}))
}

func TestWrap_HidesCauseFromMessageButUnwraps(t *testing.T) {
	cause := errors.New("pq: relation does not exist")
	err := Wrap(KindApplication, "could not load", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "could not load", err.Message)
}

func TestKind_String(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range Kinds {
		s := k.String()
		assert.False(t, seen[s], "duplicate kind name %s", s)
		seen[s] = true
	}
	assert.Equal(t, "kind(99)", Kind(99).String())
}
