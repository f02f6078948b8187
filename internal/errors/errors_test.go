package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEditorError_IsSentinel(t *testing.T) {
	tests := []struct {
		kind     Kind
		sentinel error
	}{
		{KindDecode, ErrDecode},
		{KindNotReady, ErrNotReady},
		{KindInvalidRegion, ErrInvalidRegion},
		{KindInvalidDimensions, ErrInvalidDimensions},
		{KindUnsupportedFormat, ErrUnsupportedFormat},
		{KindEngineUnavailable, ErrEngineUnavailable},
		{KindCanceled, ErrCanceled},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := New(tt.kind, "op", errors.New("cause"))
			assert.True(t, errors.Is(err, tt.sentinel))
			assert.True(t, IsKind(err, tt.kind))
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestEditorError_DoesNotMatchOtherKinds(t *testing.T) {
	err := New(KindInvalidRegion, "crop.set_region", nil)
	assert.False(t, errors.Is(err, ErrDecode))
	assert.False(t, IsKind(err, KindDecode))
}

func TestEditorError_UnwrapsCause(t *testing.T) {
	err := Wrap(KindCanceled, "export", context.Canceled)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, errors.Is(err, ErrCanceled))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, KindCanceled, KindOf(wrapped))
}

func TestEditorError_Message(t *testing.T) {
	err := Errorf(KindInvalidDimensions, "export.encode", "width %d", 0)
	assert.Equal(t, "[invalid_dimensions] export.encode: width 0", err.Error())
	assert.Equal(t, "[not_ready] session.pan", New(KindNotReady, "session.pan", nil).Error())
}

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap(KindDecode, "load", nil))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
