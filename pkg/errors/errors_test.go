package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeQuery, "unused"))
}

func TestWrap_KeepsInnerStack(t *testing.T) {
	inner := New(ErrorTypeConnection, "dial failed")
	outer := Wrap(fmt.Errorf("context: %w", inner), ErrorTypeQuery, "query failed")

	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, IsType(outer, ErrorTypeQuery))
	assert.False(t, IsType(outer, ErrorTypeConnection))
	assert.ErrorIs(t, outer, inner)
}

func TestNew_CapturesCaller(t *testing.T) {
	err := New(ErrorTypeInternal, "boom")
	require.NotEmpty(t, err.Stack)
	assert.Contains(t, err.Stack[0].Function, "TestNew_CapturesCaller")
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"connection", New(ErrorTypeConnection, "x"), true},
		{"timeout", Wrap(stderrors.New("deadline"), ErrorTypeTimeout, "x"), true},
		{"query", New(ErrorTypeQuery, "x"), false},
		{"plain", stderrors.New("x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
