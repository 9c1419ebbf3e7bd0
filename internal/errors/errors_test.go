package errors

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(EUsage, "test message")
	assert.Equal(t, "E_USAGE: test message", err.Error())
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying")
	err := Wrap(EFileMissing, "wrapped message", cause)

	assert.Equal(t, "E_FILE_MISSING: wrapped message", err.Error())

	var se *StencilError
	require.True(t, errors.As(err, &se))
	assert.Same(t, cause, se.Cause)
	assert.ErrorIs(t, err, cause)
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil error", nil, ""},
		{"stencil error", New(EUsage, "x"), EUsage},
		{"wrapped stencil error", Wrap(EAnchorNotFound, "y", errors.New("z")), EAnchorNotFound},
		{"non-stencil error", errors.New("plain"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetCode(tt.err))
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"E_USAGE", New(EUsage, "x"), 2},
		{"E_COMMAND_FAILED", New(ECommandFailed, "x"), 1},
		{"non-stencil error", errors.New("x"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestPrint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"E_USAGE", New(EUsage, "bad args"), "error_code: E_USAGE\nbad args\n"},
		{"plain", errors.New("boom"), "boom\n"},
		{
			"details sorted, stderr last",
			NewWithDetails(ECommandFailed, "command failed", map[string]string{
				"stderr":    "rails aborted!\n",
				"step":      "3",
				"exit_code": "1",
			}),
			"error_code: E_COMMAND_FAILED\ncommand failed\nexit_code: 1\nstep: 3\nrails aborted!\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Print(&buf, tt.err)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestNewWithDetails_Copy(t *testing.T) {
	details := map[string]string{"key": "value"}
	err := NewWithDetails(EUsage, "test", details)
	details["key"] = "modified"

	se, ok := AsStencilError(err)
	require.True(t, ok)
	assert.Equal(t, "value", se.Details["key"])
}

func TestNewWithDetails_NilDetails(t *testing.T) {
	se, ok := AsStencilError(NewWithDetails(EUsage, "test", nil))
	require.True(t, ok)
	assert.Nil(t, se.Details)
}

func TestWithDetail(t *testing.T) {
	t.Run("stencil error keeps code", func(t *testing.T) {
		base := NewWithDetails(EAnchorNotFound, "anchor missing", map[string]string{"file": "a.rb"})
		err := WithDetail(base, "step", "2")

		se, ok := AsStencilError(err)
		require.True(t, ok)
		assert.Equal(t, EAnchorNotFound, se.Code)
		assert.Equal(t, map[string]string{"file": "a.rb", "step": "2"}, se.Details)

		orig, _ := AsStencilError(base)
		assert.NotContains(t, orig.Details, "step")
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		cause := errors.New("disk on fire")
		err := WithDetail(cause, "step", "0")
		assert.Equal(t, EInternal, GetCode(err))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, WithDetail(nil, "k", "v"))
	})
}

func TestAsStencilError(t *testing.T) {
	se, ok := AsStencilError(New(EUsage, "test"))
	require.True(t, ok)
	assert.Equal(t, EUsage, se.Code)

	se, ok = AsStencilError(errors.New("regular error"))
	assert.False(t, ok)
	assert.Nil(t, se)

	se, ok = AsStencilError(nil)
	assert.False(t, ok)
	assert.Nil(t, se)
}
