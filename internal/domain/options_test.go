package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExecutionRequest_Options(t *testing.T) {
	opts := ExecutionRequest{}.Options()
	assert.Equal(t, 5*time.Minute, opts.Timeout)
	assert.Equal(t, int64(300000), opts.Timeout.Milliseconds())
	assert.False(t, opts.DebugMode)
	assert.False(t, opts.ContinueOnError)

	opts = ExecutionRequest{
		TimeoutMs:       1500,
		DebugMode:       true,
		ContinueOnError: true,
		CustomInput:     map[string]interface{}{"x": 1},
	}.Options()
	assert.Equal(t, 1500*time.Millisecond, opts.Timeout)
	assert.True(t, opts.DebugMode)
	assert.True(t, opts.ContinueOnError)
	assert.Equal(t, map[string]interface{}{"x": 1}, opts.CustomInput)

	assert.Equal(t, DefaultExecutionTimeout, ExecutionRequest{TimeoutMs: -5}.Options().Timeout)
}

func TestExecutionErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"aborted", ErrExecutionAborted, AbortedMessage},
		{"wrapped abort", fmt.Errorf("%w: shutdown", ErrExecutionAborted), AbortedMessage},
		{"timeout", fmt.Errorf("%w after 1s", ErrExecutionTimeout), TimeoutMessage},
		{"circular", fmt.Errorf("%w: nodes B can never run", ErrCircularDependency), CircularMessage},
		{"node failure", NewNodeFailedError("A", "boom", nil), "Node A failed: boom"},
		{"other", errors.New("disk full"), "disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExecutionErrorMessage(tt.err))
		})
	}
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, ExecutionSuccess, StatusForError(nil))
	assert.Equal(t, ExecutionTimeout, StatusForError(ErrExecutionTimeout))
	assert.Equal(t, ExecutionTimeout, StatusForError(ErrExecutionAborted))
	assert.Equal(t, ExecutionFailed, StatusForError(ErrCircularDependency))
	assert.Equal(t, ExecutionFailed, StatusForError(NewNodeFailedError("A", "", errors.New("x"))))

	assert.True(t, ExecutionTimeout.IsTerminal())
	assert.False(t, ExecutionRunning.IsTerminal())
}
