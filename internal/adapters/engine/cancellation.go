package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eleven-am/weft/internal/domain"
)

// runHandle is the cancellation signal of one execution. It fires on the
// deadline or on Abort, whichever comes first, and remembers which.
type runHandle struct {
	ctx     context.Context
	abort   context.CancelCauseFunc
	release context.CancelFunc
	timeout time.Duration
}

func newRunHandle(parent context.Context, timeout time.Duration) *runHandle {
	abortCtx, abort := context.WithCancelCause(parent)
	timeoutCause := fmt.Errorf("%w after %s", domain.ErrExecutionTimeout, timeout)
	ctx, release := context.WithTimeoutCause(abortCtx, timeout, timeoutCause)

	return &runHandle{
		ctx:     ctx,
		abort:   abort,
		release: release,
		timeout: timeout,
	}
}

func (h *runHandle) Context() context.Context {
	return h.ctx
}

// Abort fires the signal with an operator abort cause. Calls after the
// signal fired have no effect.
func (h *runHandle) Abort() {
	h.abort(domain.ErrExecutionAborted)
}

// Err returns nil while the run may continue, otherwise an error matching
// either domain.ErrExecutionTimeout or domain.ErrExecutionAborted.
func (h *runHandle) Err() error {
	if h.ctx.Err() == nil {
		return nil
	}

	cause := context.Cause(h.ctx)
	switch {
	case errors.Is(cause, domain.ErrExecutionAborted), errors.Is(cause, domain.ErrExecutionTimeout):
		return cause
	case errors.Is(cause, context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", domain.ErrExecutionTimeout, h.timeout)
	default:
		// parent context cancelled, e.g. engine shutdown
		return fmt.Errorf("%w: %v", domain.ErrExecutionAborted, cause)
	}
}

func (h *runHandle) Release() {
	h.release()
	h.abort(context.Canceled)
}
