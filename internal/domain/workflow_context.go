package domain

import "context"

type contextKey string

const RunContextKey contextKey = "weft:run_context"

// RunContext identifies the execution a node is running under.
type RunContext struct {
	UserID      string
	WorkflowID  string
	ExecutionID string
	NodeID      string
	DebugMode   bool
}

func WithRunContext(ctx context.Context, runCtx *RunContext) context.Context {
	return context.WithValue(ctx, RunContextKey, runCtx)
}

func GetRunContext(ctx context.Context) (*RunContext, bool) {
	runCtx, ok := ctx.Value(RunContextKey).(*RunContext)
	return runCtx, ok
}
