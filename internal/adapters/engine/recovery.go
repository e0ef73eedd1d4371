package engine

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/ports"
)

type RecoverableExecutor struct {
	logger  *slog.Logger
	metrics *domain.ExecutionMetrics
}

func NewRecoverableExecutor(logger *slog.Logger, metrics *domain.ExecutionMetrics) *RecoverableExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecoverableExecutor{
		logger:  logger.With("component", "recoverable-executor"),
		metrics: metrics,
	}
}

// ExecuteWithRecovery runs node and converts a panic into a
// *domain.NodePanicError so it is handled like any other node failure.
func (re *RecoverableExecutor) ExecuteWithRecovery(ctx context.Context, node ports.NodePort, input domain.NodeInput) (output *domain.NodeOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicErr := domain.NewPanicError(input.NodeID, r, string(debug.Stack()))

			if re.metrics != nil {
				re.metrics.IncrementNodesPanicked()
			}

			re.logger.Error("node execution panicked",
				"workflow_id", input.WorkflowID,
				"execution_id", input.ExecutionID,
				"node_id", input.NodeID,
				"panic_value", r,
				"stack_trace", panicErr.StackTrace,
			)

			output = nil
			err = panicErr
		}
	}()

	return node.Execute(ctx, input)
}
