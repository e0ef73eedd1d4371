package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverableExecutor_PassesThrough(t *testing.T) {
	re := NewRecoverableExecutor(nil, domain.NewExecutionMetrics())
	node := ports.NodeFunc(func(ctx context.Context, input domain.NodeInput) (*domain.NodeOutput, error) {
		return domain.Succeeded(input.NodeID), nil
	})

	out, err := re.ExecuteWithRecovery(context.Background(), node, domain.NodeInput{NodeID: "n"})
	require.NoError(t, err)
	assert.Equal(t, "n", out.Data)
}

func TestRecoverableExecutor_RecoversPanic(t *testing.T) {
	metrics := domain.NewExecutionMetrics()
	re := NewRecoverableExecutor(nil, metrics)
	node := ports.NodeFunc(func(ctx context.Context, input domain.NodeInput) (*domain.NodeOutput, error) {
		var m map[string]int
		m["boom"] = 1
		return nil, nil
	})

	out, err := re.ExecuteWithRecovery(context.Background(), node, domain.NodeInput{NodeID: "n", WorkflowID: "wf"})
	assert.Nil(t, out)

	var panicErr *domain.NodePanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "n", panicErr.NodeID)
	assert.NotEmpty(t, panicErr.StackTrace)
	assert.Equal(t, int64(1), metrics.Snapshot().NodesPanicked)
}
