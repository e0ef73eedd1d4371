package engine

import (
	"context"
	"testing"
	"time"

	"github.com/eleven-am/weft/internal/adapters/memory"
	"github.com/eleven-am/weft/internal/adapters/tracing"
	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/testutil/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestEngine_EmitsSpans(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	stores := workflow.NewStores(t)
	registry := memory.NewNodeTypeRegistry(nil)
	require.NoError(t, workflow.RegisterScripted(registry, workflow.NewCallLog()))

	tracer := tracing.NewTracingProviderWith(provider, domain.DefaultTracingConfig(), nil)
	engine := NewEngine(domain.DefaultEngineConfig(), registry, stores.Executions, nil, tracer, nil)
	require.NoError(t, engine.Start(context.Background()))
	t.Cleanup(func() { _ = engine.Stop() })

	wf := workflow.New("wf").
		Node("A", workflow.Echo()).
		Node("B", workflow.Fails("bad input")).
		Connect("A", "B").
		Build()

	record, err := engine.Execute(context.Background(), wf, "user-1", domain.ExecutionOptions{})
	require.NoError(t, err)
	_, err = engine.Wait(context.Background(), record.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, span := range spans.Ended() {
			if span.Name() == "weft.execution" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	counts := map[string]int{}
	var failedNodes int
	for _, span := range spans.Ended() {
		counts[span.Name()]++
		if span.Name() == "weft.node.execute" && span.Status().Code == codes.Error {
			failedNodes++
		}
	}

	assert.Equal(t, 1, counts["weft.execution"])
	assert.Equal(t, 2, counts["weft.batch"])
	assert.Equal(t, 2, counts["weft.node.execute"])
	assert.Equal(t, 1, failedNodes)
}
