package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eleven-am/weft/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingProvider(t *testing.T) (*TracingProvider, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	return NewTracingProviderWith(tp, domain.DefaultTracingConfig(), nil), recorder
}

func TestTracingProvider_ExecutionAndNodeSpans(t *testing.T) {
	provider, recorder := newRecordingProvider(t)

	ctx, execSpan := provider.StartExecution(context.Background(), &domain.WorkflowExecution{
		ID: "e1", WorkflowID: "w1", UserID: "u1",
	}, 2)
	_, nodeSpan := provider.StartNode(ctx, domain.Node{ID: "a", Type: "http"})

	Finish(nodeSpan, errors.New("boom"), 5*time.Millisecond)
	Finish(execSpan, nil, 10*time.Millisecond)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	node, exec := spans[0], spans[1]
	assert.Equal(t, "weft.node.execute", node.Name())
	assert.Equal(t, codes.Error, node.Status().Code)
	assert.Equal(t, exec.SpanContext().SpanID(), node.Parent().SpanID())

	assert.Equal(t, "weft.execution", exec.Name())
	assert.Equal(t, codes.Ok, exec.Status().Code)
}

func TestNewTracingProvider_DefaultsToGlobalNoop(t *testing.T) {
	provider := NewTracingProvider(domain.DefaultTracingConfig(), nil)

	_, span := provider.StartBatch(context.Background(), 1, 3)
	assert.NotPanics(t, func() { Finish(span, nil, time.Millisecond) })
}
