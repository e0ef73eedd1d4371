package tracing

import (
	"context"
	"log/slog"
	"time"

	"github.com/eleven-am/weft/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/eleven-am/weft"

// TracingProvider wraps an OpenTelemetry tracer with the span shapes the
// engine emits. Without a configured global provider every span is a noop.
type TracingProvider struct {
	config domain.TracingConfig
	tracer trace.Tracer
	logger *slog.Logger
}

func NewTracingProvider(config domain.TracingConfig, logger *slog.Logger) *TracingProvider {
	return NewTracingProviderWith(otel.GetTracerProvider(), config, logger)
}

// NewTracingProviderWith uses tp instead of the global provider.
func NewTracingProviderWith(tp trace.TracerProvider, config domain.TracingConfig, logger *slog.Logger) *TracingProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &TracingProvider{
		config: config,
		tracer: tp.Tracer(instrumentationName),
		logger: logger.With("component", "tracing"),
	}
}

func (tp *TracingProvider) StartExecution(ctx context.Context, execution *domain.WorkflowExecution, nodeCount int) (context.Context, trace.Span) {
	return tp.tracer.Start(ctx, "weft.execution",
		trace.WithAttributes(
			attribute.String("weft.service", tp.config.ServiceName),
			attribute.String("weft.execution.id", execution.ID),
			attribute.String("weft.workflow.id", execution.WorkflowID),
			attribute.String("weft.user.id", execution.UserID),
			attribute.Int("weft.workflow.node_count", nodeCount),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (tp *TracingProvider) StartBatch(ctx context.Context, tick int, size int) (context.Context, trace.Span) {
	return tp.tracer.Start(ctx, "weft.batch",
		trace.WithAttributes(
			attribute.Int("weft.batch.tick", tick),
			attribute.Int("weft.batch.size", size),
		),
	)
}

func (tp *TracingProvider) StartNode(ctx context.Context, node domain.Node) (context.Context, trace.Span) {
	return tp.tracer.Start(ctx, "weft.node.execute",
		trace.WithAttributes(
			attribute.String("weft.node.id", node.ID),
			attribute.String("weft.node.type", node.Type),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// Finish records err on span, if any, and ends it.
func Finish(span trace.Span, err error, duration time.Duration) {
	span.SetAttributes(attribute.Int64("weft.duration_ms", duration.Milliseconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
