package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracingTest(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	tracer = otel.Tracer("promptgraph")

	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("shutting down tracer provider: %v", err)
		}
	})
	return exporter
}

func attr(s tracetest.SpanStub, key string) attribute.Value {
	for _, kv := range s.Attributes {
		if string(kv.Key) == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestSpanHierarchy(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	ctx, run := sm.StartRunSpan(context.Background(), "demo", "run-1")
	tctx, tick := sm.StartTickSpan(ctx, 1, 2)
	_, node := sm.StartNodeSpan(tctx, "llm-1", "llmInvocation")
	sm.EndSpanWithError(node, nil)
	sm.EndSpanWithError(tick, nil)
	sm.EndSpanWithError(run, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)

	nodeSpan, tickSpan, runSpan := spans[0], spans[1], spans[2]
	assert.Equal(t, "promptgraph.node.llm-1", nodeSpan.Name)
	assert.Equal(t, "llmInvocation", attr(nodeSpan, "node.kind").AsString())
	assert.Equal(t, "promptgraph.tick", tickSpan.Name)
	assert.Equal(t, int64(2), attr(tickSpan, "ready").AsInt64())
	assert.Equal(t, "promptgraph.run", runSpan.Name)
	assert.Equal(t, "run-1", attr(runSpan, "run.id").AsString())

	assert.Equal(t, tickSpan.SpanContext.SpanID(), nodeSpan.Parent.SpanID())
	assert.Equal(t, runSpan.SpanContext.SpanID(), tickSpan.Parent.SpanID())
	assert.Equal(t, codes.Ok, runSpan.Status.Code)
}

func TestEndSpanWithError(t *testing.T) {
	exporter := setupTracingTest(t)

	_, span := StartNodeSpan(context.Background(), "n", "output")
	EndSpanWithError(span, errors.New("boom"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "boom", spans[0].Status.Description)
	require.NotEmpty(t, spans[0].Events)
	assert.Equal(t, "exception", spans[0].Events[0].Name)

	assert.NotPanics(t, func() { EndSpanWithError(nil, nil) })
}

func TestAddSpanEvent(t *testing.T) {
	exporter := setupTracingTest(t)

	ctx, span := StartRunSpan(context.Background(), "demo", "run-1")
	AddSpanEvent(ctx, "checkpoint.saved", attribute.Int("tick", 3))
	span.End()

	AddSpanEvent(context.Background(), "ignored")

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "checkpoint.saved", spans[0].Events[0].Name)
}

func TestNoopSpanManager(t *testing.T) {
	var sm SpanManager = NoopSpanManager{}
	ctx := context.Background()

	rctx, run := sm.StartRunSpan(ctx, "w", "r")
	assert.Equal(t, ctx, rctx)
	_, tick := sm.StartTickSpan(ctx, 1, 1)
	_, node := sm.StartNodeSpan(ctx, "n", "start")
	assert.False(t, run.IsRecording())
	assert.NotPanics(t, func() {
		sm.EndSpanWithError(node, errors.New("x"))
		sm.EndSpanWithError(tick, nil)
		sm.AddSpanEvent(ctx, "e")
	})
}
