package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/usherflow/usher/backend"
	"github.com/usherflow/usher/client"
	"github.com/usherflow/usher/internal/tracing"
	"github.com/usherflow/usher/worker"
	"github.com/usherflow/usher/workflow"
)

// setupTracing routes the spans of b into an in-memory exporter.
func setupTracing(b backend.Backend) *tracetest.InMemoryExporter {
	exporter := tracetest.NewInMemoryExporter()

	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)))
	b.Options().TracerProvider = tp

	return exporter
}

func findSpan(spans tracetest.SpanStubs, f func(tracetest.SpanStub) bool) (tracetest.SpanStub, bool) {
	for _, s := range spans {
		if f(s) {
			return s, true
		}
	}

	return tracetest.SpanStub{}, false
}

func spanNamed(names ...string) func(tracetest.SpanStub) bool {
	return func(s tracetest.SpanStub) bool {
		return hasPrefix(s.Name, names...)
	}
}

var e2eTracingTests = []backendTest{
	{
		name: "Tracing_InstanceTickAndActivitySpans",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, exporter *tracetest.InMemoryExporter) {
			def := workflow.NewDefinition("wf", "")
			def.Activity("A", nil)

			register(t, ctx, w, []*workflow.Definition{def}, map[string]activity{
				"A": func(ctx context.Context, input any) (any, error) {
					return 1, nil
				},
			})

			instance := runWorkflow(t, ctx, c, "wf", "", nil)
			require.NoError(t, c.WaitForWorkflowInstance(ctx, instance, 10*time.Second))

			names := []string{"CreateWorkflowInstance: wf", "EvaluateTick", "ExecuteActivity"}
			require.Eventually(t, func() bool {
				spans := exporter.GetSpans()
				for _, name := range names {
					if _, ok := findSpan(spans, spanNamed(name)); !ok {
						return false
					}
				}

				return true
			}, time.Second, 10*time.Millisecond)

			spans := exporter.GetSpans()

			tick, ok := findSpan(spans, spanNamed("EvaluateTick"))
			require.True(t, ok)

			var instanceID string
			for _, a := range tick.Attributes {
				if string(a.Key) == tracing.WorkflowInstanceID {
					instanceID = a.Value.AsString()
				}
			}
			require.Equal(t, instance.InstanceID, instanceID)
		},
	},
}
