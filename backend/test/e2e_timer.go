package test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/usherflow/usher/backend"
	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/client"
	"github.com/usherflow/usher/worker"
	"github.com/usherflow/usher/workflow"
)

var e2eTimerTests = []backendTest{
	{
		name: "Timer_BatchDelay",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			body := workflow.NewFragment().Transform("echo", nil, func(input any) (any, error) {
				return input.(map[string]any)["_workflowInput"], nil
			})

			def := workflow.NewDefinition("wf", "")
			def.Loop("loop", nil, body, func(any) ([]any, error) {
				return []any{"a", "b", "c"}, nil
			}, workflow.WithItemsPerBatch(1), workflow.WithBatchDelay(100*time.Millisecond))

			register(t, ctx, w, []*workflow.Definition{def}, nil)

			start := time.Now()
			instance := runWorkflow(t, ctx, c, "wf", "", nil)

			output, err := client.GetWorkflowResult[[]map[string]string](ctx, c, instance, 10*time.Second)
			require.NoError(t, err)
			require.Equal(t, []map[string]string{{"echo": "a"}, {"echo": "b"}, {"echo": "c"}}, output)

			// Two batches wait for the delay
			require.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)

			h, err := b.GetWorkflowInstanceHistory(ctx, instance, nil)
			require.NoError(t, err)
			require.Equal(t, []string{"loop:batch:1", "loop:batch:2"}, firedTimers(h))
		},
	},
	{
		name: "Timer_WhileLoopContinuation",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			var iterations atomic.Int32
			body := workflow.NewFragment().Transform("step", nil, func(any) (any, error) {
				return "ok", nil
			})

			def := workflow.NewDefinition("wf", "")
			def.WhileLoop("while", nil, body, func(any) (bool, error) {
				return iterations.Add(1)%3 == 0, nil
			}, workflow.WithMaxIterationsPerTick(2))

			register(t, ctx, w, []*workflow.Definition{def}, nil)

			instance := runWorkflow(t, ctx, c, "wf", "", nil)
			require.NoError(t, c.WaitForWorkflowInstance(ctx, instance, 10*time.Second))

			h, err := b.GetWorkflowInstanceHistory(ctx, instance, nil)
			require.NoError(t, err)
			require.Equal(t, []string{"while:continue:2"}, firedTimers(h))
		},
	},
}

func firedTimers(events []*history.Event) []string {
	r := make([]string, 0)
	for _, e := range events {
		if a, ok := e.Attributes.(*history.TimerFiredAttributes); ok {
			r = append(r, a.TimerID)
		}
	}

	return r
}
