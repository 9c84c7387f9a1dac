package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/usherflow/usher/backend"
	"github.com/usherflow/usher/client"
	"github.com/usherflow/usher/worker"
	"github.com/usherflow/usher/workflow"
)

func echoWorkflow() *workflow.Definition {
	def := workflow.NewDefinition("echo", "")
	def.Transform("echo", nil, func(input any) (any, error) {
		return input.(map[string]any)["_workflowInput"], nil
	})

	return def
}

var e2eRemovalTests = []backendTest{
	{
		name: "RemoveWorkflowInstances_RemovesFinished",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			register(t, ctx, w, []*workflow.Definition{echoWorkflow()}, nil)

			instance := runWorkflow(t, ctx, c, "echo", "", "hello")
			require.NoError(t, c.WaitForWorkflowInstance(ctx, instance, 10*time.Second))

			require.NoError(t, c.RemoveWorkflowInstances(ctx, backend.RemoveFinishedBefore(time.Now().Add(time.Second))))

			_, err := b.GetWorkflowInstanceState(ctx, instance)
			require.ErrorIs(t, err, backend.ErrInstanceNotFound)
		},
	},
	{
		name: "RemoveWorkflowInstances_KeepsRecentlyFinished",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			register(t, ctx, w, []*workflow.Definition{echoWorkflow()}, nil)

			instance := runWorkflow(t, ctx, c, "echo", "", "hello")
			require.NoError(t, c.WaitForWorkflowInstance(ctx, instance, 10*time.Second))

			require.NoError(t, c.RemoveWorkflowInstances(ctx, backend.RemoveFinishedBefore(time.Now().Add(-time.Hour))))

			output, err := client.GetWorkflowResult[string](ctx, c, instance, time.Second)
			require.NoError(t, err)
			require.Equal(t, "hello", output)
		},
	},
	{
		name: "AutoExpiration",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			register(t, ctx, w, []*workflow.Definition{echoWorkflow()}, nil)

			instance := runWorkflow(t, ctx, c, "echo", "", "hello")
			require.NoError(t, c.WaitForWorkflowInstance(ctx, instance, 10*time.Second))

			ectx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() {
				done <- c.RunAutoExpiration(ectx, 10*time.Millisecond, 0)
			}()

			require.Eventually(t, func() bool {
				_, err := b.GetWorkflowInstanceState(ctx, instance)
				return err != nil
			}, 5*time.Second, 10*time.Millisecond)

			cancel()
			require.ErrorIs(t, <-done, context.Canceled)
		},
	},
}
