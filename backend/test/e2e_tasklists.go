package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/usherflow/usher/backend"
	"github.com/usherflow/usher/client"
	"github.com/usherflow/usher/core"
	"github.com/usherflow/usher/worker"
	"github.com/usherflow/usher/workflow"
)

var e2eTaskListTests = []backendTest{
	{
		name: "TaskList_ServedByDedicatedWorker",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			const reports core.TaskList = "reports"

			def := workflow.NewDefinition("wf", "")
			def.
				Activity("collect", nil).
				Activity("render", []string{"collect"}, workflow.WithTaskList(reports))

			// The default worker never leases from the reports task list
			register(t, ctx, w, []*workflow.Definition{def}, map[string]activity{
				"collect": func(ctx context.Context, input any) (any, error) {
					return 3, nil
				},
				"render": func(ctx context.Context, input any) (any, error) {
					return "wrong worker", nil
				},
			})

			rctx, cancel := context.WithCancel(ctx)
			rw := worker.NewActivityWorker(b, &worker.Options{
				ActivityWorkerOptions: worker.ActivityWorkerOptions{
					ActivityPollers:         1,
					ActivityPollingInterval: workerOptions.ActivityPollingInterval,
					ActivityTaskLists:       []core.TaskList{reports},
				},
			})
			require.NoError(t, rw.RegisterActivity("render", func(ctx context.Context, input any) (any, error) {
				return input.(map[string]any)["collect"].(float64) * 100, nil
			}))
			require.NoError(t, rw.Start(rctx))

			defer func() {
				cancel()
				require.NoError(t, rw.WaitForCompletion())
			}()

			output, err := runWorkflowWithResult[int](t, ctx, c, "wf", "", nil)
			require.NoError(t, err)
			require.Equal(t, 300, output)
		},
	},
}
