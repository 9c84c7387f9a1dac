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

var e2eStatsTests = []backendTest{
	{
		name: "Stats_ActiveAndFinishedInstances",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			release := make(chan struct{})
			started := make(chan struct{}, 1)

			def := workflow.NewDefinition("wf", "")
			def.Activity("block", nil)

			register(t, ctx, w, []*workflow.Definition{def}, map[string]activity{
				"block": func(ctx context.Context, input any) (any, error) {
					started <- struct{}{}
					<-release
					return "released", nil
				},
			})

			instance := runWorkflow(t, ctx, c, "wf", "", nil)
			<-started

			s, err := c.GetStats(ctx)
			require.NoError(t, err)
			require.Equal(t, int64(1), s.ActiveWorkflowInstances)
			require.Equal(t, int64(0), s.PendingActivities)

			close(release)

			output, err := client.GetWorkflowResult[string](ctx, c, instance, 10*time.Second)
			require.NoError(t, err)
			require.Equal(t, "released", output)

			s, err = c.GetStats(ctx)
			require.NoError(t, err)
			require.Equal(t, &backend.Stats{}, s)
		},
	},
}
