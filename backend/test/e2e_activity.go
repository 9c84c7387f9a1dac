package test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/usherflow/usher/backend"
	"github.com/usherflow/usher/client"
	"github.com/usherflow/usher/core"
	"github.com/usherflow/usher/worker"
	"github.com/usherflow/usher/workflow"
)

var e2eActivityTests = []backendTest{
	{
		name: "Activity_Error",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			def := workflow.NewDefinition("wf", "")
			def.
				Activity("charge", nil).
				Activity("ship", []string{"charge"})

			register(t, ctx, w, []*workflow.Definition{def}, map[string]activity{
				"charge": func(ctx context.Context, input any) (any, error) {
					return nil, errors.New("card declined")
				},
				"ship": func(ctx context.Context, input any) (any, error) {
					panic("ship must not run")
				},
			})

			_, err := runWorkflowWithResult[any](t, ctx, c, "wf", "", nil)

			var wfe *client.WorkflowFailedError
			require.ErrorAs(t, err, &wfe)
			require.Equal(t, "TaskFailed", wfe.Reason)
			require.ErrorContains(t, err, "charge: card declined")
		},
	},
	{
		name: "Activity_Panic",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			def := workflow.NewDefinition("wf", "")
			def.Activity("boom", nil)

			register(t, ctx, w, []*workflow.Definition{def}, map[string]activity{
				"boom": func(ctx context.Context, input any) (any, error) {
					panic("oops")
				},
			})

			_, err := runWorkflowWithResult[any](t, ctx, c, "wf", "", nil)

			require.ErrorContains(t, err, "activity boom panicked: oops")
		},
	},
	{
		name: "Activity_StartToCloseTimeout",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			def := workflow.NewDefinition("wf", "")
			def.Activity("slow", nil, workflow.WithTimeouts(core.ActivityTimeouts{
				StartToClose: 50 * time.Millisecond,
			}))

			register(t, ctx, w, []*workflow.Definition{def}, map[string]activity{
				"slow": func(ctx context.Context, input any) (any, error) {
					<-ctx.Done()
					return nil, ctx.Err()
				},
			})

			_, err := runWorkflowWithResult[any](t, ctx, c, "wf", "", nil)

			require.ErrorContains(t, err, "slow: context deadline exceeded")
		},
	},
	{
		name: "Activity_TypeFromInput",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			def := workflow.NewDefinition("wf", "")
			def.Activity("notify", nil, workflow.WithActivityTypeFunc(func(input any) (string, error) {
				return "notify-" + workflowInput(input)["channel"].(string), nil
			}))

			register(t, ctx, w, []*workflow.Definition{def}, map[string]activity{
				"notify-mail": func(ctx context.Context, input any) (any, error) {
					return "mail sent", nil
				},
				"notify-sms": func(ctx context.Context, input any) (any, error) {
					return "sms sent", nil
				},
			})

			output, err := runWorkflowWithResult[string](t, ctx, c, "wf", "", map[string]any{"channel": "sms"})
			require.NoError(t, err)
			require.Equal(t, "sms sent", output)
		},
	},
}
