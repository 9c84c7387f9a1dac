package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/usherflow/usher/backend/sqlite"
	"github.com/usherflow/usher/client"
	internal "github.com/usherflow/usher/internal/worker"
	"github.com/usherflow/usher/registry"
	"github.com/usherflow/usher/workflow"
)

var testOptions = &Options{
	WorkflowWorkerOptions: WorkflowWorkerOptions{
		WorkflowPollers:         1,
		WorkflowPollingInterval: 5 * time.Millisecond,
	},
	ActivityWorkerOptions: ActivityWorkerOptions{
		ActivityPollers:         1,
		ActivityPollingInterval: 5 * time.Millisecond,
	},
	PollBackoffInitialInterval: time.Millisecond,
	PollBackoffMaxInterval:     10 * time.Millisecond,
}

func orderWorkflow(version string) *workflow.Definition {
	def := workflow.NewDefinition("order", version)
	def.
		Activity("reserve", nil).
		Activity("charge", []string{"reserve"})

	return def
}

func registerOrderActivities(t *testing.T, w *Worker) {
	require.NoError(t, w.RegisterActivity("reserve", func(ctx context.Context, input any) (any, error) {
		in := input.(map[string]any)
		qty := in["_workflowInput"].(map[string]any)["qty"].(float64)

		return qty * 10, nil
	}))

	require.NoError(t, w.RegisterActivity("charge", func(ctx context.Context, input any) (any, error) {
		in := input.(map[string]any)

		return in["reserve"].(float64) + 1, nil
	}))
}

func runWorker(t *testing.T, w *Worker) func() {
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	return func() {
		cancel()
		require.NoError(t, w.WaitForCompletion())
	}
}

func Test_Worker_RegisterWorkflow(t *testing.T) {
	b := sqlite.NewInMemoryBackend()
	defer b.Close()

	w := New(b, nil)

	require.NoError(t, w.RegisterWorkflow(orderWorkflow("1.0.0")))

	err := w.RegisterWorkflow(orderWorkflow("1.0.0"))
	var already *registry.ErrWorkflowAlreadyRegistered
	require.ErrorAs(t, err, &already)

	require.NoError(t, w.RegisterWorkflow(orderWorkflow("2.0.0")))
	require.NoError(t, w.RegisterWorkflow(orderWorkflow("1.0.0"), registry.WithName("order-copy")))

	invalid := workflow.NewDefinition("invalid", "")
	invalid.Activity("A", []string{"missing"})

	var invalidErr *registry.ErrInvalidWorkflow
	require.ErrorAs(t, w.RegisterWorkflow(invalid), &invalidErr)
}

func Test_Worker_Defaults(t *testing.T) {
	o := withDefaults(&Options{WorkflowWorkerOptions: WorkflowWorkerOptions{WorkflowPollers: 5}})

	require.Equal(t, 5, o.WorkflowPollers)
	require.Equal(t, DefaultOptions.ActivityPollers, o.ActivityPollers)
	require.Equal(t, DefaultOptions.WorkflowHistoryCacheSize, o.WorkflowHistoryCacheSize)
	require.Equal(t, DefaultOptions.ActivityTaskLists, o.ActivityTaskLists)

	require.Equal(t, DefaultOptions.WorkflowPollers, withDefaults(nil).WorkflowPollers)
}

func Test_Worker_RunsWorkflow(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	b := sqlite.NewInMemoryBackend()
	defer b.Close()

	w := New(b, testOptions)
	require.NoError(t, w.RegisterWorkflow(orderWorkflow("1.x")))
	registerOrderActivities(t, w)

	stop := runWorker(t, w)
	defer stop()

	ctx := context.Background()
	c := client.New(b)

	wfi, err := c.CreateWorkflowInstance(ctx, client.WorkflowInstanceOptions{}, "order", "1.2.0", map[string]int{"qty": 2})
	require.NoError(t, err)

	result, err := client.GetWorkflowResult[int](ctx, c, wfi, 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, 21, result)
}

func Test_Worker_ActivityFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	b := sqlite.NewInMemoryBackend()
	defer b.Close()

	w := New(b, testOptions)
	require.NoError(t, w.RegisterWorkflow(orderWorkflow("1.0.0")))
	require.NoError(t, w.RegisterActivity("reserve", func(ctx context.Context, input any) (any, error) {
		return nil, errors.New("out of stock")
	}))

	stop := runWorker(t, w)
	defer stop()

	ctx := context.Background()
	c := client.New(b)

	wfi, err := c.CreateWorkflowInstance(ctx, client.WorkflowInstanceOptions{}, "order", "", map[string]int{"qty": 2})
	require.NoError(t, err)

	_, err = client.GetWorkflowResult[int](ctx, c, wfi, 10*time.Second)

	var wfe *client.WorkflowFailedError
	require.ErrorAs(t, err, &wfe)
	require.Equal(t, "TaskFailed", wfe.Reason)
	require.ErrorContains(t, err, "reserve: out of stock")
}

func Test_Worker_NoValidVersion(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	b := sqlite.NewInMemoryBackend()
	defer b.Close()

	w := NewWorkflowWorker(b, testOptions)
	require.NoError(t, w.RegisterWorkflow(orderWorkflow("1.x")))

	stop := runWorker(t, w)
	defer stop()

	ctx := context.Background()
	c := client.New(b)

	wfi, err := c.CreateWorkflowInstance(ctx, client.WorkflowInstanceOptions{}, "order", "2.0.0", nil)
	require.NoError(t, err)

	_, err = client.GetWorkflowResult[int](ctx, c, wfi, 10*time.Second)

	var wfe *client.WorkflowFailedError
	require.ErrorAs(t, err, &wfe)
	require.Equal(t, internal.ReasonNoValidVersionFound, wfe.Reason)
	require.ErrorContains(t, err, `no workflow "order" satisfies version 2.0.0`)
}

func Test_Worker_SubWorkflow(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	b := sqlite.NewInMemoryBackend()
	defer b.Close()

	w := New(b, testOptions)

	parent := workflow.NewDefinition("parent", "")
	parent.SubWorkflow("child", nil, "order", "1.0.0", workflow.WithInputTransform(func(input any) (any, error) {
		return input.(map[string]any)["_workflowInput"], nil
	}))

	require.NoError(t, w.RegisterWorkflow(parent))
	require.NoError(t, w.RegisterWorkflow(orderWorkflow("1.0.0")))
	registerOrderActivities(t, w)

	stop := runWorker(t, w)
	defer stop()

	ctx := context.Background()
	c := client.New(b)

	wfi, err := c.CreateWorkflowInstance(ctx, client.WorkflowInstanceOptions{}, "parent", "", map[string]int{"qty": 3})
	require.NoError(t, err)

	result, err := client.GetWorkflowResult[int](ctx, c, wfi, 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, 31, result)
}
