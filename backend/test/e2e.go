package test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/usherflow/usher/backend"
	"github.com/usherflow/usher/client"
	"github.com/usherflow/usher/core"
	"github.com/usherflow/usher/worker"
	"github.com/usherflow/usher/workflow"
)

type backendTest struct {
	name string
	f    func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, spans *tracetest.InMemoryExporter)
}

var workerOptions = &worker.Options{
	WorkflowWorkerOptions: worker.WorkflowWorkerOptions{
		WorkflowPollers:         1,
		WorkflowPollingInterval: 5 * time.Millisecond,
	},
	ActivityWorkerOptions: worker.ActivityWorkerOptions{
		ActivityPollers:         2,
		ActivityPollingInterval: 5 * time.Millisecond,
	},
	PollBackoffInitialInterval: time.Millisecond,
	PollBackoffMaxInterval:     20 * time.Millisecond,
}

type activity = func(context.Context, any) (any, error)

func workflowInput(input any) map[string]any {
	return input.(map[string]any)["_workflowInput"].(map[string]any)
}

var e2eTests = []backendTest{
	{
		name: "SimpleWorkflow",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			def := workflow.NewDefinition("greet", "")
			def.Transform("greeting", nil, func(input any) (any, error) {
				return workflowInput(input)["msg"].(string) + " world", nil
			})
			register(t, ctx, w, []*workflow.Definition{def}, nil)

			output, err := runWorkflowWithResult[string](t, ctx, c, "greet", "", map[string]any{"msg": "hello"})

			require.NoError(t, err)
			require.Equal(t, "hello world", output)
		},
	},
	{
		name: "UnregisteredWorkflow",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			register(t, ctx, w, nil, nil)

			output, err := runWorkflowWithResult[string](t, ctx, c, "missing", "", nil)

			require.Zero(t, output)

			var wfe *client.WorkflowFailedError
			require.ErrorAs(t, err, &wfe)
			require.Equal(t, "WorkflowNotFound", wfe.Reason)
			require.ErrorContains(t, err, `workflow "missing" not found`)
		},
	},
	{
		name: "UnregisteredActivity",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			def := workflow.NewDefinition("wf", "")
			def.Activity("A", nil)
			register(t, ctx, w, []*workflow.Definition{def}, nil)

			output, err := runWorkflowWithResult[int](t, ctx, c, "wf", "", nil)

			require.Zero(t, output)
			require.ErrorContains(t, err, `A: activity "A" not found`)
		},
	},
	{
		name: "VersionRouting",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			v1 := workflow.NewDefinition("calc", "1.x")
			v1.Transform("r", nil, func(any) (any, error) { return 1, nil })

			v2 := workflow.NewDefinition("calc", "2.x")
			v2.Transform("r", nil, func(any) (any, error) { return 2, nil })

			register(t, ctx, w, []*workflow.Definition{v1, v2}, nil)

			output, err := runWorkflowWithResult[int](t, ctx, c, "calc", "2.1.0", nil)
			require.NoError(t, err)
			require.Equal(t, 2, output)

			output, err = runWorkflowWithResult[int](t, ctx, c, "calc", "1.0.3", nil)
			require.NoError(t, err)
			require.Equal(t, 1, output)
		},
	},
	{
		name: "Variables",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			def := workflow.NewDefinition("wf", "")
			def.
				Variable("region", nil, func(any) (any, error) { return "eu", nil }).
				Activity("A", []string{"region"})

			register(t, ctx, w, []*workflow.Definition{def}, map[string]activity{
				"A": func(ctx context.Context, input any) (any, error) {
					return input.(map[string]any)["_variables"].(map[string]any)["region"], nil
				},
			})

			output, err := runWorkflowWithResult[string](t, ctx, c, "wf", "", nil)
			require.NoError(t, err)
			require.Equal(t, "eu", output)
		},
	},
	{
		name: "Branch_StopWithResult",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			def := workflow.NewDefinition("wf", "")
			def.
				Decision("large", nil, func(input any) (bool, error) {
					return workflowInput(input)["amount"].(float64) > 100, nil
				}).
				Result("review", []string{"large"}, func(any) (any, error) { return "manual review", nil }).
				Terminate("stop", []string{"review"}).
				Decision("small", nil, func(input any) (bool, error) {
					return workflowInput(input)["amount"].(float64) <= 100, nil
				}).
				Result("approve", []string{"small"}, func(any) (any, error) { return "approved", nil }).
				Terminate("done", []string{"approve"})

			register(t, ctx, w, []*workflow.Definition{def}, nil)

			output, err := runWorkflowWithResult[string](t, ctx, c, "wf", "", map[string]any{"amount": 250})
			require.NoError(t, err)
			require.Equal(t, "manual review", output)

			output, err = runWorkflowWithResult[string](t, ctx, c, "wf", "", map[string]any{"amount": 20})
			require.NoError(t, err)
			require.Equal(t, "approved", output)
		},
	},
	{
		name: "SubWorkflow",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			child := workflow.NewDefinition("child", "")
			child.Activity("double", nil)

			parent := workflow.NewDefinition("parent", "")
			parent.SubWorkflow("child", nil, "child", "", workflow.WithInputTransform(func(input any) (any, error) {
				return workflowInput(input)["n"], nil
			}))

			register(t, ctx, w, []*workflow.Definition{parent, child}, map[string]activity{
				"double": func(ctx context.Context, input any) (any, error) {
					return input.(map[string]any)["_workflowInput"].(float64) * 2, nil
				},
			})

			output, err := runWorkflowWithResult[int](t, ctx, c, "parent", "", map[string]any{"n": 21})
			require.NoError(t, err)
			require.Equal(t, 42, output)
		},
	},
	{
		name: "SubWorkflow_FailurePropagates",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			child := workflow.NewDefinition("child", "")
			child.Transform("broken", nil, nil)

			parent := workflow.NewDefinition("parent", "")
			parent.
				SubWorkflow("child", nil, "child", "").
				SubWorkflow("ignored", nil, "child", "", workflow.WithIgnoreFailures())

			register(t, ctx, w, []*workflow.Definition{parent, child}, nil)

			_, err := runWorkflowWithResult[any](t, ctx, c, "parent", "", nil)

			var wfe *client.WorkflowFailedError
			require.ErrorAs(t, err, &wfe)
			require.Equal(t, "TaskFailed", wfe.Reason)
			require.ErrorContains(t, wfe.Err, "child: TaskFailed")
		},
	},
	{
		name: "BoundedLoop",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			body := workflow.NewFragment().Activity("square", nil)

			def := workflow.NewDefinition("wf", "")
			def.Loop("loop", nil, body, func(input any) ([]any, error) {
				return workflowInput(input)["items"].([]any), nil
			}, workflow.WithItemsPerBatch(2), workflow.WithBatchDelay(10*time.Millisecond))

			register(t, ctx, w, []*workflow.Definition{def}, map[string]activity{
				"square": func(ctx context.Context, input any) (any, error) {
					n := input.(map[string]any)["_workflowInput"].(float64)
					return n * n, nil
				},
			})

			output, err := runWorkflowWithResult[[]map[string]int](t, ctx, c, "wf", "", map[string]any{"items": []int{1, 2, 3, 4, 5}})
			require.NoError(t, err)
			require.Equal(t, []map[string]int{
				{"square": 1}, {"square": 4}, {"square": 9}, {"square": 16}, {"square": 25},
			}, output)
		},
	},
	{
		name: "WhileLoop",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			body := workflow.NewFragment().Activity("poll", nil)

			def := workflow.NewDefinition("wf", "")
			def.WhileLoop("while", nil, body, func(output any) (bool, error) {
				return output.(map[string]any)["poll"].(float64) >= 3, nil
			})

			var calls atomic.Int32
			register(t, ctx, w, []*workflow.Definition{def}, map[string]activity{
				"poll": func(ctx context.Context, input any) (any, error) {
					return calls.Add(1), nil
				},
			})

			output, err := runWorkflowWithResult[map[string]int](t, ctx, c, "wf", "", nil)
			require.NoError(t, err)
			require.Equal(t, map[string]int{"poll": 3}, output)
		},
	},
	{
		name: "Accumulator",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend, _ *tracetest.InMemoryExporter) {
			body := workflow.NewFragment().Activity("page", nil)

			def := workflow.NewDefinition("wf", "")
			def.Accumulator("pages", nil, body, func(output any) ([]any, error) {
				return output.(map[string]any)["page"].([]any), nil
			})

			pages := [][]string{{"a", "b"}, {"c"}, {}}
			register(t, ctx, w, []*workflow.Definition{def}, map[string]activity{
				"page": func(ctx context.Context, input any) (any, error) {
					previous := input.(map[string]any)["_variables"].(map[string]any)[workflow.PreviousResultVariable]

					switch {
					case previous == nil:
						return pages[0], nil
					case len(previous.([]any)) == 2:
						return pages[1], nil
					default:
						return pages[2], nil
					}
				},
			})

			output, err := runWorkflowWithResult[[]string](t, ctx, c, "wf", "", nil)
			require.NoError(t, err)
			require.Equal(t, []string{"a", "b", "c"}, output)
		},
	},
}

// EndToEndBackendTest runs workflows through a worker and a client against a Backend
// implementation.
func EndToEndBackendTest(t *testing.T, setup func() backend.Backend, teardown func(b backend.Backend)) {
	tests := make([]backendTest, 0)
	tests = append(tests, e2eTests...)
	tests = append(tests, e2eActivityTests...)
	tests = append(tests, e2eTimerTests...)
	tests = append(tests, e2eTaskListTests...)
	tests = append(tests, e2eRemovalTests...)
	tests = append(tests, e2eStatsTests...)
	tests = append(tests, e2eTracingTests...)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setup()
			spans := setupTracing(b)

			ctx, cancel := context.WithCancel(context.Background())

			c := client.New(b)
			w := worker.New(b, workerOptions)

			tt.f(t, ctx, c, w, b, spans)

			cancel()
			require.NoError(t, w.WaitForCompletion(), "worker did not stop")

			if teardown != nil {
				teardown(b)
			}
		})
	}
}

func register(t *testing.T, ctx context.Context, w *worker.Worker, workflows []*workflow.Definition, activities map[string]activity) {
	for _, def := range workflows {
		require.NoError(t, w.RegisterWorkflow(def))
	}

	for name, fn := range activities {
		require.NoError(t, w.RegisterActivity(name, fn))
	}

	require.NoError(t, w.Start(ctx))
}

func runWorkflow(t *testing.T, ctx context.Context, c *client.Client, name, version string, input any) *core.WorkflowInstance {
	instance, err := c.CreateWorkflowInstance(ctx, client.WorkflowInstanceOptions{
		InstanceID: uuid.NewString(),
	}, name, version, input)
	require.NoError(t, err)

	return instance
}

func runWorkflowWithResult[T any](t *testing.T, ctx context.Context, c *client.Client, name, version string, input any) (T, error) {
	instance := runWorkflow(t, ctx, c, name, version, input)
	return client.GetWorkflowResult[T](ctx, c, instance, time.Second*10)
}

func hasPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}

	return false
}
