package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/usherflow/usher/backend"
	"github.com/usherflow/usher/backend/sqlite"
	"github.com/usherflow/usher/client"
	"github.com/usherflow/usher/worker"
	"github.com/usherflow/usher/workflow"
)

var (
	backendName  = flag.String("backend", "memory", "backend to use: memory, sqlite")
	dbPath       = flag.String("db", "usher.sqlite", "database file of the sqlite backend")
	exporter     = flag.String("exporter", "stdout", "trace exporter: stdout, otlp, none")
	otlpEndpoint = flag.String("otlp-endpoint", "localhost:4318", "endpoint of the otlp http exporter")
	retention    = flag.Duration("retention", time.Hour, "retention of finished workflow instances")
	debug        = flag.Bool("debug", false, "enable debug logging")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	tp, err := newTracerProvider(ctx)
	if err != nil {
		logger.Error("could not create tracer provider", "error", err)
		os.Exit(1)
	}
	defer tp.Shutdown(context.Background())

	otel.SetTracerProvider(tp)

	b := getBackend(backend.WithLogger(logger), backend.WithTracerProvider(tp))
	defer b.Close()

	if err := run(ctx, b, logger); err != nil {
		logger.Error("sample failed", "error", err)
		os.Exit(1)
	}
}

func getBackend(opts ...backend.BackendOption) backend.Backend {
	switch *backendName {
	case "memory":
		return sqlite.NewInMemoryBackend(sqlite.WithBackendOptions(opts...))

	case "sqlite":
		return sqlite.NewSqliteBackend(*dbPath, sqlite.WithBackendOptions(opts...))

	default:
		panic("unknown backend " + *backendName)
	}
}

func newTracerProvider(ctx context.Context) (*sdktrace.TracerProvider, error) {
	r := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String("usher sample"),
		semconv.ServiceVersionKey.String("v0.1.0"),
		attribute.String("environment", "sample"),
	)

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(r)}

	switch *exporter {
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating stdout exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithSyncer(exp))

	case "otlp":
		exp, err := otlptrace.New(ctx, otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(*otlpEndpoint),
			otlptracehttp.WithInsecure(),
		))
		if err != nil {
			return nil, fmt.Errorf("creating otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))

	case "none":

	default:
		return nil, fmt.Errorf("unknown exporter %q", *exporter)
	}

	return sdktrace.NewTracerProvider(opts...), nil
}

func run(ctx context.Context, b backend.Backend, logger *slog.Logger) error {
	w := worker.New(b, nil)

	if err := w.RegisterWorkflow(fulfillment()); err != nil {
		return err
	}

	if err := w.RegisterWorkflow(shipment()); err != nil {
		return err
	}

	for name, fn := range activities(logger) {
		if err := w.RegisterActivity(name, fn); err != nil {
			return err
		}
	}

	wctx, stop := context.WithCancel(ctx)
	if err := w.Start(wctx); err != nil {
		stop()
		return err
	}

	defer func() {
		stop()
		if err := w.WaitForCompletion(); err != nil {
			logger.Error("could not stop worker", "error", err)
		}
	}()

	c := client.New(b)

	go func() {
		if err := c.RunAutoExpiration(wctx, time.Minute, *retention); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("auto expiration stopped", "error", err)
		}
	}()

	wfi, err := c.CreateWorkflowInstance(ctx, client.WorkflowInstanceOptions{}, "fulfillment", "", map[string]any{
		"order":   "o-1042",
		"express": true,
		"items":   []string{"lamp", "desk", "chair"},
	})
	if err != nil {
		return err
	}

	logger.Info("Started workflow", "instance_id", wfi.InstanceID)

	result, err := client.GetWorkflowResult[map[string]any](ctx, c, wfi, 30*time.Second)
	if err != nil {
		return err
	}

	logger.Info("Workflow finished", "result", result)

	stats, err := c.GetStats(ctx)
	if err != nil {
		return err
	}

	logger.Info("Backend stats",
		"active_instances", stats.ActiveWorkflowInstances,
		"pending_workflow_tasks", stats.PendingWorkflowTasks,
		"pending_activities", stats.PendingActivities,
		"pending_timers", stats.PendingTimers,
	)

	return nil
}

// fulfillment picks every item, ships the order in a sub-workflow and reports the tracking number.
func fulfillment() *workflow.Definition {
	pick := workflow.NewFragment().Activity("pick", nil)

	def := workflow.NewDefinition("fulfillment", "1.0.0")
	def.
		Variable("warehouse", nil, func(any) (any, error) {
			return "ams-1", nil
		}).
		Loop("items", []string{"warehouse"}, pick, func(input any) ([]any, error) {
			return input.(map[string]any)["_workflowInput"].(map[string]any)["items"].([]any), nil
		}, workflow.WithItemsPerBatch(2), workflow.WithBatchDelay(100*time.Millisecond)).
		Decision("express", []string{"items"}, func(input any) (bool, error) {
			return input.(map[string]any)["_workflowInput"].(map[string]any)["express"].(bool), nil
		}).
		SubWorkflow("ship", []string{"express"}, "shipment", "1.2.0", workflow.WithInputTransform(func(input any) (any, error) {
			in := input.(map[string]any)
			return map[string]any{
				"order":     in["_workflowInput"].(map[string]any)["order"],
				"warehouse": in["_variables"].(map[string]any)["warehouse"],
			}, nil
		})).
		Result("report", []string{"items", "ship"}, func(input any) (any, error) {
			in := input.(map[string]any)
			return map[string]any{
				"picked":   in["items"],
				"tracking": in["ship"],
			}, nil
		}).
		Terminate("done", []string{"report"})

	return def
}

func shipment() *workflow.Definition {
	def := workflow.NewDefinition("shipment", "1.x")
	def.
		Activity("label", nil).
		Activity("dispatch", []string{"label"})

	return def
}

func activities(logger *slog.Logger) map[string]func(context.Context, any) (any, error) {
	return map[string]func(context.Context, any) (any, error){
		"pick": func(ctx context.Context, input any) (any, error) {
			item := input.(map[string]any)["_workflowInput"]
			logger.Info("Picking item", "item", item)

			return fmt.Sprintf("picked %v", item), nil
		},
		"label": func(ctx context.Context, input any) (any, error) {
			in := input.(map[string]any)["_workflowInput"].(map[string]any)
			return fmt.Sprintf("%v-%v", in["warehouse"], in["order"]), nil
		},
		"dispatch": func(ctx context.Context, input any) (any, error) {
			return fmt.Sprintf("TRK-%v", input.(map[string]any)["label"]), nil
		},
	}
}
