package worker

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/usherflow/usher/backend"
	internal "github.com/usherflow/usher/internal/worker"
	"github.com/usherflow/usher/registry"
	"github.com/usherflow/usher/workflow"
)

type Worker struct {
	backend backend.Backend

	registry *registry.Registry

	workers []worker
}

type worker interface {
	Start(context.Context) error
	WaitForCompletion() error
}

// New creates a worker that processes decision and activity tasks.
func New(backend backend.Backend, options *Options) *Worker {
	options = withDefaults(options)
	registry := registry.New()

	return &Worker{
		backend:  backend,
		registry: registry,
		workers: []worker{
			newWorkflowWorker(backend, registry, options),
			newActivityWorker(backend, registry, options),
		},
	}
}

// NewWorkflowWorker creates a worker that only processes decision tasks.
func NewWorkflowWorker(backend backend.Backend, options *Options) *Worker {
	options = withDefaults(options)
	registry := registry.New()

	return &Worker{
		backend:  backend,
		registry: registry,
		workers:  []worker{newWorkflowWorker(backend, registry, options)},
	}
}

// NewActivityWorker creates a worker that only processes activities.
func NewActivityWorker(backend backend.Backend, options *Options) *Worker {
	options = withDefaults(options)
	registry := registry.New()

	return &Worker{
		backend:  backend,
		registry: registry,
		workers:  []worker{newActivityWorker(backend, registry, options)},
	}
}

func newWorkflowWorker(backend backend.Backend, registry *registry.Registry, options *Options) worker {
	return internal.NewWorkflowWorker(backend, registry, clock.New(), internal.WorkflowWorkerOptions{
		WorkerOptions: internal.WorkerOptions{
			Pollers:                options.WorkflowPollers,
			PollingInterval:        options.WorkflowPollingInterval,
			MaxParallelTasks:       options.MaxParallelWorkflowTasks,
			BackoffInitialInterval: options.PollBackoffInitialInterval,
			BackoffMaxInterval:     options.PollBackoffMaxInterval,
		},
		HistoryCache:     options.WorkflowHistoryCache,
		HistoryCacheSize: options.WorkflowHistoryCacheSize,
		HistoryCacheTTL:  options.WorkflowHistoryCacheTTL,
	})
}

func newActivityWorker(backend backend.Backend, registry *registry.Registry, options *Options) worker {
	return internal.NewActivityWorker(backend, registry, clock.New(), internal.ActivityWorkerOptions{
		WorkerOptions: internal.WorkerOptions{
			Pollers:                options.ActivityPollers,
			PollingInterval:        options.ActivityPollingInterval,
			MaxParallelTasks:       options.MaxParallelActivityTasks,
			BackoffInitialInterval: options.PollBackoffInitialInterval,
			BackoffMaxInterval:     options.PollBackoffMaxInterval,
		},
		TaskLists: options.ActivityTaskLists,
	})
}

// withDefaults returns a copy of options with unset fields taken from DefaultOptions.
func withDefaults(options *Options) *Options {
	if options == nil {
		o := DefaultOptions
		return &o
	}

	o := *options
	d := DefaultOptions

	if o.WorkflowPollers <= 0 {
		o.WorkflowPollers = d.WorkflowPollers
	}
	if o.WorkflowPollingInterval <= 0 {
		o.WorkflowPollingInterval = d.WorkflowPollingInterval
	}
	if o.WorkflowHistoryCacheSize <= 0 {
		o.WorkflowHistoryCacheSize = d.WorkflowHistoryCacheSize
	}
	if o.WorkflowHistoryCacheTTL <= 0 {
		o.WorkflowHistoryCacheTTL = d.WorkflowHistoryCacheTTL
	}
	if o.ActivityPollers <= 0 {
		o.ActivityPollers = d.ActivityPollers
	}
	if o.ActivityPollingInterval <= 0 {
		o.ActivityPollingInterval = d.ActivityPollingInterval
	}
	if len(o.ActivityTaskLists) == 0 {
		o.ActivityTaskLists = d.ActivityTaskLists
	}
	if o.PollBackoffInitialInterval <= 0 {
		o.PollBackoffInitialInterval = d.PollBackoffInitialInterval
	}
	if o.PollBackoffMaxInterval <= 0 {
		o.PollBackoffMaxInterval = d.PollBackoffMaxInterval
	}

	return &o
}

// Start starts the worker.
//
// To stop the worker, cancel the context passed to Start. To wait for completion of the active
// tasks, call `WaitForCompletion`.
func (w *Worker) Start(ctx context.Context) error {
	for _, worker := range w.workers {
		if err := worker.Start(ctx); err != nil {
			return fmt.Errorf("starting worker: %w", err)
		}
	}

	return nil
}

// WaitForCompletion waits for all active tasks to complete.
func (w *Worker) WaitForCompletion() error {
	for _, worker := range w.workers {
		if err := worker.WaitForCompletion(); err != nil {
			return fmt.Errorf("waiting for worker completion: %w", err)
		}
	}

	return nil
}

// RegisterWorkflow registers a workflow definition with the worker's registry.
func (w *Worker) RegisterWorkflow(def *workflow.Definition, opts ...registry.RegisterOption) error {
	return w.registry.RegisterWorkflow(def, opts...)
}

// RegisterActivity registers an activity with the worker's registry.
func (w *Worker) RegisterActivity(name string, fn registry.Activity, opts ...registry.RegisterOption) error {
	return w.registry.RegisterActivity(name, fn, opts...)
}
