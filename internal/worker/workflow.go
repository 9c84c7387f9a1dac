package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/usherflow/usher/backend"
	"github.com/usherflow/usher/backend/metrics"
	"github.com/usherflow/usher/core"
	"github.com/usherflow/usher/internal/command"
	"github.com/usherflow/usher/internal/log"
	"github.com/usherflow/usher/internal/metrickeys"
	"github.com/usherflow/usher/internal/workflowerrors"
	"github.com/usherflow/usher/registry"
	"github.com/usherflow/usher/workflow/executor"
	"github.com/usherflow/usher/workflow/executor/cache"
)

// Reasons recorded when a run cannot be routed to a definition.
const (
	ReasonNoValidVersionFound = "NoValidVersionFound"
	ReasonWorkflowNotFound    = "WorkflowNotFound"
)

type WorkflowWorkerOptions struct {
	WorkerOptions

	HistoryCacheSize int
	HistoryCacheTTL  time.Duration

	// HistoryCache replaces the default in-memory cache when set.
	HistoryCache executor.HistoryCache
}

func NewWorkflowWorker(
	b backend.Backend,
	registry *registry.Registry,
	clock clock.Clock,
	options WorkflowWorkerOptions,
) *Worker[backend.WorkflowTask, executor.ExecutionResult] {
	var c executor.HistoryCache
	if options.HistoryCache != nil {
		c = options.HistoryCache
	} else {
		c = cache.NewHistoryLRUCache(b.Metrics(), options.HistoryCacheSize, options.HistoryCacheTTL)
	}

	tw := &WorkflowTaskWorker{
		backend:  b,
		registry: registry,
		cache:    c,
		clock:    clock,
		logger:   b.Logger(),
		executor: executor.NewExecutor(
			b.Logger(), b.Tracer(), b.Metrics(), b.Options().Converter, b, c, clock,
		),
	}

	return NewWorker[backend.WorkflowTask, executor.ExecutionResult](b.Logger(), tw, &options.WorkerOptions)
}

// WorkflowTaskWorker runs decision tasks against the definitions of a registry.
type WorkflowTaskWorker struct {
	backend  backend.Backend
	registry *registry.Registry
	cache    executor.HistoryCache
	executor *executor.Executor
	clock    clock.Clock
	logger   *slog.Logger
}

var _ TaskWorker[backend.WorkflowTask, executor.ExecutionResult] = (*WorkflowTaskWorker)(nil)

func (wtw *WorkflowTaskWorker) Start(ctx context.Context) error {
	go wtw.cache.StartEviction(ctx)

	return nil
}

func (wtw *WorkflowTaskWorker) Get(ctx context.Context) (*backend.WorkflowTask, error) {
	t, err := wtw.backend.GetWorkflowTask(ctx)
	if err != nil || t == nil {
		return nil, err
	}

	wtw.recordDelay(t)

	return t, nil
}

func (wtw *WorkflowTaskWorker) Execute(ctx context.Context, t *backend.WorkflowTask) (*executor.ExecutionResult, error) {
	if t.WorkflowInstanceState != core.WorkflowInstanceStateFinished {
		def, err := wtw.registry.GetWorkflow(t.Name, t.Version)
		if err != nil {
			var nv *registry.ErrNoValidVersion
			var nf *registry.ErrNotFound
			switch {
			case errors.As(err, &nv):
				return wtw.failRun(t, ReasonNoValidVersionFound, err), nil
			case errors.As(err, &nf):
				return wtw.failRun(t, ReasonWorkflowNotFound, err), nil
			}

			return nil, err
		}

		return wtw.executor.ExecuteTask(ctx, def, t)
	}

	return &executor.ExecutionResult{State: core.WorkflowInstanceStateFinished}, nil
}

// failRun fails a run no registered definition can serve with a permanent error.
func (wtw *WorkflowTaskWorker) failRun(t *backend.WorkflowTask, reason string, err error) *executor.ExecutionResult {
	wtw.logger.Warn("Failing workflow instance without definition",
		log.InstanceIDKey, t.WorkflowInstance.InstanceID,
		log.WorkflowNameKey, t.Name,
		log.WorkflowVersionKey, t.Version,
		"reason", reason,
		"error", err,
	)

	events, state := command.ToEvents(wtw.clock, []command.Command{
		&command.FailWorkflowCommand{
			Reason: reason,
			Error:  workflowerrors.NewPermanentError(err),
		},
	})

	return &executor.ExecutionResult{
		State:   state,
		Events:  events,
		Verdict: executor.Verdict{Kind: executor.VerdictFailed},
	}
}

func (wtw *WorkflowTaskWorker) Complete(ctx context.Context, result *executor.ExecutionResult, t *backend.WorkflowTask) error {
	logger := wtw.logger.With(
		log.TaskIDKey, t.ID,
		log.InstanceIDKey, t.WorkflowInstance.InstanceID,
		log.ExecutionIDKey, t.WorkflowInstance.ExecutionID,
	)

	if err := wtw.backend.CompleteWorkflowTask(ctx, t, result.State, result.Events); err != nil {
		logger.Error("Could not complete workflow task", "error", err)
		return err
	}

	wtw.backend.Metrics().Counter(metrickeys.WorkflowTaskProcessed, metrics.Tags{
		metrickeys.WorkflowName: t.Name,
		metrickeys.Verdict:      result.Verdict.Kind.String(),
	}, 1)

	if result.State == core.WorkflowInstanceStateFinished && t.WorkflowInstanceState != core.WorkflowInstanceStateFinished {
		wtw.backend.Metrics().Counter(metrickeys.WorkflowInstanceFinished, metrics.Tags{
			metrickeys.WorkflowName: t.Name,
			metrickeys.SubWorkflow:  boolTag(t.WorkflowInstance.SubWorkflow()),
		}, 1)
	}

	return nil
}

// recordDelay records how long the oldest new event of the task waited for a decision.
func (wtw *WorkflowTaskWorker) recordDelay(t *backend.WorkflowTask) {
	var oldest time.Time
	for _, e := range t.NewEvents {
		if oldest.IsZero() || e.Timestamp.Before(oldest) {
			oldest = e.Timestamp
		}
	}

	if oldest.IsZero() {
		return
	}

	delay := wtw.clock.Since(oldest)
	wtw.backend.Metrics().Distribution(metrickeys.WorkflowTaskDelay, metrics.Tags{
		metrickeys.WorkflowName: t.Name,
	}, float64(delay/time.Millisecond))
}

func boolTag(v bool) string {
	if v {
		return "true"
	}

	return "false"
}
