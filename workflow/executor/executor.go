package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/usherflow/usher/backend"
	"github.com/usherflow/usher/backend/converter"
	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/backend/metrics"
	"github.com/usherflow/usher/core"
	"github.com/usherflow/usher/internal/command"
	"github.com/usherflow/usher/internal/log"
	"github.com/usherflow/usher/internal/metrickeys"
	im "github.com/usherflow/usher/internal/metrics"
	"github.com/usherflow/usher/internal/tracing"
	"github.com/usherflow/usher/internal/workflowerrors"
	"github.com/usherflow/usher/workflow"
)

// Reasons recorded when a run is failed by the executor.
const (
	ReasonTaskFailed       = "TaskFailed"
	ReasonEvaluationFailed = "EvaluationFailed"
)

type ExecutionResult struct {
	// New state of the workflow instance
	State core.WorkflowInstanceState

	// Commands of the decision, including the command closing the run
	Commands []command.Command

	// Events recorded for the commands of the decision
	Events []*history.Event

	Verdict Verdict
}

type WorkflowHistoryProvider interface {
	GetWorkflowInstanceHistory(ctx context.Context, instance *core.WorkflowInstance, lastSequenceID *int64) ([]*history.Event, error)
}

// Executor evaluates decision tasks. It holds no workflow state between tasks besides the
// optional history cache.
type Executor struct {
	historyProvider WorkflowHistoryProvider
	cache           HistoryCache
	converter       converter.Converter
	clock           clock.Clock
	logger          *slog.Logger
	tracer          trace.Tracer
	metrics         metrics.Client
}

// NewExecutor creates an executor. cache may be nil, the full history is fetched for every task
// then.
func NewExecutor(
	logger *slog.Logger,
	tracer trace.Tracer,
	mc metrics.Client,
	cv converter.Converter,
	historyProvider WorkflowHistoryProvider,
	cache HistoryCache,
	clock clock.Clock,
) *Executor {
	return &Executor{
		historyProvider: historyProvider,
		cache:           cache,
		converter:       cv,
		clock:           clock,
		logger:          logger,
		tracer:          tracer,
		metrics:         mc,
	}
}

// ExecuteTask evaluates one decision tick of def for the instance of t and returns the events
// recorded for the resulting commands.
func (e *Executor) ExecuteTask(ctx context.Context, def *workflow.Definition, t *backend.WorkflowTask) (*ExecutionResult, error) {
	logger := e.logger.With(
		log.TaskIDKey, t.ID,
		log.InstanceIDKey, t.WorkflowInstance.InstanceID,
		log.WorkflowNameKey, def.Name,
	)

	logger.Debug("Executing workflow task", slog.Int64(log.TaskLastSequenceIDKey, t.LastSequenceID))

	if t.WorkflowInstanceState == core.WorkflowInstanceStateFinished {
		logger.Error("Received workflow task for finished workflow instance, discarding events")

		for _, event := range t.NewEvents {
			logger.Debug("Discarded event:",
				log.EventIDKey, event.ID,
				log.EventTypeKey, event.Type.String(),
				log.ScheduleEventIDKey, event.ScheduleEventID)
		}

		return &ExecutionResult{
			State: core.WorkflowInstanceStateFinished,
		}, nil
	}

	ctx, span := e.tracer.Start(ctx, "EvaluateTick", trace.WithAttributes(
		attribute.String(tracing.WorkflowInstanceID, t.WorkflowInstance.InstanceID),
		attribute.String(tracing.WorkflowName, def.Name),
		attribute.String(tracing.WorkflowVersion, def.Version),
		attribute.String(tracing.WorkflowTaskID, t.ID),
		attribute.Int64(tracing.DecisionHorizon, t.LastSequenceID),
		attribute.Int(tracing.WorkflowTaskEvents, len(t.NewEvents)),
	))
	defer span.End()

	events, err := e.history(ctx, t)
	if err != nil {
		return nil, tracing.WithSpanError(span, fmt.Errorf("getting workflow history: %w", err))
	}

	timer := im.NewTimer(e.metrics, metrickeys.DecisionTick, metrics.Tags{metrickeys.WorkflowName: def.Name})
	r, err := EvaluateTick(def, nil, events, t.LastSequenceID, "", nil, WithLogger(logger))
	timer.Stop()

	var commands []command.Command
	var verdict Verdict

	if err != nil {
		logger.Error("Error while evaluating tick", "error", err)
		tracing.WithSpanError(span, err)

		verdict = Verdict{Kind: VerdictFailed}
		commands = []command.Command{
			&command.FailWorkflowCommand{
				Reason: ReasonEvaluationFailed,
				Error:  workflowerrors.FromError(err),
			},
		}
	} else {
		verdict = r.Verdict
		commands = r.Commands

		c, err := e.completion(r)
		if err != nil {
			return nil, tracing.WithSpanError(span, err)
		}

		if c != nil {
			commands = append(commands, c)
		}
	}

	resultEvents, state := command.ToEvents(e.clock, commands)
	if verdict.Kind == VerdictTerminated {
		// Closed by the service, nothing left to record
		state = core.WorkflowInstanceStateFinished
	}

	span.SetAttributes(
		attribute.Int(tracing.DecisionCommands, len(commands)),
		attribute.String(tracing.DecisionVerdict, verdict.Kind.String()),
	)

	e.metrics.Distribution(metrickeys.DecisionCommands, metrics.Tags{metrickeys.WorkflowName: def.Name}, float64(len(commands)))
	e.metrics.Counter(metrickeys.DecisionVerdict, metrics.Tags{
		metrickeys.WorkflowName: def.Name,
		metrickeys.Verdict:      verdict.Kind.String(),
	}, 1)

	if verdict.Kind == VerdictFailed {
		logger.Warn("Workflow failed", log.VerdictKey, verdict.Kind.String(), "failures", verdict.Failures)
	}

	if state == core.WorkflowInstanceStateFinished && e.cache != nil {
		if err := e.cache.Evict(ctx, t.WorkflowInstance); err != nil {
			logger.Error("Could not evict history", "error", err)
		}
	}

	logger.Debug("Finished workflow task",
		log.CommandsKey, len(commands),
		log.VerdictKey, verdict.Kind.String(),
		log.TaskLastSequenceIDKey, t.LastSequenceID,
	)

	return &ExecutionResult{
		State:    state,
		Commands: commands,
		Events:   resultEvents,
		Verdict:  verdict,
	}, nil
}

// completion returns the command closing the run for a terminal verdict.
func (e *Executor) completion(r *Result) (command.Command, error) {
	switch r.Verdict.Kind {
	case VerdictSucceeded:
		result, err := e.converter.To(r.Output)
		if err != nil {
			return nil, fmt.Errorf("encoding workflow result: %w", err)
		}

		return &command.CompleteWorkflowCommand{Result: result}, nil

	case VerdictFailed:
		return &command.FailWorkflowCommand{
			Reason: ReasonTaskFailed,
			Error:  workflowerrors.FromError(failuresError(r.Verdict.Failures)),
		}, nil
	}

	return nil, nil
}

func failuresError(failures []workflow.Failure) error {
	msgs := make([]string, 0, len(failures))
	for _, f := range failures {
		msgs = append(msgs, fmt.Sprintf("%s: %s", f.Task, f.Reason))
	}

	return errors.New(strings.Join(msgs, "; "))
}

// history returns the history of the task's instance, fetching only the tail if an earlier part
// is cached.
func (e *Executor) history(ctx context.Context, t *backend.WorkflowTask) ([]*history.Event, error) {
	if e.cache == nil {
		return e.historyProvider.GetWorkflowInstanceHistory(ctx, t.WorkflowInstance, nil)
	}

	cached, ok, err := e.cache.Get(ctx, t.WorkflowInstance)
	if err != nil {
		return nil, err
	}

	var lastSequenceID *int64
	if ok && len(cached) > 0 {
		e.metrics.Counter(metrickeys.HistoryCacheHit, metrics.Tags{}, 1)
		lastSequenceID = &cached[len(cached)-1].SequenceID
	} else {
		e.metrics.Counter(metrickeys.HistoryCacheMiss, metrics.Tags{}, 1)
		cached = nil
	}

	tail, err := e.historyProvider.GetWorkflowInstanceHistory(ctx, t.WorkflowInstance, lastSequenceID)
	if err != nil {
		return nil, err
	}

	events := make([]*history.Event, 0, len(cached)+len(tail))
	events = append(events, cached...)
	events = append(events, tail...)

	if err := e.cache.Store(ctx, t.WorkflowInstance, events); err != nil {
		return nil, err
	}

	return events, nil
}
