package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/usherflow/usher/backend"
	"github.com/usherflow/usher/backend/converter"
	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/backend/metrics"
	"github.com/usherflow/usher/backend/payload"
	"github.com/usherflow/usher/core"
	"github.com/usherflow/usher/internal/log"
	"github.com/usherflow/usher/internal/metrickeys"
	im "github.com/usherflow/usher/internal/metrics"
	"github.com/usherflow/usher/internal/tracing"
	"github.com/usherflow/usher/internal/workflowerrors"
	"github.com/usherflow/usher/registry"
)

type ActivityWorkerOptions struct {
	WorkerOptions

	// TaskLists the worker leases activities from. Defaults to the default task list.
	TaskLists []core.TaskList
}

func NewActivityWorker(
	b backend.Backend,
	registry *registry.Registry,
	clock clock.Clock,
	options ActivityWorkerOptions,
) *Worker[backend.ActivityTask, history.Event] {
	taskLists := options.TaskLists
	if len(taskLists) == 0 {
		taskLists = []core.TaskList{core.TaskListDefault}
	}

	tw := &ActivityTaskWorker{
		backend:   b,
		registry:  registry,
		converter: b.Options().Converter,
		taskLists: taskLists,
		clock:     clock,
		logger:    b.Logger(),
	}

	return NewWorker[backend.ActivityTask, history.Event](b.Logger(), tw, &options.WorkerOptions)
}

// ActivityTaskWorker runs scheduled activities with the functions of a registry.
type ActivityTaskWorker struct {
	backend   backend.Backend
	registry  *registry.Registry
	converter converter.Converter
	taskLists []core.TaskList
	clock     clock.Clock
	logger    *slog.Logger
}

var _ TaskWorker[backend.ActivityTask, history.Event] = (*ActivityTaskWorker)(nil)

func (atw *ActivityTaskWorker) Start(context.Context) error {
	return nil
}

func (atw *ActivityTaskWorker) Get(ctx context.Context) (*backend.ActivityTask, error) {
	return atw.backend.GetActivityTask(ctx, atw.taskLists)
}

// Execute runs the activity and returns the event recording its outcome. Failures of the activity
// itself are recorded, only unexpected task errors are returned.
func (atw *ActivityTaskWorker) Execute(ctx context.Context, t *backend.ActivityTask) (*history.Event, error) {
	a, ok := t.Event.Attributes.(*history.ActivityScheduledAttributes)
	if !ok {
		return nil, fmt.Errorf("activity task %s: unexpected event type %v", t.ID, t.Event.Type)
	}

	logger := atw.logger.With(
		log.InstanceIDKey, t.WorkflowInstance.InstanceID,
		log.ActivityIDKey, a.ActivityID,
		log.ActivityNameKey, a.Name,
	)

	ametrics := atw.backend.Metrics().WithTags(metrics.Tags{metrickeys.ActivityName: a.Name})

	// Record how long this task was in the queue
	timeInQueue := atw.clock.Since(t.Event.Timestamp)
	ametrics.Distribution(metrickeys.ActivityTaskDelay, metrics.Tags{}, float64(timeInQueue/time.Millisecond))

	timer := im.NewTimer(ametrics, metrickeys.ActivityTaskProcessed, metrics.Tags{})
	defer timer.Stop()

	ctx, span := atw.backend.Tracer().Start(ctx, "ExecuteActivity", trace.WithAttributes(
		attribute.String(tracing.WorkflowInstanceID, t.WorkflowInstance.InstanceID),
		attribute.String(tracing.ActivityTaskID, t.ID),
		attribute.String(tracing.ActivityName, a.Name),
		attribute.Int64(tracing.ScheduleEventID, t.Event.SequenceID),
	))
	defer span.End()

	result, err := atw.run(ctx, a)
	if err != nil {
		logger.Debug("Activity failed", "error", err)
		tracing.WithSpanError(span, err)

		return history.NewHistoryEvent(
			atw.clock.Now(),
			history.EventType_ActivityFailed,
			&history.ActivityFailedAttributes{
				Reason: err.Error(),
				Error:  workflowerrors.FromError(err),
			},
			history.ScheduleEventID(t.Event.SequenceID),
		), nil
	}

	logger.Debug("Activity completed")

	return history.NewHistoryEvent(
		atw.clock.Now(),
		history.EventType_ActivityCompleted,
		&history.ActivityCompletedAttributes{
			Result: result,
		},
		history.ScheduleEventID(t.Event.SequenceID),
	), nil
}

func (atw *ActivityTaskWorker) run(ctx context.Context, a *history.ActivityScheduledAttributes) (result payload.Payload, err error) {
	fn, err := atw.registry.GetActivity(a.Name, a.Version)
	if err != nil {
		return nil, err
	}

	input, err := converter.Value(atw.converter, a.Input)
	if err != nil {
		return nil, fmt.Errorf("decoding activity input: %w", err)
	}

	if a.Timeouts.StartToClose > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeouts.StartToClose)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = workflowerrors.NewPanicError(fmt.Sprintf("activity %s panicked: %v", a.Name, r))
		}
	}()

	v, err := fn(ctx, input)
	if err != nil {
		return nil, err
	}

	return atw.converter.To(v)
}

func (atw *ActivityTaskWorker) Complete(ctx context.Context, event *history.Event, t *backend.ActivityTask) error {
	if err := atw.backend.CompleteActivityTask(ctx, t, event); err != nil {
		atw.logger.Error("Could not complete activity task", log.TaskIDKey, t.ID, "error", err)
		return err
	}

	return nil
}
