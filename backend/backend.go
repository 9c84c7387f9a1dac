package backend

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/backend/metrics"
	"github.com/usherflow/usher/core"
)

var (
	ErrInstanceNotFound      = errors.New("workflow instance not found")
	ErrInstanceAlreadyExists = errors.New("workflow instance already exists")
	ErrInstanceNotFinished   = errors.New("workflow instance is not finished")
)

const TracerName = "usher"

//go:generate mockery --name=Backend --inpackage

// Backend is the durable workflow service the decision engine talks to. It owns the history of
// every run, hands out decision and activity tasks, and turns recorded commands into follow-up
// events such as fired timers or started sub-workflows.
type Backend interface {
	// CreateWorkflowInstance creates a new workflow instance. event is the WorkflowExecutionStarted
	// event of the instance.
	CreateWorkflowInstance(ctx context.Context, instance *core.WorkflowInstance, event *history.Event) error

	// GetWorkflowInstanceState returns the state of the given workflow instance
	GetWorkflowInstanceState(ctx context.Context, instance *core.WorkflowInstance) (core.WorkflowInstanceState, error)

	// GetWorkflowInstanceHistory returns the workflow history for the given instance. When lastSequenceID
	// is given, only events after that event are returned. Otherwise the full history is returned.
	GetWorkflowInstanceHistory(ctx context.Context, instance *core.WorkflowInstance, lastSequenceID *int64) ([]*history.Event, error)

	// RemoveWorkflowInstances removes finished workflow instances
	RemoveWorkflowInstances(ctx context.Context, options ...RemovalOption) error

	// GetWorkflowTask returns a pending decision task or nil if there are no pending workflow executions.
	//
	// Pending events of the instance are moved into its history and a DecisionTaskStarted event is
	// appended. The sequence ID of that event is the replay horizon of the task.
	GetWorkflowTask(ctx context.Context) (*WorkflowTask, error)

	// CompleteWorkflowTask checkpoints a decision task retrieved using GetWorkflowTask
	//
	// events are the events recorded for the commands of the decision. The backend assigns their
	// sequence IDs and derives activity tasks, timers, and sub-workflow instances from them.
	CompleteWorkflowTask(ctx context.Context, task *WorkflowTask, state core.WorkflowInstanceState, events []*history.Event) error

	// GetActivityTask returns a pending activity task for one of the given task lists or nil if there
	// are no pending activities
	GetActivityTask(ctx context.Context, taskLists []core.TaskList) (*ActivityTask, error)

	// CompleteActivityTask completes an activity task retrieved using GetActivityTask
	CompleteActivityTask(ctx context.Context, task *ActivityTask, result *history.Event) error

	// GetStats returns stats about the backend
	GetStats(ctx context.Context) (*Stats, error)

	// Logger returns the configured logger for the backend
	Logger() *slog.Logger

	// Tracer returns the configured trace provider for the backend
	Tracer() trace.Tracer

	// Metrics returns the configured metrics client for the backend
	Metrics() metrics.Client

	// Options returns the configured options for the backend
	Options() *Options

	// Close closes any underlying resources
	Close() error
}
