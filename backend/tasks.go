package backend

import (
	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/core"
)

// WorkflowTask is one decision tick for a workflow execution.
type WorkflowTask struct {
	// ID is an identifier for this task. It's set by the backend
	ID string

	// WorkflowInstance is the workflow instance that this task is for
	WorkflowInstance *core.WorkflowInstance

	WorkflowInstanceState core.WorkflowInstanceState

	// Name and Version of the workflow the instance was started for
	Name    string
	Version string

	// LastSequenceID is the sequence ID of the DecisionTaskStarted event of this task. It is the replay
	// horizon of the tick.
	LastSequenceID int64

	// NewEvents are the events added to the history since the last decision
	NewEvents []*history.Event

	// Backend specific data, only the producer of the task should rely on this.
	CustomData any
}

// ActivityTask represents one activity execution.
type ActivityTask struct {
	ID string

	WorkflowInstance *core.WorkflowInstance

	// Event is the ActivityScheduled event of the activity
	Event *history.Event
}
