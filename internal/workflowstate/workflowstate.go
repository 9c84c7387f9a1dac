package workflowstate

import (
	"maps"

	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/backend/payload"
	"github.com/usherflow/usher/internal/workflowerrors"
)

type State int

const (
	StateScheduled State = iota
	StateStarted
	StateCompleted
	StateFailed
	StateCanceled
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateScheduled:
		return "Scheduled"
	case StateStarted:
		return "Started"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	case StateCanceled:
		return "Canceled"
	case StateTimedOut:
		return "TimedOut"
	default:
		return "Unknown"
	}
}

func (s State) terminal() bool {
	return s >= StateCompleted
}

// Lifecycle is the reconstructed state of one activity, sub-workflow or timer.
type Lifecycle struct {
	State State

	// ScheduleEventID is the sequence ID of the initiating event.
	ScheduleEventID int64

	Result payload.Payload

	Reason string

	Error *workflowerrors.Error
}

// Failed reports a failed, canceled, or timed out lifecycle.
func (l *Lifecycle) Failed() bool {
	return l != nil && (l.State == StateFailed || l.State == StateCanceled || l.State == StateTimedOut)
}

func (l *Lifecycle) Completed() bool {
	return l != nil && l.State == StateCompleted
}

// Outstanding reports a lifecycle that was scheduled or started but has not finished yet.
func (l *Lifecycle) Outstanding() bool {
	return l != nil && (l.State == StateScheduled || l.State == StateStarted)
}

// refine moves the lifecycle forward. Terminal states are never left.
func (l *Lifecycle) refine(state State) bool {
	if l.State.terminal() || state < l.State {
		return false
	}

	l.State = state
	return true
}

// Snapshot is the state of a workflow execution reconstructed from its history up to a horizon.
// A snapshot is read-only once built.
type Snapshot struct {
	horizon        int64
	lastSequenceID int64

	started *history.ExecutionStartedAttributes
	input   any

	activities   map[string]*Lifecycle
	subWorkflows map[string]*Lifecycle
	timers       map[string]*Lifecycle
	markers      map[string]payload.Payload
	variables    map[string]any

	orphans []*history.Event

	// terminated is set once the service terminated the run.
	terminated bool
}

func newSnapshot(horizon int64) *Snapshot {
	return &Snapshot{
		horizon:      horizon,
		activities:   map[string]*Lifecycle{},
		subWorkflows: map[string]*Lifecycle{},
		timers:       map[string]*Lifecycle{},
		markers:      map[string]payload.Payload{},
		variables:    map[string]any{},
	}
}

// Horizon is the replay horizon the snapshot was folded to. Zero means the whole history.
func (s *Snapshot) Horizon() int64 {
	return s.horizon
}

// LastSequenceID is the sequence ID of the newest event included in the snapshot.
func (s *Snapshot) LastSequenceID() int64 {
	return s.lastSequenceID
}

// Started returns the attributes the execution was started with, or nil if the history does not
// include the start event.
func (s *Snapshot) Started() *history.ExecutionStartedAttributes {
	return s.started
}

// WorkflowInput is the decoded input the execution was started with.
func (s *Snapshot) WorkflowInput() any {
	return s.input
}

// Activity returns the lifecycle for the activity with the given correlation id, or nil.
func (s *Snapshot) Activity(id string) *Lifecycle {
	return s.activities[id]
}

// SubWorkflow returns the lifecycle for the sub-workflow with the given correlation id, or nil.
func (s *Snapshot) SubWorkflow(id string) *Lifecycle {
	return s.subWorkflows[id]
}

// Timer returns the lifecycle for the timer with the given id, or nil. Fired timers are Completed.
func (s *Snapshot) Timer(id string) *Lifecycle {
	return s.timers[id]
}

// Marker returns the details of the last marker recorded with the given name.
func (s *Snapshot) Marker(name string) (payload.Payload, bool) {
	p, ok := s.markers[name]
	return p, ok
}

// Variables returns a copy of the variable bindings.
func (s *Snapshot) Variables() map[string]any {
	return maps.Clone(s.variables)
}

// Orphans are events whose initiating event is not part of the snapshot.
// Terminated reports whether the run was terminated by the service.
func (s *Snapshot) Terminated() bool {
	return s.terminated
}

func (s *Snapshot) Orphans() []*history.Event {
	return s.orphans
}
