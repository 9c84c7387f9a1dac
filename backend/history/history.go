package history

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

type EventType uint

const (
	_ EventType = iota

	EventType_WorkflowExecutionStarted
	EventType_WorkflowExecutionCompleted
	EventType_WorkflowExecutionFailed
	EventType_WorkflowExecutionTerminated

	EventType_DecisionTaskStarted
	EventType_DecisionTaskCompleted

	EventType_ActivityScheduled
	EventType_ActivityStarted
	EventType_ActivityCompleted
	EventType_ActivityFailed
	EventType_ActivityCanceled
	EventType_ActivityTimedOut

	EventType_TimerStarted
	EventType_TimerFired

	EventType_MarkerRecorded

	EventType_SubWorkflowInitiated
	EventType_SubWorkflowStarted
	EventType_SubWorkflowCompleted
	EventType_SubWorkflowFailed
	EventType_SubWorkflowTimedOut
	EventType_SubWorkflowTerminated
	EventType_SubWorkflowCanceled
)

func (et EventType) String() string {
	switch et {
	case EventType_WorkflowExecutionStarted:
		return "WorkflowExecutionStarted"
	case EventType_WorkflowExecutionCompleted:
		return "WorkflowExecutionCompleted"
	case EventType_WorkflowExecutionFailed:
		return "WorkflowExecutionFailed"
	case EventType_WorkflowExecutionTerminated:
		return "WorkflowExecutionTerminated"

	case EventType_DecisionTaskStarted:
		return "DecisionTaskStarted"
	case EventType_DecisionTaskCompleted:
		return "DecisionTaskCompleted"

	case EventType_ActivityScheduled:
		return "ActivityScheduled"
	case EventType_ActivityStarted:
		return "ActivityStarted"
	case EventType_ActivityCompleted:
		return "ActivityCompleted"
	case EventType_ActivityFailed:
		return "ActivityFailed"
	case EventType_ActivityCanceled:
		return "ActivityCanceled"
	case EventType_ActivityTimedOut:
		return "ActivityTimedOut"

	case EventType_TimerStarted:
		return "TimerStarted"
	case EventType_TimerFired:
		return "TimerFired"

	case EventType_MarkerRecorded:
		return "MarkerRecorded"

	case EventType_SubWorkflowInitiated:
		return "SubWorkflowInitiated"
	case EventType_SubWorkflowStarted:
		return "SubWorkflowStarted"
	case EventType_SubWorkflowCompleted:
		return "SubWorkflowCompleted"
	case EventType_SubWorkflowFailed:
		return "SubWorkflowFailed"
	case EventType_SubWorkflowTimedOut:
		return "SubWorkflowTimedOut"
	case EventType_SubWorkflowTerminated:
		return "SubWorkflowTerminated"
	case EventType_SubWorkflowCanceled:
		return "SubWorkflowCanceled"

	default:
		return "Unknown"
	}
}

type Event struct {
	// ID is a unique identifier for this event
	ID string `json:"id,omitempty"`

	Type EventType `json:"t,omitempty"`

	Timestamp time.Time `json:"ts,omitempty"`

	// SequenceID is assigned by the backend when the event is appended to the history. It is
	// monotonic within one workflow execution.
	SequenceID int64 `json:"sid,omitempty"`

	// ScheduleEventID refers to the sequence ID of the event that initiated this one. For example,
	// an ActivityCompleted event carries the sequence ID of its ActivityScheduled event.
	ScheduleEventID int64 `json:"seid,omitempty"`

	// Attributes are event type specific attributes
	Attributes any `json:"attr,omitempty"`

	// VisibleAt delays delivery of the event to the workflow, used for timers.
	VisibleAt *time.Time `json:"v,omitempty"`
}

func (e Event) String() string {
	return e.Type.String() + "(" + strconv.FormatInt(e.SequenceID, 10) + ")"
}

type HistoryEventOption func(e *Event)

func ScheduleEventID(scheduleEventID int64) HistoryEventOption {
	return func(e *Event) {
		e.ScheduleEventID = scheduleEventID
	}
}

func SequenceID(sequenceID int64) HistoryEventOption {
	return func(e *Event) {
		e.SequenceID = sequenceID
	}
}

func VisibleAt(visibleAt time.Time) HistoryEventOption {
	return func(e *Event) {
		e.VisibleAt = &visibleAt
	}
}

func NewHistoryEvent(timestamp time.Time, eventType EventType, attributes any, opts ...HistoryEventOption) *Event {
	e := &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Timestamp:  timestamp,
		Attributes: attributes,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}
