package core

import "time"

// ActivityTimeouts are declared with every scheduled activity. The service and the activity runtime
// enforce them, the decision engine only observes the resulting TimedOut events. A zero
// Heartbeat disables heartbeating.
type ActivityTimeouts struct {
	ScheduleToStart time.Duration `json:"schedule_to_start,omitempty"`
	ScheduleToClose time.Duration `json:"schedule_to_close,omitempty"`
	StartToClose    time.Duration `json:"start_to_close,omitempty"`
	Heartbeat       time.Duration `json:"heartbeat,omitempty"`
}

var DefaultActivityTimeouts = ActivityTimeouts{
	ScheduleToStart: 30 * time.Second,
	ScheduleToClose: 90 * time.Second,
	StartToClose:    60 * time.Second,
}

// ChildPolicy decides what happens to a sub-workflow when its parent closes.
type ChildPolicy string

const (
	ChildPolicyTerminate     ChildPolicy = "TERMINATE"
	ChildPolicyRequestCancel ChildPolicy = "REQUEST_CANCEL"
	ChildPolicyAbandon       ChildPolicy = "ABANDON"
)

// WorkflowTimeouts are declared with every started sub-workflow.
type WorkflowTimeouts struct {
	TaskStartToClose      time.Duration `json:"task_start_to_close,omitempty"`
	ExecutionStartToClose time.Duration `json:"execution_start_to_close,omitempty"`
}

var DefaultWorkflowTimeouts = WorkflowTimeouts{
	TaskStartToClose:      300 * time.Second,
	ExecutionStartToClose: 1800 * time.Second,
}

// DefaultVersion is used for activities and sub-workflows declared without a version.
const DefaultVersion = "1.0.0"
