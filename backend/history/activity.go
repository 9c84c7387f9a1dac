package history

import (
	"github.com/usherflow/usher/backend/payload"
	"github.com/usherflow/usher/core"
	"github.com/usherflow/usher/internal/workflowerrors"
)

type ActivityScheduledAttributes struct {
	// ActivityID is the correlation id of the scheduling task
	ActivityID string `json:"activity_id,omitempty"`

	Name string `json:"name,omitempty"`

	Version string `json:"version,omitempty"`

	TaskList core.TaskList `json:"task_list,omitempty"`

	Input payload.Payload `json:"input,omitempty"`

	Timeouts core.ActivityTimeouts `json:"timeouts,omitempty"`
}

type ActivityStartedAttributes struct {
	Identity string `json:"identity,omitempty"`
}

type ActivityCompletedAttributes struct {
	Result payload.Payload `json:"result,omitempty"`
}

type ActivityFailedAttributes struct {
	Reason string `json:"reason,omitempty"`

	Error *workflowerrors.Error `json:"error,omitempty"`
}

type ActivityCanceledAttributes struct{}

type ActivityTimedOutAttributes struct {
	TimeoutType string `json:"timeout_type,omitempty"`
}
