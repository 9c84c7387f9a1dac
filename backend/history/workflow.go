package history

import (
	"github.com/usherflow/usher/backend/payload"
	"github.com/usherflow/usher/core"
	"github.com/usherflow/usher/internal/workflowerrors"
)

type ExecutionStartedAttributes struct {
	Name string `json:"name,omitempty"`

	Version string `json:"version,omitempty"`

	Input payload.Payload `json:"input,omitempty"`

	TagList []string `json:"tag_list,omitempty"`

	ChildPolicy core.ChildPolicy `json:"child_policy,omitempty"`

	Timeouts core.WorkflowTimeouts `json:"timeouts,omitempty"`
}

type ExecutionCompletedAttributes struct {
	Result payload.Payload `json:"result,omitempty"`
}

type ExecutionFailedAttributes struct {
	Reason string `json:"reason,omitempty"`

	Error *workflowerrors.Error `json:"error,omitempty"`
}

type ExecutionTerminatedAttributes struct {
	Reason string `json:"reason,omitempty"`
}

type DecisionTaskStartedAttributes struct {
	Identity string `json:"identity,omitempty"`
}

type DecisionTaskCompletedAttributes struct{}
