package history

import (
	"github.com/usherflow/usher/backend/payload"
	"github.com/usherflow/usher/core"
	"github.com/usherflow/usher/internal/workflowerrors"
)

type SubWorkflowInitiatedAttributes struct {
	// Control is the correlation id of the initiating task
	Control string `json:"control,omitempty"`

	SubWorkflowInstance *core.WorkflowInstance `json:"sub_workflow_instance,omitempty"`

	Name string `json:"name,omitempty"`

	Version string `json:"version,omitempty"`

	Input payload.Payload `json:"input,omitempty"`

	TagList []string `json:"tag_list,omitempty"`

	ChildPolicy core.ChildPolicy `json:"child_policy,omitempty"`

	Timeouts core.WorkflowTimeouts `json:"timeouts,omitempty"`
}

type SubWorkflowStartedAttributes struct{}

type SubWorkflowCompletedAttributes struct {
	Result payload.Payload `json:"result,omitempty"`
}

type SubWorkflowFailedAttributes struct {
	Reason string `json:"reason,omitempty"`

	Error *workflowerrors.Error `json:"error,omitempty"`
}

type SubWorkflowTimedOutAttributes struct{}

type SubWorkflowTerminatedAttributes struct{}

type SubWorkflowCanceledAttributes struct{}
