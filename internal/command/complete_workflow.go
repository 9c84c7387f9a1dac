package command

import (
	"github.com/benbjohnson/clock"
	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/backend/payload"
	"github.com/usherflow/usher/core"
	"github.com/usherflow/usher/internal/workflowerrors"
)

type CompleteWorkflowCommand struct {
	Result payload.Payload
}

var _ Command = (*CompleteWorkflowCommand)(nil)

func (c *CompleteWorkflowCommand) Type() string {
	return "CompleteWorkflow"
}

func (c *CompleteWorkflowCommand) Key() string {
	return ""
}

func (c *CompleteWorkflowCommand) Execute(clock clock.Clock) *CommandResult {
	return &CommandResult{
		State: core.WorkflowInstanceStateFinished,
		Events: []*history.Event{
			history.NewHistoryEvent(
				clock.Now(),
				history.EventType_WorkflowExecutionCompleted,
				&history.ExecutionCompletedAttributes{
					Result: c.Result,
				},
			),
		},
	}
}

type FailWorkflowCommand struct {
	Reason string
	Error  *workflowerrors.Error
}

var _ Command = (*FailWorkflowCommand)(nil)

func (c *FailWorkflowCommand) Type() string {
	return "FailWorkflow"
}

func (c *FailWorkflowCommand) Key() string {
	return ""
}

func (c *FailWorkflowCommand) Execute(clock clock.Clock) *CommandResult {
	return &CommandResult{
		State: core.WorkflowInstanceStateFinished,
		Events: []*history.Event{
			history.NewHistoryEvent(
				clock.Now(),
				history.EventType_WorkflowExecutionFailed,
				&history.ExecutionFailedAttributes{
					Reason: c.Reason,
					Error:  c.Error,
				},
			),
		},
	}
}
