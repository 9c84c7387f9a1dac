package command

import (
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/backend/payload"
	"github.com/usherflow/usher/core"
)

type ScheduleSubWorkflowCommand struct {
	// Control is the correlation id of the initiating task.
	Control string

	Name    string
	Version string
	Input   payload.Payload
	TagList []string

	ChildPolicy core.ChildPolicy
	Timeouts    core.WorkflowTimeouts
}

var _ Command = (*ScheduleSubWorkflowCommand)(nil)

func (c *ScheduleSubWorkflowCommand) Type() string {
	return "ScheduleSubWorkflow"
}

func (c *ScheduleSubWorkflowCommand) Key() string {
	return c.Control
}

// Execute records the initiation. The backend links the sub-workflow instance to its parent once
// the event has a sequence ID.
func (c *ScheduleSubWorkflowCommand) Execute(clock clock.Clock) *CommandResult {
	return &CommandResult{
		State: core.WorkflowInstanceStateActive,
		Events: []*history.Event{
			history.NewHistoryEvent(
				clock.Now(),
				history.EventType_SubWorkflowInitiated,
				&history.SubWorkflowInitiatedAttributes{
					Control:             c.Control,
					SubWorkflowInstance: core.NewWorkflowInstance(uuid.NewString(), uuid.NewString()),
					Name:                c.Name,
					Version:             c.Version,
					Input:               c.Input,
					TagList:             c.TagList,
					ChildPolicy:         c.ChildPolicy,
					Timeouts:            c.Timeouts,
				},
			),
		},
	}
}
