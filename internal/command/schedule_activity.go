package command

import (
	"github.com/benbjohnson/clock"
	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/backend/payload"
	"github.com/usherflow/usher/core"
)

type ScheduleActivityCommand struct {
	// ActivityID is the correlation id of the scheduling task.
	ActivityID string

	Name    string
	Version string
	Input   payload.Payload

	Timeouts core.ActivityTimeouts
	TaskList core.TaskList
}

var _ Command = (*ScheduleActivityCommand)(nil)

func (c *ScheduleActivityCommand) Type() string {
	return "ScheduleActivity"
}

func (c *ScheduleActivityCommand) Key() string {
	return c.ActivityID
}

func (c *ScheduleActivityCommand) Execute(clock clock.Clock) *CommandResult {
	return &CommandResult{
		State: core.WorkflowInstanceStateActive,
		Events: []*history.Event{
			history.NewHistoryEvent(
				clock.Now(),
				history.EventType_ActivityScheduled,
				&history.ActivityScheduledAttributes{
					ActivityID: c.ActivityID,
					Name:       c.Name,
					Version:    c.Version,
					TaskList:   c.TaskList,
					Input:      c.Input,
					Timeouts:   c.Timeouts,
				},
			),
		},
	}
}
