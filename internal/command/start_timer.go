package command

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/core"
)

type StartTimerCommand struct {
	TimerID string
	Delay   time.Duration
}

var _ Command = (*StartTimerCommand)(nil)

func (c *StartTimerCommand) Type() string {
	return "StartTimer"
}

func (c *StartTimerCommand) Key() string {
	return c.TimerID
}

func (c *StartTimerCommand) Execute(clock clock.Clock) *CommandResult {
	now := clock.Now()

	return &CommandResult{
		State: core.WorkflowInstanceStateActive,
		Events: []*history.Event{
			history.NewHistoryEvent(
				now,
				history.EventType_TimerStarted,
				&history.TimerStartedAttributes{
					TimerID: c.TimerID,
					Delay:   c.Delay,
					At:      now.Add(c.Delay),
				},
			),
		},
	}
}
