package command

import (
	"github.com/benbjohnson/clock"
	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/core"
)

// Command is one decision emitted by a tick.
type Command interface {
	// Type names the command variant.
	Type() string

	// Key identifies the command within a batch. Commands of the same type and key are
	// de-duplicated.
	Key() string

	// Execute turns the command into the history events recorded for it.
	Execute(clock clock.Clock) *CommandResult
}

type CommandResult struct {
	// State is the state of the workflow instance after the command is applied.
	State core.WorkflowInstanceState

	Events []*history.Event
}

// ToEvents executes all commands in order and returns the resulting events and instance state.
func ToEvents(clock clock.Clock, commands []Command) ([]*history.Event, core.WorkflowInstanceState) {
	state := core.WorkflowInstanceStateActive
	events := make([]*history.Event, 0, len(commands))

	for _, c := range commands {
		r := c.Execute(clock)
		if r == nil {
			continue
		}

		if r.State > state {
			state = r.State
		}

		events = append(events, r.Events...)
	}

	return events, state
}
