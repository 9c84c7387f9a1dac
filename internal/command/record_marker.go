package command

import (
	"github.com/benbjohnson/clock"
	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/backend/payload"
	"github.com/usherflow/usher/core"
)

type RecordMarkerCommand struct {
	Name    string
	Details payload.Payload
}

var _ Command = (*RecordMarkerCommand)(nil)

func (c *RecordMarkerCommand) Type() string {
	return "RecordMarker"
}

func (c *RecordMarkerCommand) Key() string {
	return c.Name
}

func (c *RecordMarkerCommand) Execute(clock clock.Clock) *CommandResult {
	return &CommandResult{
		State: core.WorkflowInstanceStateActive,
		Events: []*history.Event{
			history.NewHistoryEvent(
				clock.Now(),
				history.EventType_MarkerRecorded,
				&history.MarkerRecordedAttributes{
					Name:    c.Name,
					Details: c.Details,
				},
			),
		},
	}
}
