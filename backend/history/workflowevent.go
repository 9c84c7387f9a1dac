package history

import "github.com/usherflow/usher/core"

// WorkflowEvent is an event addressed to a specific workflow instance, for example the
// completion of a sub-workflow delivered to its parent.
type WorkflowEvent struct {
	WorkflowInstance *core.WorkflowInstance

	HistoryEvent *Event
}

func EventsByWorkflowInstance(events []*WorkflowEvent) map[core.WorkflowInstance][]*WorkflowEvent {
	groupedEvents := make(map[core.WorkflowInstance][]*WorkflowEvent)

	for _, m := range events {
		instance := *m.WorkflowInstance

		groupedEvents[instance] = append(groupedEvents[instance], m)
	}

	return groupedEvents
}
