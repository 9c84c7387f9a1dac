package tracing

const (
	WorkflowInstanceID = "workflow.instance_id"
	WorkflowName       = "workflow.name"
	WorkflowVersion    = "workflow.version"

	WorkflowTaskID     = "workflow_task.id"
	WorkflowTaskEvents = "workflow_task.events"

	DecisionHorizon  = "decision.horizon"
	DecisionCommands = "decision.commands"
	DecisionVerdict  = "decision.verdict"

	ActivityTaskID = "activity_task.id"
	ActivityName   = "activity.name"

	ScheduleEventID = "schedule_event_id"
)
