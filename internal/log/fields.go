package log

const (
	NamespaceKey = "workflows"

	InstanceIDKey      = NamespaceKey + ".instance.id"
	ExecutionIDKey     = NamespaceKey + ".execution.id"
	WorkflowNameKey    = NamespaceKey + ".workflow.name"
	WorkflowVersionKey = NamespaceKey + ".workflow.version"

	ActivityIDKey      = NamespaceKey + ".activity.id"
	ActivityNameKey    = NamespaceKey + ".activity.name"
	ActivityVersionKey = NamespaceKey + ".activity.version"

	EventTypeKey       = NamespaceKey + ".event.type"
	EventIDKey         = NamespaceKey + ".event.id"
	SeqIDKey           = NamespaceKey + ".seq_id"
	ScheduleEventIDKey = NamespaceKey + ".event.schedule_event_id"

	TaskIDKey             = NamespaceKey + ".task.id"
	TaskLastSequenceIDKey = NamespaceKey + ".task.last_sequence_id"
	NewEventsKey          = NamespaceKey + ".task.new_events"

	// Decision engine
	HorizonKey       = NamespaceKey + ".decision.horizon"
	CommandsKey      = NamespaceKey + ".decision.commands"
	VerdictKey       = NamespaceKey + ".decision.verdict"
	TaskNameKey      = NamespaceKey + ".decision.task"
	CorrelationIDKey = NamespaceKey + ".decision.correlation_id"
	StatusKey        = NamespaceKey + ".decision.status"
	NamespacePathKey = NamespaceKey + ".decision.namespace"
	IterationKey     = NamespaceKey + ".decision.iteration"
	OrphansKey       = NamespaceKey + ".decision.orphans"

	AttemptKey  = NamespaceKey + ".attempt"
	DurationKey = NamespaceKey + ".duration_ms"

	// AtKey is the time at which a timer is scheduled to fire
	AtKey = NamespaceKey + ".timer.at"
)
