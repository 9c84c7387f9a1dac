package metrickeys

const (
	Prefix = "workflows."

	// Workflows
	WorkflowInstanceCreated  = Prefix + "workflow.created"
	WorkflowInstanceFinished = Prefix + "workflow.finished"

	WorkflowTaskProcessed = Prefix + "workflow.task.processed"
	WorkflowTaskDelay     = Prefix + "workflow.task.time_in_queue"

	// Decision ticks
	DecisionTick     = Prefix + "decision.tick"
	DecisionCommands = Prefix + "decision.commands"
	DecisionVerdict  = Prefix + "decision.verdict"

	HistoryCacheSize     = Prefix + "history.cache.size"
	HistoryCacheHit      = Prefix + "history.cache.hit"
	HistoryCacheMiss     = Prefix + "history.cache.miss"
	HistoryCacheEviction = Prefix + "history.cache.eviction"

	// Activities
	ActivityTaskProcessed = Prefix + "activity.task.processed"
	ActivityTaskDelay     = Prefix + "activity.task.time_in_queue"
)

// Tag names
const (
	// Backend being used
	Backend = "backend"

	// Reason for evicting an entry from the history cache
	EvictionReason = "reason"

	SubWorkflow = "subworkflow"

	WorkflowName = "workflow"
	ActivityName = "activity"
	Verdict      = "verdict"
	Result       = "result"
)
