package workflow

import (
	"time"

	"github.com/usherflow/usher/core"
)

// InputTransform reshapes the input composed for a task before the task sees it.
type InputTransform func(input any) (any, error)

type options struct {
	activityType   string
	activityTypeFn func(input any) (string, error)

	workflowTypeFn func(input any) (name, version string, err error)

	version  string
	taskList core.TaskList

	timeouts         core.ActivityTimeouts
	workflowTimeouts core.WorkflowTimeouts

	transform InputTransform

	ignoreFailures bool
	childPolicy    core.ChildPolicy

	tagList   []string
	tagListFn func(input any) ([]string, error)

	itemsPerBatch        int
	batchDelay           time.Duration
	maxOutstanding       int
	maxIterationsPerTick int
}

var defaultOptions = options{
	version:          core.DefaultVersion,
	taskList:         core.TaskListDefault,
	timeouts:         core.DefaultActivityTimeouts,
	workflowTimeouts: core.DefaultWorkflowTimeouts,
	childPolicy:      core.ChildPolicyTerminate,

	itemsPerBatch:        20,
	batchDelay:           time.Second,
	maxIterationsPerTick: 64,
}

type Option func(o *options)

func applyOptions(defaults []Option, opts []Option) options {
	o := defaultOptions

	for _, opt := range defaults {
		opt(&o)
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// WithActivityType schedules the given activity type instead of the task name.
func WithActivityType(name string) Option {
	return func(o *options) {
		o.activityType = name
	}
}

// WithActivityTypeFunc picks the activity type from the task input.
func WithActivityTypeFunc(fn func(input any) (string, error)) Option {
	return func(o *options) {
		o.activityTypeFn = fn
	}
}

// WithWorkflowTypeFunc picks the sub-workflow name and version from the task input. An empty name
// keeps the declared workflow type.
func WithWorkflowTypeFunc(fn func(input any) (name, version string, err error)) Option {
	return func(o *options) {
		o.workflowTypeFn = fn
	}
}

func WithVersion(version string) Option {
	return func(o *options) {
		o.version = version
	}
}

func WithTaskList(taskList core.TaskList) Option {
	return func(o *options) {
		o.taskList = taskList
	}
}

// WithTimeouts overrides activity timeouts. Zero durations keep the default, except for Heartbeat
// where zero disables heartbeating.
func WithTimeouts(timeouts core.ActivityTimeouts) Option {
	return func(o *options) {
		if timeouts.ScheduleToStart > 0 {
			o.timeouts.ScheduleToStart = timeouts.ScheduleToStart
		}
		if timeouts.ScheduleToClose > 0 {
			o.timeouts.ScheduleToClose = timeouts.ScheduleToClose
		}
		if timeouts.StartToClose > 0 {
			o.timeouts.StartToClose = timeouts.StartToClose
		}
		o.timeouts.Heartbeat = timeouts.Heartbeat
	}
}

// WithExecutionTimeout sets the execution start to close timeout of a sub-workflow.
func WithExecutionTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.workflowTimeouts.ExecutionStartToClose = timeout
	}
}

// WithTaskTimeout sets the decision task start to close timeout of a sub-workflow.
func WithTaskTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.workflowTimeouts.TaskStartToClose = timeout
	}
}

// WithInputTransform reshapes the composed input of a task.
func WithInputTransform(fn InputTransform) Option {
	return func(o *options) {
		o.transform = fn
	}
}

// WithIgnoreFailures resolves a sub-workflow task even if the sub-workflow failed.
func WithIgnoreFailures() Option {
	return func(o *options) {
		o.ignoreFailures = true
	}
}

func WithChildPolicy(policy core.ChildPolicy) Option {
	return func(o *options) {
		o.childPolicy = policy
	}
}

func WithTagList(tags ...string) Option {
	return func(o *options) {
		o.tagList = tags
	}
}

// WithTagListFunc computes the tag list of a sub-workflow from the task input.
func WithTagListFunc(fn func(input any) ([]string, error)) Option {
	return func(o *options) {
		o.tagListFn = fn
	}
}

// WithItemsPerBatch limits how many loop items are started per tick.
func WithItemsPerBatch(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.itemsPerBatch = n
		}
	}
}

// WithBatchDelay sets the delay between two loop batches.
func WithBatchDelay(delay time.Duration) Option {
	return func(o *options) {
		o.batchDelay = delay
	}
}

// WithMaxOutstanding limits how many loop items may be in flight. Zero means no limit.
func WithMaxOutstanding(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxOutstanding = n
		}
	}
}

// WithMaxIterationsPerTick limits how many iterations a while loop or accumulator advances in one
// tick before it continues after a timer.
func WithMaxIterationsPerTick(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxIterationsPerTick = n
		}
	}
}
