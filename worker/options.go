package worker

import (
	"time"

	"github.com/usherflow/usher/core"
	"github.com/usherflow/usher/workflow/executor"
)

type Options struct {
	WorkflowWorkerOptions
	ActivityWorkerOptions

	// PollBackoffInitialInterval is the first delay between polls after a polling error. Defaults
	// to 100ms.
	PollBackoffInitialInterval time.Duration

	// PollBackoffMaxInterval bounds the delay between polls after repeated polling errors.
	// Defaults to 30 seconds.
	PollBackoffMaxInterval time.Duration
}

type WorkflowWorkerOptions struct {
	// WorkflowPollers is the number of pollers to start. Defaults to 2.
	WorkflowPollers int

	// MaxParallelWorkflowTasks determines the maximum number of concurrent decision tasks processed
	// by the worker. The default is 0 which is no limit.
	MaxParallelWorkflowTasks int

	// WorkflowPollingInterval is the interval between polling for new decision tasks when none was
	// available. Defaults to 200ms.
	WorkflowPollingInterval time.Duration

	// WorkflowHistoryCacheSize is the max number of instance histories kept between decision
	// tasks. Defaults to 128.
	WorkflowHistoryCacheSize int

	// WorkflowHistoryCacheTTL is the max time a history is kept without being used. Defaults to
	// 10 seconds.
	WorkflowHistoryCacheTTL time.Duration

	// WorkflowHistoryCache is the history cache to use. If nil, a default in-memory cache is used.
	WorkflowHistoryCache executor.HistoryCache
}

type ActivityWorkerOptions struct {
	// ActivityPollers is the number of pollers to start. Defaults to 2.
	ActivityPollers int

	// MaxParallelActivityTasks determines the maximum number of concurrent activity tasks processed
	// by the worker. The default is 0 which is no limit.
	MaxParallelActivityTasks int

	// ActivityPollingInterval is the interval between polling for new activity tasks when none was
	// available. Defaults to 200ms.
	ActivityPollingInterval time.Duration

	// ActivityTaskLists are the task lists activities are leased from. Defaults to the default
	// task list.
	ActivityTaskLists []core.TaskList
}

var DefaultOptions = Options{
	WorkflowWorkerOptions: WorkflowWorkerOptions{
		WorkflowPollers:          2,
		WorkflowPollingInterval:  200 * time.Millisecond,
		MaxParallelWorkflowTasks: 0,

		WorkflowHistoryCacheSize: 128,
		WorkflowHistoryCacheTTL:  time.Second * 10,
		WorkflowHistoryCache:     nil,
	},

	ActivityWorkerOptions: ActivityWorkerOptions{
		ActivityPollers:          2,
		ActivityPollingInterval:  200 * time.Millisecond,
		MaxParallelActivityTasks: 0,
		ActivityTaskLists:        []core.TaskList{core.TaskListDefault},
	},

	PollBackoffInitialInterval: 100 * time.Millisecond,
	PollBackoffMaxInterval:     30 * time.Second,
}
