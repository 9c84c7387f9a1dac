package executor

import (
	"context"

	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/core"
)

// HistoryCache keeps the history of workflow instances between decision tasks, so only the tail
// of the history has to be fetched for the next task.
type HistoryCache interface {
	Store(ctx context.Context, instance *core.WorkflowInstance, events []*history.Event) error
	Evict(ctx context.Context, instance *core.WorkflowInstance) error
	Get(ctx context.Context, instance *core.WorkflowInstance) ([]*history.Event, bool, error)
	StartEviction(ctx context.Context)
}
