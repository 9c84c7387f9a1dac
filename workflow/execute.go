package workflow

import "github.com/usherflow/usher/internal/log"

// Execute evaluates all tasks of f against ctx in dependency order.
func Execute(f *Fragment, ctx *Context) error {
	tasks, err := f.SequencedTasks()
	if err != nil {
		return err
	}

	executeTasks(ctx, tasks)

	return nil
}

func executeTasks(ctx *Context, tasks []Task) {
	logger := ctx.Logger()

	for _, t := range tasks {
		if !ctx.IsResolved(t) {
			ctx.RecordStatus(t, StatusPending)
			continue
		}

		failures := ctx.failureCount()

		s := t.Evaluate(ctx)
		if s.Has(StatusFailed) && ctx.failureCount() == failures {
			ctx.fail(t, "task failed")
		}

		logger.Debug("Evaluated task",
			log.TaskNameKey, t.Name(),
			log.CorrelationIDKey, ctx.CorrelationID(t),
			log.StatusKey, s.String(),
		)

		ctx.RecordStatus(t, s)
	}
}
