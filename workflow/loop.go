package workflow

import (
	"strconv"

	"github.com/usherflow/usher/core"
)

// LoopFunc computes the items a loop iterates over from the loop input.
type LoopFunc func(input any) ([]any, error)

// BoundedLoop runs its body once per item. At most itemsPerBatch items are started per batch and
// at most maxOutstanding items are in flight. Consecutive batches are separated by a timer.
type BoundedLoop struct {
	taskBase

	body *Fragment
	fn   LoopFunc
}

var _ nestedTask = (*BoundedLoop)(nil)

type loopCursor struct {
	BatchIndex            int `json:"batchIndex"`
	NextItemIndex         int `json:"nextItemIndex"`
	PreviouslyOutstanding int `json:"previouslyOutstanding"`
}

func newBoundedLoop(name string, deps []string, body *Fragment, fn LoopFunc, opts options) *BoundedLoop {
	return &BoundedLoop{
		taskBase: newTaskBase(name, deps, opts),
		body:     body,
		fn:       fn,
	}
}

func (l *BoundedLoop) Body() *Fragment {
	return l.body
}

func (l *BoundedLoop) Evaluate(ctx *Context) Status {
	input, err := ctx.Input(l)
	if err != nil {
		return ctx.fail(l, "composing input: %v", err)
	}

	items := []any{input}
	if l.fn != nil {
		if items, err = l.fn(input); err != nil {
			return ctx.fail(l, "computing items: %v", err)
		}
	}

	tasks, err := l.body.SequencedTasks()
	if err != nil {
		return ctx.fail(l, "%v", err)
	}

	var cursor loopCursor
	if _, err := ctx.loadCursorInto(l, &cursor); err != nil {
		return ctx.fail(l, "%v", err)
	}

	// Only start new items once the timer of the current batch fired
	stopIndex := min(cursor.NextItemIndex, len(items))
	advance := ctx.resumeExecution(l, batchSuffix(cursor.BatchIndex)...)
	if advance {
		n := l.opts.itemsPerBatch
		if l.opts.maxOutstanding > 0 {
			n = min(n, max(l.opts.maxOutstanding-cursor.PreviouslyOutstanding, 0))
		}

		stopIndex = min(cursor.NextItemIndex+n, len(items))
	}

	results := make([]any, stopIndex)
	failures := make([]Failure, 0)
	notDone := 0

	for i := 0; i < stopIndex; i++ {
		child := ctx.Child(core.Join(l.name, strconv.Itoa(i)), items[i], nil)
		executeTasks(child, tasks)

		if !child.Done() {
			notDone++
			continue
		}

		if child.Failed() {
			failures = append(failures, child.Failures()...)
			continue
		}

		results[i] = child.Output()
	}

	if len(items) > stopIndex {
		if advance {
			next := loopCursor{
				BatchIndex:            cursor.BatchIndex + 1,
				NextItemIndex:         stopIndex,
				PreviouslyOutstanding: notDone,
			}

			if err := ctx.SaveCursor(l, next); err != nil {
				return ctx.fail(l, "%v", err)
			}

			ctx.StartTimer(l, l.opts.batchDelay, batchSuffix(next.BatchIndex)...)
		}

		return StatusOutstanding
	}

	if notDone > 0 {
		return StatusOutstanding
	}

	if len(failures) > 0 {
		ctx.addFailures(failures...)
		return StatusFailed
	}

	ctx.SetResult(l, results)
	return StatusComplete | StatusResolved
}

func batchSuffix(batch int) []string {
	return []string{"batch", strconv.Itoa(batch)}
}
