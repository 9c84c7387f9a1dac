package workflow

import (
	"strconv"

	"github.com/usherflow/usher/core"
	"github.com/usherflow/usher/internal/log"
)

// DoneFunc decides from the output of an iteration whether a while loop is done.
type DoneFunc func(output any) (bool, error)

// WhileLoop runs its body sequentially, one iteration after the other, until the done function
// returns true for the output of an iteration. Without a done function the loop ends after the
// first iteration.
type WhileLoop struct {
	taskBase

	body *Fragment
	fn   DoneFunc
}

var _ nestedTask = (*WhileLoop)(nil)

type iterationCursor struct {
	CurrentIndex int `json:"currentIndex"`
}

func newWhileLoop(name string, deps []string, body *Fragment, fn DoneFunc, opts options) *WhileLoop {
	return &WhileLoop{
		taskBase: newTaskBase(name, deps, opts),
		body:     body,
		fn:       fn,
	}
}

func (w *WhileLoop) Body() *Fragment {
	return w.body
}

func (w *WhileLoop) Evaluate(ctx *Context) Status {
	input, err := ctx.Input(w)
	if err != nil {
		return ctx.fail(w, "composing input: %v", err)
	}

	tasks, err := w.body.SequencedTasks()
	if err != nil {
		return ctx.fail(w, "%v", err)
	}

	var cursor iterationCursor
	if _, err := ctx.loadCursorInto(w, &cursor); err != nil {
		return ctx.fail(w, "%v", err)
	}

	index := cursor.CurrentIndex
	status := StatusOutstanding

	for advanced := 0; ; {
		child := ctx.Child(core.Join(w.name, strconv.Itoa(index)), input, nil)
		executeTasks(child, tasks)

		if child.Failed() {
			ctx.addFailures(child.Failures()...)
			return StatusFailed
		}

		if !child.Done() {
			break
		}

		output := child.Output()

		done := true
		if w.fn != nil {
			if done, err = w.fn(output); err != nil {
				return ctx.fail(w, "evaluating done function: %v", err)
			}
		}

		if done {
			ctx.SetResult(w, output)
			status = StatusComplete | StatusResolved
			break
		}

		index++
		advanced++

		if advanced >= w.opts.maxIterationsPerTick {
			ctx.Logger().Debug("Continuing loop in next tick", log.TaskNameKey, w.name, log.IterationKey, index)
			ctx.StartTimer(w, 0, continueSuffix(index)...)
			break
		}
	}

	if index != cursor.CurrentIndex {
		if err := ctx.SaveCursor(w, iterationCursor{CurrentIndex: index}); err != nil {
			return ctx.fail(w, "%v", err)
		}
	}

	return status
}

func continueSuffix(index int) []string {
	return []string{"continue", strconv.Itoa(index)}
}
