package workflow

import (
	"strconv"

	"github.com/usherflow/usher/core"
	"github.com/usherflow/usher/internal/log"
)

// ResultsFunc extracts the items of one accumulator iteration from its output.
type ResultsFunc func(output any) ([]any, error)

// PreviousResultVariable is the local variable holding the items of the previous accumulator
// iteration.
const PreviousResultVariable = "previousResult"

// Accumulator runs its body iteration after iteration and concatenates the items extracted from
// every iteration. It ends with the first iteration yielding no items.
type Accumulator struct {
	taskBase

	body *Fragment
	fn   ResultsFunc
}

var _ nestedTask = (*Accumulator)(nil)

func newAccumulator(name string, deps []string, body *Fragment, fn ResultsFunc, opts options) *Accumulator {
	return &Accumulator{
		taskBase: newTaskBase(name, deps, opts),
		body:     body,
		fn:       fn,
	}
}

func (a *Accumulator) Body() *Fragment {
	return a.body
}

func (a *Accumulator) Evaluate(ctx *Context) Status {
	if a.fn == nil {
		return ctx.fail(a, "%v", errNoFunction)
	}

	input, err := ctx.Input(a)
	if err != nil {
		return ctx.fail(a, "composing input: %v", err)
	}

	tasks, err := a.body.SequencedTasks()
	if err != nil {
		return ctx.fail(a, "%v", err)
	}

	var cursor iterationCursor
	if _, err := ctx.loadCursorInto(a, &cursor); err != nil {
		return ctx.fail(a, "%v", err)
	}

	var (
		index    = cursor.CurrentIndex
		results  = make([]any, 0)
		previous any

		outstanding bool
		resolving   bool
		capped      bool
	)

	// Earlier iterations are evaluated again, they may straddle ticks
	for i := 0; i <= index; i++ {
		child := ctx.Child(
			core.Join(a.name, strconv.Itoa(i)),
			input,
			map[string]any{PreviousResultVariable: previous},
		)
		executeTasks(child, tasks)

		if child.Failed() {
			ctx.addFailures(child.Failures()...)
			return StatusFailed
		}

		if !child.Done() {
			outstanding = true
			previous = []any{}
			continue
		}

		items, err := a.fn(child.Output())
		if err != nil {
			return ctx.fail(a, "extracting results of iteration %d: %v", i, err)
		}

		if len(items) == 0 {
			resolving = true
			previous = []any{}
			continue
		}

		results = append(results, items...)
		previous = items

		if i == index && !resolving {
			if index-cursor.CurrentIndex >= a.opts.maxIterationsPerTick {
				capped = true
				break
			}

			index++
		}
	}

	if outstanding && resolving {
		ctx.Logger().Error("Accumulator is outstanding and resolving at the same time",
			log.TaskNameKey, a.name,
			log.IterationKey, index,
		)

		return StatusOutstanding
	}

	if index != cursor.CurrentIndex {
		if err := ctx.SaveCursor(a, iterationCursor{CurrentIndex: index}); err != nil {
			return ctx.fail(a, "%v", err)
		}
	}

	if resolving {
		ctx.SetResult(a, results)
		return StatusComplete | StatusResolved
	}

	if capped {
		ctx.Logger().Debug("Continuing accumulator in next tick", log.TaskNameKey, a.name, log.IterationKey, index)
		ctx.StartTimer(a, 0, continueSuffix(index)...)
	}

	return StatusOutstanding
}
