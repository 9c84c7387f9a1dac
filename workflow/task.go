package workflow

import "slices"

// Task is one node of a fragment. The set of task kinds is fixed: Step, SubWorkflow, Branch,
// Transform, ResultOverride, Variable, Stop, BoundedLoop, WhileLoop and Accumulator.
type Task interface {
	Name() string

	Dependencies() []string

	// Evaluate classifies the task against the current tick and may emit commands through ctx. It
	// is only called once all dependencies are resolved.
	Evaluate(ctx *Context) Status

	task() *taskBase
}

type taskBase struct {
	name string
	deps []string
	opts options
}

func newTaskBase(name string, deps []string, opts options) taskBase {
	return taskBase{
		name: name,
		deps: slices.Clone(deps),
		opts: opts,
	}
}

func (t *taskBase) Name() string {
	return t.name
}

func (t *taskBase) Dependencies() []string {
	return slices.Clone(t.deps)
}

func (t *taskBase) task() *taskBase {
	return t
}

// nestedTask is implemented by tasks evaluating a fragment of their own.
type nestedTask interface {
	Task

	Body() *Fragment
}
