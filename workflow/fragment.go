package workflow

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/usherflow/usher/core"
)

// Fragment is a graph of named tasks with dependencies. Workflows, loop bodies and iterations are
// all fragments.
//
// The builder methods (Activity, Decision, Loop, ...) are chainable. Definition errors such as
// duplicate names are collected and returned by Validate and SequencedTasks.
type Fragment struct {
	mu sync.Mutex

	tasks  []Task
	byName map[string]Task

	sequenced []Task
	errs      []error

	activityDefaults []Option
}

func NewFragment() *Fragment {
	return &Fragment{
		byName: map[string]Task{},
	}
}

// AddTask appends a task and invalidates the cached evaluation order.
func (f *Fragment) AddTask(t Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !core.ValidName(t.Name()) {
		return fmt.Errorf("%w: %q", ErrInvalidTaskName, t.Name())
	}

	if _, ok := f.byName[t.Name()]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTask, t.Name())
	}

	f.tasks = append(f.tasks, t)
	f.byName[t.Name()] = t
	f.sequenced = nil

	return nil
}

// Tasks returns the tasks in insertion order.
func (f *Fragment) Tasks() []Task {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.tasks)
}

// Task returns the task with the given name.
func (f *Fragment) Task(name string) (Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.byName[name]
	return t, ok
}

// SequencedTasks returns the tasks ordered so that every task follows its dependencies. The order
// is stable with respect to insertion order and cached until the next AddTask.
func (f *Fragment) SequencedTasks() ([]Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.errs) > 0 {
		return nil, errors.Join(f.errs...)
	}

	if f.sequenced != nil {
		return f.sequenced, nil
	}

	sequenced, err := f.sequence()
	if err != nil {
		return nil, err
	}

	f.sequenced = sequenced
	return sequenced, nil
}

func (f *Fragment) sequence() ([]Task, error) {
	for _, t := range f.tasks {
		for _, dep := range t.Dependencies() {
			if _, ok := f.byName[dep]; !ok {
				return nil, &MissingDependencyError{Task: t.Name(), Dependency: dep}
			}
		}
	}

	const (
		unvisited = iota
		visiting
		visited
	)

	state := make(map[string]int, len(f.tasks))
	sequenced := make([]Task, 0, len(f.tasks))
	path := make([]string, 0)

	var visit func(t Task) error
	visit = func(t Task) error {
		switch state[t.Name()] {
		case visited:
			return nil
		case visiting:
			start := slices.Index(path, t.Name())
			cycle := append(slices.Clone(path[start:]), t.Name())
			return &CyclicDependencyError{Cycle: cycle}
		}

		state[t.Name()] = visiting
		path = append(path, t.Name())

		for _, dep := range t.Dependencies() {
			if err := visit(f.byName[dep]); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		state[t.Name()] = visited
		sequenced = append(sequenced, t)

		return nil
	}

	for _, t := range f.tasks {
		if err := visit(t); err != nil {
			return nil, err
		}
	}

	return sequenced, nil
}

// Terminal returns the tasks no other task of the fragment depends on, in insertion order.
func (f *Fragment) Terminal() []Task {
	f.mu.Lock()
	defer f.mu.Unlock()

	dependedOn := map[string]bool{}
	for _, t := range f.tasks {
		for _, dep := range t.Dependencies() {
			dependedOn[dep] = true
		}
	}

	terminal := make([]Task, 0)
	for _, t := range f.tasks {
		if !dependedOn[t.Name()] {
			terminal = append(terminal, t)
		}
	}

	return terminal
}

// Validate checks the fragment and all nested fragments for definition errors.
func (f *Fragment) Validate() error {
	if _, err := f.SequencedTasks(); err != nil {
		return err
	}

	for _, t := range f.Tasks() {
		n, ok := t.(nestedTask)
		if !ok {
			continue
		}

		if n.Body() == nil {
			return fmt.Errorf("task %q: no fragment configured", t.Name())
		}

		if err := n.Body().Validate(); err != nil {
			return fmt.Errorf("fragment of task %q: %w", t.Name(), err)
		}
	}

	return nil
}

func (f *Fragment) add(t Task) *Fragment {
	if err := f.AddTask(t); err != nil {
		f.mu.Lock()
		f.errs = append(f.errs, err)
		f.mu.Unlock()
	}

	return f
}

// ActivityDefaults sets options applied to every activity added afterwards, before the activity's
// own options.
func (f *Fragment) ActivityDefaults(opts ...Option) *Fragment {
	f.activityDefaults = opts
	return f
}

// Activity adds a Step scheduling an activity. The activity type defaults to the task name.
func (f *Fragment) Activity(name string, deps []string, opts ...Option) *Fragment {
	return f.add(newStep(name, deps, applyOptions(f.activityDefaults, opts)))
}

// SubWorkflow adds a task starting the given workflow as a sub-workflow.
func (f *Fragment) SubWorkflow(name string, deps []string, workflowName, workflowVersion string, opts ...Option) *Fragment {
	return f.add(newSubWorkflow(name, deps, workflowName, workflowVersion, applyOptions(nil, opts)))
}

// Decision adds a Branch. Dependents of a branch only run if fn returns true. A nil fn is always
// true.
func (f *Fragment) Decision(name string, deps []string, fn DecisionFunc) *Fragment {
	return f.add(newBranch(name, deps, fn))
}

// Transform adds a task computing its result from its input.
func (f *Fragment) Transform(name string, deps []string, fn TransformFunc, opts ...Option) *Fragment {
	return f.add(newTransform(name, deps, fn, applyOptions(nil, opts)))
}

// Result adds a task replacing the result of the whole fragment.
func (f *Fragment) Result(name string, deps []string, fn TransformFunc, opts ...Option) *Fragment {
	return f.add(newResultOverride(name, deps, fn, applyOptions(nil, opts)))
}

// Variable adds a task binding a run-wide variable named like the task.
func (f *Fragment) Variable(name string, deps []string, fn TransformFunc, opts ...Option) *Fragment {
	return f.add(newVariable(name, deps, fn, applyOptions(nil, opts)))
}

// Terminate adds a Stop task ending the workflow once its dependencies are resolved.
func (f *Fragment) Terminate(name string, deps []string) *Fragment {
	return f.add(newStop(name, deps))
}

// Loop adds a BoundedLoop running body once per item returned by fn. A nil fn runs body once with
// the task input as item.
func (f *Fragment) Loop(name string, deps []string, body *Fragment, fn LoopFunc, opts ...Option) *Fragment {
	return f.add(newBoundedLoop(name, deps, body, fn, applyOptions(nil, opts)))
}

// WhileLoop adds a loop running body sequentially until fn returns true for the output of an
// iteration.
func (f *Fragment) WhileLoop(name string, deps []string, body *Fragment, fn DoneFunc, opts ...Option) *Fragment {
	return f.add(newWhileLoop(name, deps, body, fn, applyOptions(nil, opts)))
}

// Accumulator adds a loop running body sequentially and concatenating the items fn extracts from
// every iteration, until an iteration yields no items.
func (f *Fragment) Accumulator(name string, deps []string, body *Fragment, fn ResultsFunc, opts ...Option) *Fragment {
	return f.add(newAccumulator(name, deps, body, fn, applyOptions(nil, opts)))
}
