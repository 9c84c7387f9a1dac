package workflow

import (
	"bytes"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/usherflow/usher/backend/converter"
	"github.com/usherflow/usher/backend/payload"
	"github.com/usherflow/usher/core"
	"github.com/usherflow/usher/internal/command"
	"github.com/usherflow/usher/internal/log"
	"github.com/usherflow/usher/internal/workflowstate"
)

const (
	inputWorkflowInputKey = "_workflowInput"
	inputStateKey         = "_state"
	inputVariablesKey     = "_variables"
)

// tick is shared by the root context and all child contexts of one evaluation.
type tick struct {
	snapshot  *workflowstate.Snapshot
	batch     *command.Batch
	logger    *slog.Logger
	converter converter.Converter

	mu sync.Mutex

	// variables written during this tick, they shadow the bindings of the snapshot.
	variables map[string]any
}

// Context is the execution context of one fragment in one namespace for one tick. Results and
// statuses are rebuilt every tick from the snapshot, only cursors and variables persist through
// markers.
type Context struct {
	tick *tick

	namespace      string
	workflowInput  any
	localVariables map[string]any

	mu       sync.Mutex
	statuses map[string]Status
	results  map[string]any

	output    any
	hasOutput bool

	failures []Failure
}

// NewContext creates the root context of a tick. Commands emitted by the context and all of its
// children are collected in batch.
func NewContext(
	snapshot *workflowstate.Snapshot,
	batch *command.Batch,
	logger *slog.Logger,
	namespace string,
	workflowInput any,
	localVariables map[string]any,
) *Context {
	if logger == nil {
		logger = slog.Default()
	}

	t := &tick{
		snapshot:  snapshot,
		batch:     batch,
		logger:    logger,
		converter: converter.DefaultConverter,
		variables: map[string]any{},
	}

	return newContext(t, namespace, workflowInput, localVariables)
}

func newContext(t *tick, namespace string, workflowInput any, localVariables map[string]any) *Context {
	return &Context{
		tick:           t,
		namespace:      namespace,
		workflowInput:  workflowInput,
		localVariables: maps.Clone(localVariables),
		statuses:       map[string]Status{},
		results:        map[string]any{},
	}
}

// Child returns a context for a nested fragment instance. The child shares the snapshot and the
// command batch, its namespace is the parent's namespace joined with segment.
func (c *Context) Child(segment string, workflowInput any, localVariables map[string]any) *Context {
	return newContext(c.tick, core.Join(c.namespace, segment), workflowInput, localVariables)
}

func (c *Context) Namespace() string {
	return c.namespace
}

func (c *Context) Logger() *slog.Logger {
	if c.namespace == "" {
		return c.tick.logger
	}

	return c.tick.logger.With(slog.String(log.NamespacePathKey, c.namespace))
}

// CorrelationID returns the namespace qualified id of task.
func (c *Context) CorrelationID(t Task) string {
	return core.Join(c.namespace, t.Name())
}

// Input composes the input of task from the workflow input, the task's cursor, the current
// variables, and the results of its dependencies. The task's input transform is applied last.
func (c *Context) Input(t Task) (any, error) {
	input := map[string]any{
		inputWorkflowInputKey: c.workflowInput,
		inputVariablesKey:     c.Variables(),
	}

	state, err := c.LoadCursor(t)
	if err != nil {
		return nil, err
	}

	if state != nil {
		input[inputStateKey] = state
	}

	c.mu.Lock()
	for _, dep := range t.Dependencies() {
		input[dep] = c.results[dep]
	}
	c.mu.Unlock()

	if transform := t.task().opts.transform; transform != nil {
		return transform(input)
	}

	return input, nil
}

// IsResolved reports whether all dependencies of task are resolved in this tick.
func (c *Context) IsResolved(t Task) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, dep := range t.Dependencies() {
		if !c.statuses[dep].Has(StatusResolved) {
			return false
		}
	}

	return true
}

func (c *Context) RecordStatus(t Task, s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.statuses[t.Name()] = s
}

func (c *Context) Status(name string) (Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.statuses[name]
	return s, ok
}

func (c *Context) anyStatus(flags Status) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.statuses {
		if s.Has(flags) {
			return true
		}
	}

	return false
}

func (c *Context) AnyFailed() bool {
	return c.anyStatus(StatusFailed)
}

func (c *Context) AnyTerminate() bool {
	return c.anyStatus(StatusTerminate)
}

// AllComplete reports whether every evaluated task is complete. It is true for an empty fragment.
func (c *Context) AllComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.statuses {
		if !s.Has(StatusComplete) {
			return false
		}
	}

	return true
}

// Done reports whether the fragment instance has nothing left to do.
func (c *Context) Done() bool {
	return c.AnyTerminate() || c.AnyFailed() || c.AllComplete()
}

func (c *Context) Success() bool {
	return !c.AnyFailed() && c.AllComplete()
}

func (c *Context) Failed() bool {
	return c.AnyFailed()
}

func (c *Context) Terminated() bool {
	return !c.AnyFailed() && c.AnyTerminate()
}

// fail records a failure for task and returns the failed status.
func (c *Context) fail(t Task, format string, args ...any) Status {
	c.addFailures(Failure{
		Task:   c.CorrelationID(t),
		Reason: fmt.Sprintf(format, args...),
	})

	return StatusFailed
}

func (c *Context) addFailures(failures ...Failure) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failures = append(c.failures, failures...)
}

func (c *Context) failureCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.failures)
}

// Failures returns the failures recorded in this context, including those of nested fragments.
func (c *Context) Failures() []Failure {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.failures)
}

func (c *Context) SetResult(t Task, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results[t.Name()] = v
}

func (c *Context) Result(name string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.results[name]
	return v, ok
}

// Results returns the results computed in this tick by task name.
func (c *Context) Results() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	return maps.Clone(c.results)
}

// SetOutput replaces the output of the fragment instance.
func (c *Context) SetOutput(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.output = v
	c.hasOutput = true
}

// Override returns the output set through SetOutput, if any.
func (c *Context) Override() (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.output, c.hasOutput
}

// Output is the overridden output of the fragment instance or, without an override, all results by
// task name.
func (c *Context) Output() any {
	if v, ok := c.Override(); ok {
		return v
	}

	return c.Results()
}

// Variables returns the run-wide variables merged with the local variables of this context.
// Writes of the current tick shadow the bindings from history.
func (c *Context) Variables() map[string]any {
	vars := c.tick.snapshot.Variables()

	c.tick.mu.Lock()
	maps.Copy(vars, c.tick.variables)
	c.tick.mu.Unlock()

	maps.Copy(vars, c.localVariables)

	return vars
}

// SetVariable binds a run-wide variable. No marker is recorded if the variable is already bound to
// an equal value.
func (c *Context) SetVariable(name string, v any) error {
	p, err := c.canonical(v)
	if err != nil {
		return fmt.Errorf("encoding variable %q: %w", name, err)
	}

	c.tick.mu.Lock()
	current, ok := c.tick.variables[name]
	c.tick.mu.Unlock()

	if !ok {
		current, ok = c.tick.snapshot.Variables()[name]
	}

	if ok {
		cp, err := c.canonical(current)
		if err == nil && bytes.Equal(cp, p) {
			return nil
		}
	}

	c.tick.mu.Lock()
	c.tick.variables[name] = v
	c.tick.mu.Unlock()

	c.tick.batch.Add(&command.RecordMarkerCommand{
		Name:    core.VariableMarker(name),
		Details: p,
	})

	return nil
}

// canonical encodes v so that equal JSON values produce equal bytes.
func (c *Context) canonical(v any) (payload.Payload, error) {
	p, err := c.tick.converter.To(v)
	if err != nil {
		return nil, err
	}

	generic, err := converter.Value(c.tick.converter, p)
	if err != nil {
		return nil, err
	}

	return c.tick.converter.To(generic)
}

func (c *Context) cursorMarker(t Task) string {
	return core.Derive(c.CorrelationID(t), "cursor")
}

func (c *Context) cursorPayload(t Task) (payload.Payload, bool) {
	name := c.cursorMarker(t)

	if m, ok := c.tick.batch.Marker(name); ok {
		return m.Details, true
	}

	return c.tick.snapshot.Marker(name)
}

// LoadCursor returns the decoded cursor of task, or nil if none was saved.
func (c *Context) LoadCursor(t Task) (any, error) {
	p, ok := c.cursorPayload(t)
	if !ok {
		return nil, nil
	}

	return converter.Value(c.tick.converter, p)
}

func (c *Context) loadCursorInto(t Task, vptr any) (bool, error) {
	p, ok := c.cursorPayload(t)
	if !ok || p.Empty() {
		return false, nil
	}

	if err := c.tick.converter.From(p, vptr); err != nil {
		return false, fmt.Errorf("decoding cursor of %q: %w", c.CorrelationID(t), err)
	}

	return true, nil
}

// SaveCursor persists the cursor of task through a marker. Unchanged cursors are not recorded
// again.
func (c *Context) SaveCursor(t Task, v any) error {
	p, err := c.tick.converter.To(v)
	if err != nil {
		return fmt.Errorf("encoding cursor of %q: %w", c.CorrelationID(t), err)
	}

	if current, ok := c.cursorPayload(t); ok && current.Equal(p) {
		return nil
	}

	c.tick.batch.Add(&command.RecordMarkerCommand{
		Name:    c.cursorMarker(t),
		Details: p,
	})

	return nil
}

// RecordMarker records a marker with the given name. The name is used as is.
func (c *Context) RecordMarker(name string, v any) error {
	p, err := c.tick.converter.To(v)
	if err != nil {
		return fmt.Errorf("encoding marker %q: %w", name, err)
	}

	c.tick.batch.Add(&command.RecordMarkerCommand{
		Name:    name,
		Details: p,
	})

	return nil
}

// ScheduleActivity emits a command scheduling the given activity for task.
func (c *Context) ScheduleActivity(t Task, name, version string, input any) error {
	p, err := c.tick.converter.To(input)
	if err != nil {
		return fmt.Errorf("encoding activity input: %w", err)
	}

	opts := t.task().opts

	c.tick.batch.Add(&command.ScheduleActivityCommand{
		ActivityID: c.CorrelationID(t),
		Name:       name,
		Version:    version,
		Input:      p,
		Timeouts:   opts.timeouts,
		TaskList:   opts.taskList,
	})

	return nil
}

// ScheduleSubWorkflow emits a command starting the given workflow as a sub-workflow for task.
func (c *Context) ScheduleSubWorkflow(t Task, name, version string, input any, tags []string) error {
	p, err := c.tick.converter.To(input)
	if err != nil {
		return fmt.Errorf("encoding sub-workflow input: %w", err)
	}

	opts := t.task().opts

	c.tick.batch.Add(&command.ScheduleSubWorkflowCommand{
		Control:     c.CorrelationID(t),
		Name:        name,
		Version:     version,
		Input:       p,
		TagList:     tags,
		ChildPolicy: opts.childPolicy,
		Timeouts:    opts.workflowTimeouts,
	})

	return nil
}

func (c *Context) timerID(t Task, suffix ...string) string {
	return core.Derive(c.CorrelationID(t), suffix...)
}

// StartTimer emits a timer for task. The timer id is the correlation id of task derived with
// suffix.
func (c *Context) StartTimer(t Task, delay time.Duration, suffix ...string) string {
	id := c.timerID(t, suffix...)

	c.tick.batch.Add(&command.StartTimerCommand{
		TimerID: id,
		Delay:   delay,
	})

	return id
}

// resumeExecution reports whether the timer of task with the given suffix fired, or was never
// started.
func (c *Context) resumeExecution(t Task, suffix ...string) bool {
	id := c.timerID(t, suffix...)

	if _, ok := c.tick.batch.Timer(id); ok {
		return false
	}

	timer := c.tick.snapshot.Timer(id)
	return timer == nil || timer.Completed()
}

func (c *Context) activity(t Task) *workflowstate.Lifecycle {
	return c.tick.snapshot.Activity(c.CorrelationID(t))
}

func (c *Context) subWorkflow(t Task) *workflowstate.Lifecycle {
	return c.tick.snapshot.SubWorkflow(c.CorrelationID(t))
}

func (c *Context) decode(p payload.Payload) (any, error) {
	return converter.Value(c.tick.converter, p)
}

func failureReason(l *workflowstate.Lifecycle) string {
	switch {
	case l.Reason != "":
		return l.Reason
	case l.Error != nil:
		return l.Error.Error()
	default:
		return l.State.String()
	}
}
