package tester

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/usherflow/usher/backend"
	"github.com/usherflow/usher/backend/converter"
	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/backend/payload"
	"github.com/usherflow/usher/client"
	"github.com/usherflow/usher/core"
	"github.com/usherflow/usher/internal/command"
	"github.com/usherflow/usher/internal/metrics"
	"github.com/usherflow/usher/internal/workflowerrors"
	"github.com/usherflow/usher/registry"
	"github.com/usherflow/usher/workflow"
	"github.com/usherflow/usher/workflow/executor"
)

// Tick is one decision of the run under test.
type Tick struct {
	// Horizon is the sequence ID of the DecisionTaskStarted event of the tick.
	Horizon int64

	// Commands emitted by the tick. The command closing the run is not included.
	Commands []command.Command

	Verdict executor.Verdict
}

type testRun struct {
	instance *core.WorkflowInstance
	def      *workflow.Definition

	history []*history.Event
	pending []*history.Event
	seq     int64

	finished bool
}

func (r *testRun) append(events ...*history.Event) {
	for _, e := range events {
		r.seq++
		e.SequenceID = r.seq
		r.history = append(r.history, e)
	}
}

type testTimer struct {
	run     *testRun
	timerID string
	at      time.Time

	// scheduleEventID is the sequence ID of the TimerStarted event.
	scheduleEventID int64
}

// WorkflowTester runs a workflow definition to completion without a backend. Activities and
// sub-workflows are either registered implementations or mocks, timers fire on a mock clock as soon
// as no run can make progress otherwise.
type WorkflowTester[TResult any] struct {
	def     *workflow.Definition
	options *options

	logger    *slog.Logger
	converter converter.Converter
	clock     *clock.Mock

	registry *registry.Registry
	executor *executor.Executor

	// Mocks for activities and sub-workflows
	ma               mock.Mock
	mockedActivities map[string]bool
	mw               mock.Mock
	mockedWorkflows  map[string]bool

	runs   map[string]*testRun
	order  []*testRun
	timers []*testTimer

	root       *testRun
	rootTicks  []*Tick
	totalTicks int
}

func NewWorkflowTester[TResult any](def *workflow.Definition, opts ...WorkflowTesterOption) *WorkflowTester[TResult] {
	options := &options{
		Logger:    slog.Default(),
		Converter: converter.DefaultConverter,
		MaxTicks:  1000,
	}

	for _, o := range opts {
		o(options)
	}

	c := clock.NewMock()
	c.Set(time.Now())

	wt := &WorkflowTester[TResult]{
		def:              def,
		options:          options,
		logger:           options.Logger,
		converter:        options.Converter,
		clock:            c,
		registry:         registry.New(),
		mockedActivities: map[string]bool{},
		mockedWorkflows:  map[string]bool{},
		runs:             map[string]*testRun{},
	}

	wt.executor = executor.NewExecutor(
		options.Logger,
		noop.NewTracerProvider().Tracer(backend.TracerName),
		metrics.NewNoopMetricsClient(),
		options.Converter,
		wt,
		nil,
		c,
	)

	return wt
}

// RegisterActivity registers an implementation for the activity name.
func (wt *WorkflowTester[TResult]) RegisterActivity(name string, fn registry.Activity, opts ...registry.RegisterOption) error {
	return wt.registry.RegisterActivity(name, fn, opts...)
}

// RegisterWorkflow registers a definition that sub-workflow tasks start as child runs.
func (wt *WorkflowTester[TResult]) RegisterWorkflow(def *workflow.Definition, opts ...registry.RegisterOption) error {
	return wt.registry.RegisterWorkflow(def, opts...)
}

// OnActivity mocks the activity name. The returned call receives the decoded input of the
// activity and has to return a result and an error.
func (wt *WorkflowTester[TResult]) OnActivity(name string, args ...any) *mock.Call {
	wt.mockedActivities[name] = true
	return wt.ma.On(name, args...)
}

// OnSubWorkflow mocks the workflow name when started as a sub-workflow. The returned call
// receives the decoded input of the child and has to return a result and an error.
func (wt *WorkflowTester[TResult]) OnSubWorkflow(name string, args ...any) *mock.Call {
	wt.mockedWorkflows[name] = true
	return wt.mw.On(name, args...)
}

func (wt *WorkflowTester[TResult]) AssertExpectations(t *testing.T) {
	wt.ma.AssertExpectations(t)
	wt.mw.AssertExpectations(t)
}

// Now returns the current time of the mock clock.
func (wt *WorkflowTester[TResult]) Now() time.Time {
	return wt.clock.Now()
}

// Execute runs the workflow with the given root input until it finishes. It panics when the run
// is blocked or exceeds the configured number of ticks.
func (wt *WorkflowTester[TResult]) Execute(ctx context.Context, input any) {
	in, err := wt.converter.To(input)
	if err != nil {
		panic(fmt.Sprintf("converting workflow input: %v", err))
	}

	wt.root = wt.startRun(core.NewWorkflowInstance(uuid.NewString(), uuid.NewString()), wt.def, &history.ExecutionStartedAttributes{
		Name:        wt.def.Name,
		Version:     wt.def.Version,
		Input:       in,
		ChildPolicy: core.ChildPolicyTerminate,
		Timeouts:    core.DefaultWorkflowTimeouts,
	})

	for !wt.root.finished {
		if run := wt.nextRun(); run != nil {
			wt.tick(ctx, run)
			continue
		}

		if !wt.fireTimer() {
			panic("workflow blocked: no pending events and no pending timers")
		}
	}
}

func (wt *WorkflowTester[TResult]) startRun(instance *core.WorkflowInstance, def *workflow.Definition, a *history.ExecutionStartedAttributes) *testRun {
	run := &testRun{
		instance: instance,
		def:      def,
		pending: []*history.Event{
			history.NewHistoryEvent(wt.clock.Now(), history.EventType_WorkflowExecutionStarted, a),
		},
	}

	wt.runs[instance.InstanceID] = run
	wt.order = append(wt.order, run)

	return run
}

func (wt *WorkflowTester[TResult]) nextRun() *testRun {
	for _, run := range wt.order {
		if !run.finished && len(run.pending) > 0 {
			return run
		}
	}

	return nil
}

func (wt *WorkflowTester[TResult]) tick(ctx context.Context, run *testRun) {
	wt.totalTicks++
	if wt.totalTicks > wt.options.MaxTicks {
		panic(fmt.Sprintf("workflow did not finish within %d ticks", wt.options.MaxTicks))
	}

	newEvents := append(run.pending, history.NewHistoryEvent(wt.clock.Now(), history.EventType_DecisionTaskStarted, &history.DecisionTaskStartedAttributes{
		Identity: "tester",
	}))
	run.pending = nil
	run.append(newEvents...)

	task := &backend.WorkflowTask{
		ID:                    uuid.NewString(),
		WorkflowInstance:      run.instance,
		WorkflowInstanceState: core.WorkflowInstanceStateActive,
		Name:                  run.def.Name,
		Version:               run.def.Version,
		LastSequenceID:        run.seq,
		NewEvents:             newEvents,
	}

	result, err := wt.executor.ExecuteTask(ctx, run.def, task)
	if err != nil {
		panic(fmt.Sprintf("executing workflow task: %v", err))
	}

	if run == wt.root {
		wt.rootTicks = append(wt.rootTicks, &Tick{
			Horizon:  task.LastSequenceID,
			Commands: decisions(result.Commands),
			Verdict:  result.Verdict,
		})
	}

	run.append(history.NewHistoryEvent(wt.clock.Now(), history.EventType_DecisionTaskCompleted, &history.DecisionTaskCompletedAttributes{}))
	run.append(result.Events...)

	for _, e := range result.Events {
		wt.apply(ctx, run, e)
	}

	if result.State == core.WorkflowInstanceStateFinished {
		run.finished = true
	}
}

// apply derives the follow-up events of an event recorded by a decision.
func (wt *WorkflowTester[TResult]) apply(ctx context.Context, run *testRun, e *history.Event) {
	switch a := e.Attributes.(type) {
	case *history.ActivityScheduledAttributes:
		run.pending = append(run.pending, wt.executeActivity(ctx, e.SequenceID, a))

	case *history.TimerStartedAttributes:
		at := a.At
		if at.IsZero() {
			at = wt.clock.Now().Add(a.Delay)
		}

		wt.timers = append(wt.timers, &testTimer{
			run:             run,
			timerID:         a.TimerID,
			at:              at,
			scheduleEventID: e.SequenceID,
		})

	case *history.SubWorkflowInitiatedAttributes:
		wt.startSubWorkflow(run, e, a)

	case *history.ExecutionCompletedAttributes:
		if p := wt.parent(run); p != nil {
			p.pending = append(p.pending, history.NewHistoryEvent(wt.clock.Now(), history.EventType_SubWorkflowCompleted, &history.SubWorkflowCompletedAttributes{
				Result: a.Result,
			}, history.ScheduleEventID(run.instance.ParentEventID)))
		}

	case *history.ExecutionFailedAttributes:
		if p := wt.parent(run); p != nil {
			p.pending = append(p.pending, history.NewHistoryEvent(wt.clock.Now(), history.EventType_SubWorkflowFailed, &history.SubWorkflowFailedAttributes{
				Reason: a.Reason,
				Error:  a.Error,
			}, history.ScheduleEventID(run.instance.ParentEventID)))
		}
	}
}

func (wt *WorkflowTester[TResult]) parent(run *testRun) *testRun {
	if !run.instance.SubWorkflow() {
		return nil
	}

	return wt.runs[run.instance.Parent.InstanceID]
}

func (wt *WorkflowTester[TResult]) executeActivity(ctx context.Context, scheduleEventID int64, a *history.ActivityScheduledAttributes) *history.Event {
	input, err := converter.Value(wt.converter, a.Input)
	if err != nil {
		panic(fmt.Sprintf("decoding input of activity %s: %v", a.Name, err))
	}

	var result any
	if wt.mockedActivities[a.Name] {
		results := wt.ma.MethodCalled(a.Name, input)
		result, err = results.Get(0), results.Error(1)
	} else {
		fn, lerr := wt.registry.GetActivity(a.Name, a.Version)
		if lerr != nil {
			panic(fmt.Sprintf("activity %s is neither registered nor mocked: %v", a.Name, lerr))
		}

		result, err = fn(ctx, input)
	}

	return wt.outcome(err, result, scheduleEventID,
		func(p payload.Payload) (history.EventType, any) {
			return history.EventType_ActivityCompleted, &history.ActivityCompletedAttributes{Result: p}
		},
		func(err error) (history.EventType, any) {
			return history.EventType_ActivityFailed, &history.ActivityFailedAttributes{
				Reason: err.Error(),
				Error:  workflowerrors.FromError(err),
			}
		},
	)
}

func (wt *WorkflowTester[TResult]) startSubWorkflow(run *testRun, e *history.Event, a *history.SubWorkflowInitiatedAttributes) {
	now := wt.clock.Now()

	instanceID, executionID := uuid.NewString(), uuid.NewString()
	if a.SubWorkflowInstance != nil {
		instanceID, executionID = a.SubWorkflowInstance.InstanceID, a.SubWorkflowInstance.ExecutionID
	}

	if _, ok := wt.runs[instanceID]; ok {
		run.pending = append(run.pending, history.NewHistoryEvent(now, history.EventType_SubWorkflowFailed, &history.SubWorkflowFailedAttributes{
			Reason: "StartFailed",
			Error:  workflowerrors.FromError(backend.ErrInstanceAlreadyExists),
		}, history.ScheduleEventID(e.SequenceID)))
		return
	}

	run.pending = append(run.pending, history.NewHistoryEvent(now, history.EventType_SubWorkflowStarted, &history.SubWorkflowStartedAttributes{},
		history.ScheduleEventID(e.SequenceID)))

	if wt.mockedWorkflows[a.Name] {
		input, err := converter.Value(wt.converter, a.Input)
		if err != nil {
			panic(fmt.Sprintf("decoding input of sub-workflow %s: %v", a.Name, err))
		}

		results := wt.mw.MethodCalled(a.Name, input)

		run.pending = append(run.pending, wt.outcome(results.Error(1), results.Get(0), e.SequenceID,
			func(p payload.Payload) (history.EventType, any) {
				return history.EventType_SubWorkflowCompleted, &history.SubWorkflowCompletedAttributes{Result: p}
			},
			func(err error) (history.EventType, any) {
				return history.EventType_SubWorkflowFailed, &history.SubWorkflowFailedAttributes{
					Reason: executor.ReasonTaskFailed,
					Error:  workflowerrors.FromError(err),
				}
			},
		))
		return
	}

	version := a.Version
	if version == "" {
		version = core.DefaultVersion
	}

	def, err := wt.registry.GetWorkflow(a.Name, version)
	if err != nil {
		panic(fmt.Sprintf("sub-workflow %s is neither registered nor mocked: %v", a.Name, err))
	}

	wt.startRun(core.NewSubWorkflowInstance(instanceID, executionID, run.instance, e.SequenceID), def, &history.ExecutionStartedAttributes{
		Name:        a.Name,
		Version:     version,
		Input:       a.Input,
		TagList:     a.TagList,
		ChildPolicy: a.ChildPolicy,
		Timeouts:    a.Timeouts,
	})
}

func (wt *WorkflowTester[TResult]) outcome(
	err error,
	result any,
	scheduleEventID int64,
	completed func(payload.Payload) (history.EventType, any),
	failed func(error) (history.EventType, any),
) *history.Event {
	if err == nil {
		p, cerr := wt.converter.To(result)
		if cerr != nil {
			err = fmt.Errorf("encoding result: %w", cerr)
		} else {
			et, attrs := completed(p)
			return history.NewHistoryEvent(wt.clock.Now(), et, attrs, history.ScheduleEventID(scheduleEventID))
		}
	}

	et, attrs := failed(err)
	return history.NewHistoryEvent(wt.clock.Now(), et, attrs, history.ScheduleEventID(scheduleEventID))
}

// fireTimer fires the earliest timer of a run that has not finished and advances the clock to it.
func (wt *WorkflowTester[TResult]) fireTimer() bool {
	active := wt.timers[:0]
	for _, t := range wt.timers {
		if !t.run.finished {
			active = append(active, t)
		}
	}
	wt.timers = active

	if len(wt.timers) == 0 {
		return false
	}

	sort.SliceStable(wt.timers, func(i, j int) bool {
		return wt.timers[i].at.Before(wt.timers[j].at)
	})

	t := wt.timers[0]
	wt.timers = wt.timers[1:]

	if t.at.After(wt.clock.Now()) {
		wt.logger.Debug("Advancing clock", "to", t.at, "timer_id", t.timerID)
		wt.clock.Set(t.at)
	}

	t.run.pending = append(t.run.pending, history.NewHistoryEvent(wt.clock.Now(), history.EventType_TimerFired, &history.TimerFiredAttributes{
		TimerID: t.timerID,
		At:      t.at,
	}, history.ScheduleEventID(t.scheduleEventID)))

	return true
}

// GetWorkflowInstanceHistory serves the history of the runs to the executor.
func (wt *WorkflowTester[TResult]) GetWorkflowInstanceHistory(_ context.Context, instance *core.WorkflowInstance, lastSequenceID *int64) ([]*history.Event, error) {
	run, ok := wt.runs[instance.InstanceID]
	if !ok {
		return nil, backend.ErrInstanceNotFound
	}

	if lastSequenceID == nil {
		return run.history, nil
	}

	events := make([]*history.Event, 0)
	for _, e := range run.history {
		if e.SequenceID > *lastSequenceID {
			events = append(events, e)
		}
	}

	return events, nil
}

func (wt *WorkflowTester[TResult]) WorkflowFinished() bool {
	return wt.root != nil && wt.root.finished
}

// WorkflowResult returns the output of the finished run, or a *client.WorkflowFailedError when it
// failed.
func (wt *WorkflowTester[TResult]) WorkflowResult() (TResult, error) {
	var r TResult

	if !wt.WorkflowFinished() {
		return r, errors.New("workflow has not finished")
	}

	for i := len(wt.root.history) - 1; i >= 0; i-- {
		switch a := wt.root.history[i].Attributes.(type) {
		case *history.ExecutionCompletedAttributes:
			if a.Result.Empty() {
				return r, nil
			}

			if err := wt.converter.From(a.Result, &r); err != nil {
				return r, fmt.Errorf("converting result: %w", err)
			}

			return r, nil

		case *history.ExecutionFailedAttributes:
			return r, &client.WorkflowFailedError{
				Reason: a.Reason,
				Err:    workflowerrors.ToError(a.Error),
			}
		}
	}

	return r, errors.New("workflow finished, but could not find result event")
}

// Verdict returns the verdict of the last tick of the run.
func (wt *WorkflowTester[TResult]) Verdict() executor.Verdict {
	if len(wt.rootTicks) == 0 {
		return executor.Verdict{}
	}

	return wt.rootTicks[len(wt.rootTicks)-1].Verdict
}

// Ticks returns the decisions of the run in order.
func (wt *WorkflowTester[TResult]) Ticks() []*Tick {
	return wt.rootTicks
}

// History returns the history of the run.
func (wt *WorkflowTester[TResult]) History() []*history.Event {
	if wt.root == nil {
		return nil
	}

	return wt.root.history
}

// Replay evaluates every tick of the run again against the final history and returns an error
// for the first tick whose commands differ from the recorded ones.
func (wt *WorkflowTester[TResult]) Replay() error {
	if wt.root == nil {
		return errors.New("workflow has not been executed")
	}

	for i, tick := range wt.rootTicks {
		r, err := executor.EvaluateTick(wt.def, nil, wt.root.history, tick.Horizon, "", nil, executor.WithLogger(wt.logger))
		if err != nil {
			return fmt.Errorf("replaying tick %d: %w", i, err)
		}

		if !assert.ObjectsAreEqual(tick.Commands, r.Commands) {
			return fmt.Errorf("tick %d is not deterministic: recorded %d commands, replay produced %d", i, len(tick.Commands), len(r.Commands))
		}

		if r.Verdict.Kind != tick.Verdict.Kind {
			return fmt.Errorf("tick %d is not deterministic: recorded verdict %s, replay produced %s", i, tick.Verdict.Kind, r.Verdict.Kind)
		}
	}

	return nil
}

// decisions drops the command closing the run.
func decisions(commands []command.Command) []command.Command {
	r := make([]command.Command, 0, len(commands))
	for _, c := range commands {
		switch c.(type) {
		case *command.CompleteWorkflowCommand, *command.FailWorkflowCommand:
			continue
		}

		r = append(r, c)
	}

	return r
}
