package test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/usherflow/usher/backend"
	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/backend/payload"
	"github.com/usherflow/usher/core"
)

var defaultTaskLists = []core.TaskList{core.TaskListDefault}

func startedEvent() *history.Event {
	return history.NewHistoryEvent(time.Now(), history.EventType_WorkflowExecutionStarted, &history.ExecutionStartedAttributes{
		Name:    "wf",
		Version: core.DefaultVersion,
	})
}

func createInstance(t *testing.T, ctx context.Context, b backend.Backend) *core.WorkflowInstance {
	wfi := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString())
	require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, startedEvent()))

	return wfi
}

func types(events []*history.Event) []history.EventType {
	r := make([]history.EventType, 0, len(events))
	for _, e := range events {
		r = append(r, e.Type)
	}

	return r
}

// BackendTest checks the contract of a Backend implementation.
func BackendTest(t *testing.T, setup func() backend.Backend, teardown func(b backend.Backend)) {
	tests := []struct {
		name string
		f    func(t *testing.T, ctx context.Context, b backend.Backend)
	}{
		{
			name: "GetWorkflowTask_ReturnsNilWhenNoPendingEvents",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				task, err := b.GetWorkflowTask(ctx)
				require.NoError(t, err)
				require.Nil(t, task)
			},
		},
		{
			name: "GetActivityTask_ReturnsNilWhenNoActivities",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				task, err := b.GetActivityTask(ctx, defaultTaskLists)
				require.NoError(t, err)
				require.Nil(t, task)
			},
		},
		{
			name: "CreateWorkflowInstance_SameInstanceIDErrors",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wfi := createInstance(t, ctx, b)

				err := b.CreateWorkflowInstance(ctx, wfi, startedEvent())
				require.ErrorIs(t, err, backend.ErrInstanceAlreadyExists)
			},
		},
		{
			name: "GetWorkflowInstanceState_NotFound",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				_, err := b.GetWorkflowInstanceState(ctx, core.NewWorkflowInstance(uuid.NewString(), uuid.NewString()))
				require.ErrorIs(t, err, backend.ErrInstanceNotFound)
			},
		},
		{
			name: "GetWorkflowTask_ReturnsTaskWithHorizon",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wfi := createInstance(t, ctx, b)

				task, err := b.GetWorkflowTask(ctx)
				require.NoError(t, err)
				require.NotNil(t, task)
				require.Equal(t, wfi.InstanceID, task.WorkflowInstance.InstanceID)
				require.Equal(t, []history.EventType{
					history.EventType_WorkflowExecutionStarted,
					history.EventType_DecisionTaskStarted,
				}, types(task.NewEvents))

				last := task.NewEvents[len(task.NewEvents)-1]
				require.Equal(t, last.SequenceID, task.LastSequenceID)
			},
		},
		{
			name: "GetWorkflowTask_LocksInstance",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				createInstance(t, ctx, b)

				task, err := b.GetWorkflowTask(ctx)
				require.NoError(t, err)
				require.NotNil(t, task)

				task, err = b.GetWorkflowTask(ctx)
				require.NoError(t, err)
				require.Nil(t, task)
			},
		},
		{
			name: "CompleteWorkflowTask_ReturnsErrorIfNotLocked",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wfi := createInstance(t, ctx, b)

				err := b.CompleteWorkflowTask(ctx, &backend.WorkflowTask{
					ID:               "taskID",
					WorkflowInstance: wfi,
				}, core.WorkflowInstanceStateActive, []*history.Event{})
				require.Error(t, err)
			},
		},
		{
			name: "CompleteWorkflowTask_AddsEventsAfterCompletedEvent",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wfi := createInstance(t, ctx, b)

				task, err := b.GetWorkflowTask(ctx)
				require.NoError(t, err)

				require.NoError(t, b.CompleteWorkflowTask(ctx, task, core.WorkflowInstanceStateActive, []*history.Event{
					history.NewHistoryEvent(time.Now(), history.EventType_MarkerRecorded, &history.MarkerRecordedAttributes{
						Name:    "var:region",
						Details: payload.Payload(`"eu"`),
					}),
				}))

				h, err := b.GetWorkflowInstanceHistory(ctx, wfi, nil)
				require.NoError(t, err)
				require.Equal(t, []history.EventType{
					history.EventType_WorkflowExecutionStarted,
					history.EventType_DecisionTaskStarted,
					history.EventType_DecisionTaskCompleted,
					history.EventType_MarkerRecorded,
				}, types(h))

				for i, e := range h {
					require.Equal(t, int64(i+1), e.SequenceID)
				}

				tail, err := b.GetWorkflowInstanceHistory(ctx, wfi, &task.LastSequenceID)
				require.NoError(t, err)
				require.Len(t, tail, 2)
			},
		},
		{
			name: "CompleteActivityTask_NotifiesWorkflow",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				createInstance(t, ctx, b)

				task, err := b.GetWorkflowTask(ctx)
				require.NoError(t, err)

				require.NoError(t, b.CompleteWorkflowTask(ctx, task, core.WorkflowInstanceStateActive, []*history.Event{
					history.NewHistoryEvent(time.Now(), history.EventType_ActivityScheduled, &history.ActivityScheduledAttributes{
						ActivityID: "A",
						Name:       "A",
						TaskList:   core.TaskListDefault,
					}),
				}))

				at, err := b.GetActivityTask(ctx, defaultTaskLists)
				require.NoError(t, err)
				require.NotNil(t, at)
				require.Equal(t, history.EventType_ActivityScheduled, at.Event.Type)

				require.NoError(t, b.CompleteActivityTask(ctx, at, history.NewHistoryEvent(time.Now(), history.EventType_ActivityCompleted,
					&history.ActivityCompletedAttributes{Result: payload.Payload(`1`)},
					history.ScheduleEventID(at.Event.SequenceID))))

				task, err = b.GetWorkflowTask(ctx)
				require.NoError(t, err)
				require.NotNil(t, task)

				var completed *history.Event
				for _, e := range task.NewEvents {
					if e.Type == history.EventType_ActivityCompleted {
						completed = e
					}
				}
				require.NotNil(t, completed)
				require.Equal(t, at.Event.SequenceID, completed.ScheduleEventID)
			},
		},
		{
			name: "CompleteWorkflowTask_FinishesInstance",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wfi := createInstance(t, ctx, b)

				task, err := b.GetWorkflowTask(ctx)
				require.NoError(t, err)

				require.NoError(t, b.CompleteWorkflowTask(ctx, task, core.WorkflowInstanceStateFinished, []*history.Event{
					history.NewHistoryEvent(time.Now(), history.EventType_WorkflowExecutionCompleted, &history.ExecutionCompletedAttributes{}),
				}))

				state, err := b.GetWorkflowInstanceState(ctx, wfi)
				require.NoError(t, err)
				require.Equal(t, core.WorkflowInstanceStateFinished, state)

				s, err := b.GetStats(ctx)
				require.NoError(t, err)
				require.Equal(t, int64(0), s.ActiveWorkflowInstances)
			},
		},
		{
			name: "RemoveWorkflowInstances_KeepsActiveInstances",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wfi := createInstance(t, ctx, b)

				require.NoError(t, b.RemoveWorkflowInstances(ctx, backend.RemoveFinishedBefore(time.Now().Add(time.Hour))))

				state, err := b.GetWorkflowInstanceState(ctx, wfi)
				require.NoError(t, err)
				require.Equal(t, core.WorkflowInstanceStateActive, state)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setup()
			ctx := context.Background()
			tt.f(t, ctx, b)
			if teardown != nil {
				teardown(b)
			}
		})
	}
}
