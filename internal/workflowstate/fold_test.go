package workflowstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/backend/payload"
	"github.com/usherflow/usher/core"
)

func event(seq int64, eventType history.EventType, attributes any, opts ...history.HistoryEventOption) *history.Event {
	opts = append(opts, history.SequenceID(seq))
	return history.NewHistoryEvent(time.Time{}, eventType, attributes, opts...)
}

func scheduled(seq int64, id string) *history.Event {
	return event(seq, history.EventType_ActivityScheduled, &history.ActivityScheduledAttributes{ActivityID: id, Name: id})
}

func completed(seq, scheduleEventID int64, result string) *history.Event {
	return event(seq, history.EventType_ActivityCompleted, &history.ActivityCompletedAttributes{
		Result: payload.Payload(result),
	}, history.ScheduleEventID(scheduleEventID))
}

func marker(seq int64, name, details string) *history.Event {
	return event(seq, history.EventType_MarkerRecorded, &history.MarkerRecordedAttributes{
		Name:    name,
		Details: payload.Payload(details),
	})
}

func Test_Fold(t *testing.T) {
	tests := []struct {
		name    string
		events  []*history.Event
		horizon int64
		f       func(t *testing.T, s *Snapshot)
	}{
		{
			name: "workflow input",
			events: []*history.Event{
				event(1, history.EventType_WorkflowExecutionStarted, &history.ExecutionStartedAttributes{
					Name: "wf", Input: payload.Payload(`{"items":[1,2]}`),
				}),
			},
			f: func(t *testing.T, s *Snapshot) {
				require.Equal(t, map[string]any{"items": []any{float64(1), float64(2)}}, s.WorkflowInput())
				require.Equal(t, "wf", s.Started().Name)
			},
		},
		{
			name: "terminated by the service",
			events: []*history.Event{
				event(1, history.EventType_WorkflowExecutionStarted, &history.ExecutionStartedAttributes{Name: "wf"}),
				event(2, history.EventType_WorkflowExecutionTerminated, &history.ExecutionTerminatedAttributes{}),
			},
			f: func(t *testing.T, s *Snapshot) {
				require.True(t, s.Terminated())
				require.Empty(t, s.Orphans())
			},
		},
		{
			name: "terminated after the horizon",
			events: []*history.Event{
				event(1, history.EventType_WorkflowExecutionStarted, &history.ExecutionStartedAttributes{Name: "wf"}),
				event(2, history.EventType_WorkflowExecutionTerminated, &history.ExecutionTerminatedAttributes{}),
			},
			horizon: 1,
			f: func(t *testing.T, s *Snapshot) {
				require.False(t, s.Terminated())
			},
		},
		{
			name: "activity lifecycle",
			events: []*history.Event{
				scheduled(2, "A"),
				event(3, history.EventType_ActivityStarted, &history.ActivityStartedAttributes{}, history.ScheduleEventID(2)),
				completed(4, 2, `"a"`),
			},
			f: func(t *testing.T, s *Snapshot) {
				a := s.Activity("A")
				require.True(t, a.Completed())
				require.Equal(t, payload.Payload(`"a"`), a.Result)
				require.Equal(t, int64(2), a.ScheduleEventID)
			},
		},
		{
			name: "sorts by sequence id",
			events: []*history.Event{
				completed(4, 2, `"a"`),
				event(3, history.EventType_ActivityStarted, &history.ActivityStartedAttributes{}, history.ScheduleEventID(2)),
				scheduled(2, "A"),
			},
			f: func(t *testing.T, s *Snapshot) {
				require.True(t, s.Activity("A").Completed())
				require.Empty(t, s.Orphans())
				require.Equal(t, int64(4), s.LastSequenceID())
			},
		},
		{
			name: "truncates to horizon",
			events: []*history.Event{
				scheduled(2, "A"),
				event(3, history.EventType_DecisionTaskStarted, &history.DecisionTaskStartedAttributes{}),
				completed(4, 2, `"a"`),
			},
			horizon: 3,
			f: func(t *testing.T, s *Snapshot) {
				require.True(t, s.Activity("A").Outstanding())
				require.Nil(t, s.Activity("A").Result)
				require.Equal(t, int64(3), s.LastSequenceID())
				require.Equal(t, int64(3), s.Horizon())
			},
		},
		{
			name: "failure kinds",
			events: []*history.Event{
				scheduled(1, "failed"),
				scheduled(2, "canceled"),
				scheduled(3, "timedout"),
				event(4, history.EventType_ActivityFailed, &history.ActivityFailedAttributes{Reason: "boom"}, history.ScheduleEventID(1)),
				event(5, history.EventType_ActivityCanceled, &history.ActivityCanceledAttributes{}, history.ScheduleEventID(2)),
				event(6, history.EventType_ActivityTimedOut, &history.ActivityTimedOutAttributes{TimeoutType: "START_TO_CLOSE"}, history.ScheduleEventID(3)),
			},
			f: func(t *testing.T, s *Snapshot) {
				require.True(t, s.Activity("failed").Failed())
				require.Equal(t, "boom", s.Activity("failed").Reason)
				require.True(t, s.Activity("canceled").Failed())
				require.True(t, s.Activity("timedout").Failed())
				require.Equal(t, StateTimedOut, s.Activity("timedout").State)
			},
		},
		{
			name: "later events do not leave a terminal state",
			events: []*history.Event{
				scheduled(1, "A"),
				completed(2, 1, `1`),
				event(3, history.EventType_ActivityStarted, &history.ActivityStartedAttributes{}, history.ScheduleEventID(1)),
				event(4, history.EventType_ActivityFailed, &history.ActivityFailedAttributes{}, history.ScheduleEventID(1)),
			},
			f: func(t *testing.T, s *Snapshot) {
				require.True(t, s.Activity("A").Completed())
				require.Equal(t, payload.Payload(`1`), s.Activity("A").Result)
			},
		},
		{
			name: "variables last writer wins",
			events: []*history.Event{
				marker(3, core.VariableMarker("count"), `2`),
				marker(1, core.VariableMarker("count"), `1`),
				marker(2, core.VariableMarker("name"), `"x"`),
			},
			f: func(t *testing.T, s *Snapshot) {
				require.Equal(t, map[string]any{"count": float64(2), "name": "x"}, s.Variables())

				_, ok := s.Marker(core.VariableMarker("count"))
				require.False(t, ok, "variables are not exposed as markers")
			},
		},
		{
			name: "markers",
			events: []*history.Event{
				marker(1, "loop:cursor", `{"nextItemIndex":1}`),
				marker(2, "loop:cursor", `{"nextItemIndex":2}`),
			},
			f: func(t *testing.T, s *Snapshot) {
				m, ok := s.Marker("loop:cursor")
				require.True(t, ok)
				require.Equal(t, payload.Payload(`{"nextItemIndex":2}`), m)
			},
		},
		{
			name: "kinds are kept apart",
			events: []*history.Event{
				scheduled(1, "x"),
				event(2, history.EventType_TimerStarted, &history.TimerStartedAttributes{TimerID: "x"}),
				event(3, history.EventType_SubWorkflowInitiated, &history.SubWorkflowInitiatedAttributes{Control: "x"}),
				event(4, history.EventType_TimerFired, &history.TimerFiredAttributes{TimerID: "x"}, history.ScheduleEventID(2)),
				event(5, history.EventType_SubWorkflowFailed, &history.SubWorkflowFailedAttributes{Reason: "child"}, history.ScheduleEventID(3)),
			},
			f: func(t *testing.T, s *Snapshot) {
				require.True(t, s.Activity("x").Outstanding())
				require.True(t, s.Timer("x").Completed())
				require.True(t, s.SubWorkflow("x").Failed())
				require.Equal(t, "child", s.SubWorkflow("x").Reason)
			},
		},
		{
			name: "sub-workflow lifecycle",
			events: []*history.Event{
				event(1, history.EventType_SubWorkflowInitiated, &history.SubWorkflowInitiatedAttributes{Control: "child"}),
				event(2, history.EventType_SubWorkflowStarted, &history.SubWorkflowStartedAttributes{}, history.ScheduleEventID(1)),
				event(3, history.EventType_SubWorkflowCompleted, &history.SubWorkflowCompletedAttributes{Result: payload.Payload(`[1]`)}, history.ScheduleEventID(1)),
			},
			f: func(t *testing.T, s *Snapshot) {
				require.True(t, s.SubWorkflow("child").Completed())
				require.Equal(t, payload.Payload(`[1]`), s.SubWorkflow("child").Result)
			},
		},
		{
			name: "orphans",
			events: []*history.Event{
				completed(2, 1, `1`),
				event(3, history.EventType_TimerFired, &history.TimerFiredAttributes{}, history.ScheduleEventID(42)),
			},
			f: func(t *testing.T, s *Snapshot) {
				require.Len(t, s.Orphans(), 2)
				require.Nil(t, s.Activity(""))
			},
		},
		{
			name: "nil events are skipped",
			events: []*history.Event{
				nil,
				scheduled(1, "A"),
			},
			f: func(t *testing.T, s *Snapshot) {
				require.True(t, s.Activity("A").Outstanding())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.f(t, Fold(tt.events, tt.horizon))
		})
	}
}

func Test_Fold_DoesNotModifyInput(t *testing.T) {
	events := []*history.Event{
		completed(2, 1, `"a"`),
		scheduled(1, "A"),
	}

	Fold(events, 0)

	require.Equal(t, int64(2), events[0].SequenceID)
	require.Equal(t, int64(1), events[1].SequenceID)
}

func Test_Fold_Deterministic(t *testing.T) {
	events := []*history.Event{
		scheduled(1, "A"),
		completed(2, 1, `{"b":1,"a":2}`),
		marker(3, core.VariableMarker("v"), `[1,2,3]`),
	}

	require.Equal(t, Fold(events, 3), Fold(events, 3))
}

func Test_Fold_VariablesAreCopied(t *testing.T) {
	s := Fold([]*history.Event{marker(1, core.VariableMarker("v"), `1`)}, 0)

	vars := s.Variables()
	vars["v"] = 2

	require.Equal(t, float64(1), s.Variables()["v"])
}
