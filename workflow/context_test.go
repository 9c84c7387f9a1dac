package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/backend/payload"
	"github.com/usherflow/usher/internal/command"
	"github.com/usherflow/usher/internal/workflowstate"
)

func markerEvent(seq int64, name, details string) *history.Event {
	return history.NewHistoryEvent(
		testTime, history.EventType_MarkerRecorded,
		&history.MarkerRecordedAttributes{Name: name, Details: payload.Payload(details)},
		history.SequenceID(seq),
	)
}

func newTestContext(events ...*history.Event) (*Context, *command.Batch) {
	batch := command.NewBatch()
	return NewContext(workflowstate.Fold(events, 0), batch, nil, "", "input", nil), batch
}

func Test_Context_Input(t *testing.T) {
	ctx, _ := newTestContext(markerEvent(1, "var:region", `"eu"`))

	a := newTransform("a", nil, nil, defaultOptions)
	b := newTransform("b", []string{"a"}, nil, defaultOptions)

	ctx.SetResult(a, 42)

	input, err := ctx.Input(b)
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"_workflowInput": "input",
		"_variables":     map[string]any{"region": "eu"},
		"a":              42,
	}, input)
}

func Test_Context_Input_Transform(t *testing.T) {
	ctx, _ := newTestContext()

	a := newTransform("a", nil, nil, defaultOptions)
	b := newTransform("b", []string{"a"}, nil, applyOptions(nil, []Option{
		WithInputTransform(func(input any) (any, error) {
			return input.(map[string]any)["a"], nil
		}),
	}))

	ctx.SetResult(a, "from a")

	input, err := ctx.Input(b)
	require.NoError(t, err)
	require.Equal(t, "from a", input)
}

func Test_Context_Input_State(t *testing.T) {
	ctx, _ := newTestContext(markerEvent(1, "loop:cursor", `{"currentIndex":2}`))

	input, err := ctx.Input(newStop("loop", nil))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"currentIndex": float64(2)}, input.(map[string]any)["_state"])
}

func Test_Context_IsResolved(t *testing.T) {
	ctx, _ := newTestContext()

	a := newStop("a", nil)
	b := newStop("b", nil)
	c := newStop("c", []string{"a", "b"})

	require.True(t, ctx.IsResolved(a))
	require.False(t, ctx.IsResolved(c))

	ctx.RecordStatus(a, StatusComplete|StatusResolved)
	ctx.RecordStatus(b, StatusComplete)
	require.False(t, ctx.IsResolved(c))

	ctx.RecordStatus(b, StatusComplete|StatusResolved)
	require.True(t, ctx.IsResolved(c))
}

func Test_Context_Aggregates(t *testing.T) {
	tests := []struct {
		name       string
		statuses   []Status
		done       bool
		success    bool
		failed     bool
		terminated bool
	}{
		{"empty", nil, true, true, false, false},
		{"all complete", []Status{StatusComplete | StatusResolved, StatusComplete}, true, true, false, false},
		{"pending", []Status{StatusComplete | StatusResolved, StatusPending}, false, false, false, false},
		{"outstanding", []Status{StatusOutstanding}, false, false, false, false},
		{"failed", []Status{StatusFailed, StatusOutstanding}, true, false, true, false},
		{"terminate", []Status{StatusTerminate, StatusPending}, true, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _ := newTestContext()
			for i, s := range tt.statuses {
				ctx.RecordStatus(newStop(string(rune('a'+i)), nil), s)
			}

			require.Equal(t, tt.done, ctx.Done())
			require.Equal(t, tt.success, ctx.Success())
			require.Equal(t, tt.failed, ctx.Failed())
			require.Equal(t, tt.terminated, ctx.Terminated())
		})
	}
}

func Test_Context_SetVariable(t *testing.T) {
	tests := []struct {
		name    string
		events  []*history.Event
		set     []any
		markers []string
	}{
		{
			name:    "new variable",
			set:     []any{1},
			markers: []string{"1"},
		},
		{
			name:    "same value in history",
			events:  []*history.Event{markerEvent(1, "var:v", "1")},
			set:     []any{1},
			markers: []string{},
		},
		{
			name:    "same object with different key order",
			events:  []*history.Event{markerEvent(1, "var:v", `{"b":2,"a":1}`)},
			set:     []any{map[string]int{"a": 1, "b": 2}},
			markers: []string{},
		},
		{
			name:    "changed value",
			events:  []*history.Event{markerEvent(1, "var:v", "1")},
			set:     []any{2},
			markers: []string{"2"},
		},
		{
			name:    "set twice in one tick",
			set:     []any{"x", "x"},
			markers: []string{`"x"`},
		},
		{
			name:    "last write in one tick wins",
			set:     []any{"x", "y"},
			markers: []string{`"y"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, batch := newTestContext(tt.events...)

			for _, v := range tt.set {
				require.NoError(t, ctx.SetVariable("v", v))
			}

			details := make([]string, 0)
			for _, m := range markers(batch.Commands()) {
				require.Equal(t, "var:v", m.Name)
				details = append(details, string(m.Details))
			}

			require.Equal(t, tt.markers, details)
		})
	}
}

func Test_Context_Variables_TickLocalWins(t *testing.T) {
	ctx, _ := newTestContext(markerEvent(1, "var:v", "1"), markerEvent(2, "var:w", "1"))

	require.NoError(t, ctx.SetVariable("v", 2))

	child := ctx.Child("loop/0", nil, map[string]any{"w": "local"})
	require.Equal(t, map[string]any{"v": 2, "w": "local"}, child.Variables())
	require.Equal(t, map[string]any{"v": 2, "w": float64(1)}, ctx.Variables())
}

func Test_Context_Cursor(t *testing.T) {
	task := newStop("loop", nil)

	ctx, batch := newTestContext(markerEvent(1, "loop:cursor", `{"currentIndex":1}`))

	v, err := ctx.LoadCursor(task)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"currentIndex": float64(1)}, v)

	// Unchanged
	require.NoError(t, ctx.SaveCursor(task, iterationCursor{CurrentIndex: 1}))
	require.Equal(t, 0, batch.Len())

	require.NoError(t, ctx.SaveCursor(task, iterationCursor{CurrentIndex: 2}))
	require.Equal(t, 1, batch.Len())

	var cursor iterationCursor
	ok, err := ctx.loadCursorInto(task, &cursor)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, cursor.CurrentIndex)
}

func Test_Context_RecordMarker(t *testing.T) {
	ctx, batch := newTestContext()

	require.NoError(t, ctx.RecordMarker("audit", map[string]any{"step": 3}))

	// Not namespaced by the child
	require.NoError(t, ctx.Child("loop/0", nil, nil).RecordMarker("loop:audit", "done"))

	m := markers(batch.Commands())
	require.Len(t, m, 2)

	require.Equal(t, "audit", m[0].Name)
	require.JSONEq(t, `{"step":3}`, string(m[0].Details))

	require.Equal(t, "loop:audit", m[1].Name)
	require.JSONEq(t, `"done"`, string(m[1].Details))
}

func Test_Context_Child_Namespacing(t *testing.T) {
	ctx, batch := newTestContext()
	step := newStep("work", nil, defaultOptions)

	for _, segment := range []string{"loop/0", "loop/1"} {
		child := ctx.Child(segment, nil, nil)
		require.NoError(t, child.ScheduleActivity(step, "work", "1.0.0", nil))
	}

	nested := ctx.Child("outer/2", nil, nil).Child("inner/3", nil, nil)
	require.Equal(t, "outer/2/inner/3/work", nested.CorrelationID(step))

	require.Equal(t, []string{"loop/0/work", "loop/1/work"}, scheduledActivities(batch.Commands()))
}

func Test_Context_ResumeExecution(t *testing.T) {
	task := newStop("loop", nil)

	started := history.NewHistoryEvent(testTime, history.EventType_TimerStarted,
		&history.TimerStartedAttributes{TimerID: "loop:batch:1"}, history.SequenceID(1))
	fired := history.NewHistoryEvent(testTime, history.EventType_TimerFired,
		&history.TimerFiredAttributes{TimerID: "loop:batch:1"}, history.SequenceID(2), history.ScheduleEventID(1))

	ctx, _ := newTestContext()
	require.True(t, ctx.resumeExecution(task, batchSuffix(1)...))

	ctx.StartTimer(task, 0, batchSuffix(1)...)
	require.False(t, ctx.resumeExecution(task, batchSuffix(1)...))

	ctx, _ = newTestContext(started)
	require.False(t, ctx.resumeExecution(task, batchSuffix(1)...))

	ctx, _ = newTestContext(started, fired)
	require.True(t, ctx.resumeExecution(task, batchSuffix(1)...))
}
