package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/usherflow/usher/backend"
	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/backend/payload"
	"github.com/usherflow/usher/backend/test"
	"github.com/usherflow/usher/core"
)

func startedEvent(name string) *history.Event {
	return history.NewHistoryEvent(time.Now(), history.EventType_WorkflowExecutionStarted, &history.ExecutionStartedAttributes{
		Name:    name,
		Version: "1.0.0",
		Input:   payload.Payload(`"input"`),
	})
}

func eventTypes(events []*history.Event) []history.EventType {
	r := make([]history.EventType, 0, len(events))
	for _, e := range events {
		r = append(r, e.Type)
	}

	return r
}

func sequenceIDs(events []*history.Event) []int64 {
	r := make([]int64, 0, len(events))
	for _, e := range events {
		r = append(r, e.SequenceID)
	}

	return r
}

func Test_SqliteBackend_CreateWorkflowInstance(t *testing.T) {
	b := NewInMemoryBackend()
	defer b.Close()

	ctx := context.Background()
	instance := core.NewWorkflowInstance("instance", "execution")

	require.NoError(t, b.CreateWorkflowInstance(ctx, instance, startedEvent("wf")))
	require.ErrorIs(t, b.CreateWorkflowInstance(ctx, instance, startedEvent("wf")), backend.ErrInstanceAlreadyExists)

	state, err := b.GetWorkflowInstanceState(ctx, instance)
	require.NoError(t, err)
	require.Equal(t, core.WorkflowInstanceStateActive, state)

	_, err = b.GetWorkflowInstanceState(ctx, core.NewWorkflowInstance("unknown", "execution"))
	require.ErrorIs(t, err, backend.ErrInstanceNotFound)

	stats, err := b.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, &backend.Stats{
		ActiveWorkflowInstances: 1,
		PendingWorkflowTasks:    1,
	}, stats)
}

func Test_SqliteBackend_WorkflowTask(t *testing.T) {
	b := NewInMemoryBackend()
	defer b.Close()

	ctx := context.Background()
	instance := core.NewWorkflowInstance("instance", "execution")
	require.NoError(t, b.CreateWorkflowInstance(ctx, instance, startedEvent("wf")))

	task, err := b.GetWorkflowTask(ctx)
	require.NoError(t, err)
	require.NotNil(t, task)
	require.Equal(t, "wf", task.Name)
	require.Equal(t, "1.0.0", task.Version)
	require.Equal(t, int64(2), task.LastSequenceID)
	require.Equal(t, []history.EventType{
		history.EventType_WorkflowExecutionStarted,
		history.EventType_DecisionTaskStarted,
	}, eventTypes(task.NewEvents))

	// Instance is locked
	next, err := b.GetWorkflowTask(ctx)
	require.NoError(t, err)
	require.Nil(t, next)

	scheduled := history.NewHistoryEvent(time.Now(), history.EventType_ActivityScheduled, &history.ActivityScheduledAttributes{
		ActivityID: "A",
		Name:       "A",
		Version:    "1.0.0",
	})

	require.NoError(t, b.CompleteWorkflowTask(ctx, task, core.WorkflowInstanceStateActive, []*history.Event{scheduled}))

	h, err := b.GetWorkflowInstanceHistory(ctx, instance, nil)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3, 4}, sequenceIDs(h))
	require.Equal(t, history.EventType_DecisionTaskCompleted, h[2].Type)
	require.Equal(t, history.EventType_ActivityScheduled, h[3].Type)

	last := int64(2)
	tail, err := b.GetWorkflowInstanceHistory(ctx, instance, &last)
	require.NoError(t, err)
	require.Equal(t, []int64{3, 4}, sequenceIDs(tail))

	// Activity task
	activityTask, err := b.GetActivityTask(ctx, []core.TaskList{core.TaskListDefault})
	require.NoError(t, err)
	require.NotNil(t, activityTask)
	require.Equal(t, int64(4), activityTask.Event.SequenceID)
	require.Equal(t, "A", activityTask.Event.Attributes.(*history.ActivityScheduledAttributes).ActivityID)

	none, err := b.GetActivityTask(ctx, []core.TaskList{core.TaskListDefault})
	require.NoError(t, err)
	require.Nil(t, none)

	require.NoError(t, b.CompleteActivityTask(ctx, activityTask, history.NewHistoryEvent(time.Now(), history.EventType_ActivityCompleted, &history.ActivityCompletedAttributes{
		Result: payload.Payload(`42`),
	})))

	task, err = b.GetWorkflowTask(ctx)
	require.NoError(t, err)
	require.NotNil(t, task)
	require.Equal(t, []history.EventType{
		history.EventType_ActivityStarted,
		history.EventType_ActivityCompleted,
		history.EventType_DecisionTaskStarted,
	}, eventTypes(task.NewEvents))
	require.Equal(t, []int64{5, 6, 7}, sequenceIDs(task.NewEvents))
	require.Equal(t, int64(4), task.NewEvents[1].ScheduleEventID)

	completed := history.NewHistoryEvent(time.Now(), history.EventType_WorkflowExecutionCompleted, &history.ExecutionCompletedAttributes{
		Result: payload.Payload(`42`),
	})
	require.NoError(t, b.CompleteWorkflowTask(ctx, task, core.WorkflowInstanceStateFinished, []*history.Event{completed}))

	state, err := b.GetWorkflowInstanceState(ctx, instance)
	require.NoError(t, err)
	require.Equal(t, core.WorkflowInstanceStateFinished, state)
}

func Test_SqliteBackend_ActivityTaskLists(t *testing.T) {
	b := NewInMemoryBackend()
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.CreateWorkflowInstance(ctx, core.NewWorkflowInstance("instance", "execution"), startedEvent("wf")))

	task, err := b.GetWorkflowTask(ctx)
	require.NoError(t, err)

	require.NoError(t, b.CompleteWorkflowTask(ctx, task, core.WorkflowInstanceStateActive, []*history.Event{
		history.NewHistoryEvent(time.Now(), history.EventType_ActivityScheduled, &history.ActivityScheduledAttributes{
			ActivityID: "A",
			Name:       "A",
			TaskList:   core.TaskList("special"),
		}),
	}))

	none, err := b.GetActivityTask(ctx, []core.TaskList{core.TaskListDefault})
	require.NoError(t, err)
	require.Nil(t, none)

	activityTask, err := b.GetActivityTask(ctx, []core.TaskList{core.TaskListDefault, "special"})
	require.NoError(t, err)
	require.NotNil(t, activityTask)

	_, err = b.GetActivityTask(ctx, nil)
	require.Error(t, err)
}

func Test_SqliteBackend_Timer(t *testing.T) {
	c := clock.NewMock()
	c.Set(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	b := NewInMemoryBackend(WithClock(c))
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.CreateWorkflowInstance(ctx, core.NewWorkflowInstance("instance", "execution"), startedEvent("wf")))

	task, err := b.GetWorkflowTask(ctx)
	require.NoError(t, err)

	timer := history.NewHistoryEvent(c.Now(), history.EventType_TimerStarted, &history.TimerStartedAttributes{
		TimerID: "loop:batch:1",
		Delay:   time.Minute,
		At:      c.Now().Add(time.Minute),
	})
	require.NoError(t, b.CompleteWorkflowTask(ctx, task, core.WorkflowInstanceStateActive, []*history.Event{timer}))

	// Timer has not fired yet
	task, err = b.GetWorkflowTask(ctx)
	require.NoError(t, err)
	require.Nil(t, task)

	stats, err := b.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.PendingTimers)
	require.Equal(t, int64(0), stats.PendingWorkflowTasks)

	c.Add(2 * time.Minute)

	stats, err = b.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), stats.PendingTimers)
	require.Equal(t, int64(1), stats.PendingWorkflowTasks)

	task, err = b.GetWorkflowTask(ctx)
	require.NoError(t, err)
	require.NotNil(t, task)
	require.Equal(t, history.EventType_TimerFired, task.NewEvents[0].Type)
	require.Equal(t, timer.SequenceID, task.NewEvents[0].ScheduleEventID)
	require.Equal(t, "loop:batch:1", task.NewEvents[0].Attributes.(*history.TimerFiredAttributes).TimerID)
}

func Test_SqliteBackend_SubWorkflow(t *testing.T) {
	b := NewInMemoryBackend()
	defer b.Close()

	ctx := context.Background()
	parent := core.NewWorkflowInstance("parent", "execution")
	require.NoError(t, b.CreateWorkflowInstance(ctx, parent, startedEvent("parent")))

	task, err := b.GetWorkflowTask(ctx)
	require.NoError(t, err)

	initiated := history.NewHistoryEvent(time.Now(), history.EventType_SubWorkflowInitiated, &history.SubWorkflowInitiatedAttributes{
		Control:             "child",
		SubWorkflowInstance: core.NewWorkflowInstance("child", "child-execution"),
		Name:                "child-wf",
		Version:             "2.0.0",
		Input:               payload.Payload(`1`),
	})
	require.NoError(t, b.CompleteWorkflowTask(ctx, task, core.WorkflowInstanceStateActive, []*history.Event{initiated}))

	// Either instance may be picked first
	tasks := map[string]*backend.WorkflowTask{}
	for i := 0; i < 2; i++ {
		task, err := b.GetWorkflowTask(ctx)
		require.NoError(t, err)
		require.NotNil(t, task)
		tasks[task.WorkflowInstance.InstanceID] = task
	}

	childTask := tasks["child"]
	require.Equal(t, "child-wf", childTask.Name)
	require.Equal(t, "2.0.0", childTask.Version)
	require.True(t, childTask.WorkflowInstance.SubWorkflow())
	require.Equal(t, initiated.SequenceID, childTask.WorkflowInstance.ParentEventID)
	require.Equal(t, history.EventType_WorkflowExecutionStarted, childTask.NewEvents[0].Type)

	parentTask := tasks["parent"]
	require.Equal(t, history.EventType_SubWorkflowStarted, parentTask.NewEvents[0].Type)
	require.Equal(t, initiated.SequenceID, parentTask.NewEvents[0].ScheduleEventID)
	require.NoError(t, b.CompleteWorkflowTask(ctx, parentTask, core.WorkflowInstanceStateActive, nil))

	require.NoError(t, b.CompleteWorkflowTask(ctx, childTask, core.WorkflowInstanceStateFinished, []*history.Event{
		history.NewHistoryEvent(time.Now(), history.EventType_WorkflowExecutionCompleted, &history.ExecutionCompletedAttributes{
			Result: payload.Payload(`"done"`),
		}),
	}))

	task, err = b.GetWorkflowTask(ctx)
	require.NoError(t, err)
	require.NotNil(t, task)
	require.Equal(t, "parent", task.WorkflowInstance.InstanceID)
	require.Equal(t, history.EventType_SubWorkflowCompleted, task.NewEvents[0].Type)
	require.Equal(t, initiated.SequenceID, task.NewEvents[0].ScheduleEventID)
	require.Equal(t, payload.Payload(`"done"`), task.NewEvents[0].Attributes.(*history.SubWorkflowCompletedAttributes).Result)
}

func Test_SqliteBackend_RemoveWorkflowInstances(t *testing.T) {
	b := NewInMemoryBackend()
	defer b.Close()

	ctx := context.Background()
	finished := core.NewWorkflowInstance("finished", "execution")
	active := core.NewWorkflowInstance("active", "execution")
	require.NoError(t, b.CreateWorkflowInstance(ctx, finished, startedEvent("wf")))

	task, err := b.GetWorkflowTask(ctx)
	require.NoError(t, err)
	require.NoError(t, b.CompleteWorkflowTask(ctx, task, core.WorkflowInstanceStateFinished, []*history.Event{
		history.NewHistoryEvent(time.Now(), history.EventType_WorkflowExecutionCompleted, &history.ExecutionCompletedAttributes{}),
	}))

	require.NoError(t, b.CreateWorkflowInstance(ctx, active, startedEvent("wf")))

	require.NoError(t, b.RemoveWorkflowInstances(ctx, backend.RemoveFinishedBefore(time.Now().Add(time.Hour))))

	_, err = b.GetWorkflowInstanceState(ctx, finished)
	require.ErrorIs(t, err, backend.ErrInstanceNotFound)

	h, err := b.GetWorkflowInstanceHistory(ctx, finished, nil)
	require.NoError(t, err)
	require.Empty(t, h)

	state, err := b.GetWorkflowInstanceState(ctx, active)
	require.NoError(t, err)
	require.Equal(t, core.WorkflowInstanceStateActive, state)
}

func Test_SqliteBackend_PragmaSettings(t *testing.T) {
	t.Run("In-memory database has memory journal mode", func(t *testing.T) {
		b := NewInMemoryBackend()
		defer b.Close()

		var journalMode string
		require.NoError(t, b.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
		require.Equal(t, "memory", journalMode)
	})

	t.Run("File backend has WAL mode", func(t *testing.T) {
		b := NewSqliteBackend(filepath.Join(t.TempDir(), "usher.db"))
		defer b.Close()

		var journalMode string
		require.NoError(t, b.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
		require.Equal(t, "wal", journalMode)
	})
}

func Test_SqliteBackend_BackendTest(t *testing.T) {
	if testing.Short() {
		t.Skip()
	}

	test.BackendTest(t, func() backend.Backend {
		return NewInMemoryBackend()
	}, func(b backend.Backend) {
		require.NoError(t, b.Close())
	})
}

func Test_EndToEndSqliteBackend(t *testing.T) {
	if testing.Short() {
		t.Skip()
	}

	test.EndToEndBackendTest(t, func() backend.Backend {
		return NewInMemoryBackend()
	}, func(b backend.Backend) {
		require.NoError(t, b.Close())
	})
}
