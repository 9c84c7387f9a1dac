package client

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/usherflow/usher/backend"
	"github.com/usherflow/usher/backend/converter"
	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/core"
	"github.com/usherflow/usher/internal/metrics"
	"github.com/usherflow/usher/internal/workflowerrors"
)

func newMockBackend() *backend.MockBackend {
	b := &backend.MockBackend{}
	b.On("Tracer").Return(noop.NewTracerProvider().Tracer("test"))
	b.On("Logger").Return(slog.Default()).Maybe()
	b.On("Metrics").Return(metrics.NewNoopMetricsClient()).Maybe()
	b.On("Options").Return(&backend.Options{Converter: converter.DefaultConverter}).Maybe()

	return b
}

func Test_Client_CreateWorkflowInstance(t *testing.T) {
	ctx := context.Background()

	b := newMockBackend()
	b.On("CreateWorkflowInstance", mock.Anything, mock.MatchedBy(func(wfi *core.WorkflowInstance) bool {
		return wfi.InstanceID == "id" && wfi.ExecutionID != ""
	}), mock.MatchedBy(func(event *history.Event) bool {
		a, ok := event.Attributes.(*history.ExecutionStartedAttributes)
		return ok &&
			event.Type == history.EventType_WorkflowExecutionStarted &&
			a.Name == "order" &&
			a.Version == "2.0.0" &&
			string(a.Input) == `{"qty":2}` &&
			a.Timeouts == core.DefaultWorkflowTimeouts
	})).Return(nil)

	c := &Client{
		backend: b,
		clock:   clock.New(),
	}

	wfi, err := c.CreateWorkflowInstance(ctx, WorkflowInstanceOptions{
		InstanceID: "id",
	}, "order", "2.0.0", map[string]int{"qty": 2})
	require.NoError(t, err)
	require.Equal(t, "id", wfi.InstanceID)
	b.AssertExpectations(t)
}

func Test_Client_CreateWorkflowInstance_Defaults(t *testing.T) {
	ctx := context.Background()

	b := newMockBackend()
	b.On("CreateWorkflowInstance", mock.Anything, mock.MatchedBy(func(wfi *core.WorkflowInstance) bool {
		_, err := uuid.Parse(wfi.InstanceID)
		return err == nil
	}), mock.MatchedBy(func(event *history.Event) bool {
		a := event.Attributes.(*history.ExecutionStartedAttributes)
		return a.Version == core.DefaultVersion
	})).Return(nil)

	c := New(b)

	_, err := c.CreateWorkflowInstance(ctx, WorkflowInstanceOptions{}, "order", "", nil)
	require.NoError(t, err)
	b.AssertExpectations(t)
}

func Test_Client_CreateWorkflowInstance_AlreadyExists(t *testing.T) {
	ctx := context.Background()

	b := newMockBackend()
	b.On("CreateWorkflowInstance", mock.Anything, mock.Anything, mock.Anything).Return(backend.ErrInstanceAlreadyExists)

	c := New(b)

	wfi, err := c.CreateWorkflowInstance(ctx, WorkflowInstanceOptions{InstanceID: "id"}, "order", "", nil)
	require.Nil(t, wfi)
	require.ErrorIs(t, err, backend.ErrInstanceAlreadyExists)
}

func Test_Client_GetWorkflowResultTimeout(t *testing.T) {
	instance := core.NewWorkflowInstance(uuid.NewString(), "test")

	ctx := context.Background()

	b := newMockBackend()
	b.On("GetWorkflowInstanceState", mock.Anything, instance).Return(core.WorkflowInstanceStateActive, nil)

	c := &Client{
		backend: b,
		clock:   clock.New(),
	}

	result, err := GetWorkflowResult[int](ctx, c, instance, time.Microsecond*1)
	require.Zero(t, result)
	require.EqualError(t, err, "workflow did not finish in time: workflow did not finish in specified timeout")
	b.AssertExpectations(t)
}

func Test_Client_GetWorkflowResult(t *testing.T) {
	r, _ := converter.DefaultConverter.To(42)

	tests := []struct {
		name    string
		last    *history.Event
		want    int
		wantErr func(t *testing.T, err error)
	}{
		{
			name: "completed",
			last: history.NewHistoryEvent(time.Now(), history.EventType_WorkflowExecutionCompleted, &history.ExecutionCompletedAttributes{
				Result: r,
			}),
			want: 42,
		},
		{
			name: "completed without output",
			last: history.NewHistoryEvent(time.Now(), history.EventType_WorkflowExecutionCompleted, &history.ExecutionCompletedAttributes{}),
			want: 0,
		},
		{
			name: "failed",
			last: history.NewHistoryEvent(time.Now(), history.EventType_WorkflowExecutionFailed, &history.ExecutionFailedAttributes{
				Reason: "TaskFailed",
				Error:  workflowerrors.FromError(errors.New("B: broken")),
			}),
			wantErr: func(t *testing.T, err error) {
				var wfe *WorkflowFailedError
				require.ErrorAs(t, err, &wfe)
				require.Equal(t, "TaskFailed", wfe.Reason)
				require.EqualError(t, err, "workflow failed: TaskFailed: B: broken")
			},
		},
		{
			name: "terminated",
			last: history.NewHistoryEvent(time.Now(), history.EventType_WorkflowExecutionTerminated, &history.ExecutionTerminatedAttributes{}),
			wantErr: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrWorkflowTerminated)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instance := core.NewWorkflowInstance(uuid.NewString(), "test")
			mockClock := clock.NewMock()

			b := newMockBackend()
			b.On("GetWorkflowInstanceState", mock.Anything, instance).Return(core.WorkflowInstanceStateActive, nil).Once().Run(func(args mock.Arguments) {
				// After the first call, advance the clock to immediately go to the second call below
				mockClock.Add(time.Second)
			})
			b.On("GetWorkflowInstanceState", mock.Anything, instance).Return(core.WorkflowInstanceStateFinished, nil)
			b.On("GetWorkflowInstanceHistory", mock.Anything, instance, (*int64)(nil)).Return([]*history.Event{
				history.NewHistoryEvent(time.Now(), history.EventType_WorkflowExecutionStarted, &history.ExecutionStartedAttributes{}),
				tt.last,
			}, nil)

			c := &Client{
				backend: b,
				clock:   mockClock,
			}

			result, err := GetWorkflowResult[int](context.Background(), c, instance, 0)
			if tt.wantErr != nil {
				tt.wantErr(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, result)
		})
	}
}

func Test_Client_WaitForWorkflowInstance_Canceled(t *testing.T) {
	instance := core.NewWorkflowInstance(uuid.NewString(), "test")

	ctx, cancel := context.WithCancel(context.Background())

	b := newMockBackend()
	b.On("GetWorkflowInstanceState", mock.Anything, instance).Return(core.WorkflowInstanceStateActive, nil).Run(func(mock.Arguments) {
		cancel()
	})

	c := New(b)

	err := c.WaitForWorkflowInstance(ctx, instance, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}

func Test_Client_RunAutoExpiration(t *testing.T) {
	mockClock := clock.NewMock()
	removed := make(chan struct{}, 1)

	b := newMockBackend()
	b.On("RemoveWorkflowInstances", mock.Anything, mock.MatchedBy(func(opt backend.RemovalOption) bool {
		o := backend.ApplyRemovalOptions(opt)
		return !o.FinishedBefore.IsZero() && o.FinishedBefore.Before(mockClock.Now())
	})).Return(nil).Run(func(mock.Arguments) {
		select {
		case removed <- struct{}{}:
		default:
		}
	})

	c := &Client{
		backend: b,
		clock:   mockClock,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- c.RunAutoExpiration(ctx, time.Minute, time.Hour)
	}()

	require.Eventually(t, func() bool {
		mockClock.Add(time.Minute)

		select {
		case <-removed:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
