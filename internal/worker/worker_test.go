package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type testResult struct {
	Output string
}

type mockTaskWorker struct {
	mock.Mock
}

func (m *mockTaskWorker) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockTaskWorker) Get(ctx context.Context) (*testTask, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*testTask), args.Error(1)
}

func (m *mockTaskWorker) Execute(ctx context.Context, task *testTask) (*testResult, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*testResult), args.Error(1)
}

func (m *mockTaskWorker) Complete(ctx context.Context, result *testResult, task *testTask) error {
	args := m.Called(ctx, result, task)
	return args.Error(0)
}

func newTestWorker(tw *mockTaskWorker, options *WorkerOptions) *Worker[testTask, testResult] {
	return NewWorker[testTask, testResult](slog.Default(), tw, options)
}

func Test_Worker_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	tw := &mockTaskWorker{}
	tw.On("Start", mock.Anything).Return(nil)
	tw.On("Get", mock.Anything).Return(nil, nil)

	w := newTestWorker(tw, &WorkerOptions{
		Pollers:         2,
		PollingInterval: time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	time.Sleep(10 * time.Millisecond)
	cancel()

	require.NoError(t, w.WaitForCompletion())
	tw.AssertExpectations(t)
}

func Test_Worker_StartError(t *testing.T) {
	tw := &mockTaskWorker{}
	tw.On("Start", mock.Anything).Return(errors.New("start error"))

	w := newTestWorker(tw, &WorkerOptions{Pollers: 1})

	err := w.Start(context.Background())
	require.ErrorContains(t, err, "starting task worker")
	require.ErrorContains(t, err, "start error")
}

func Test_Worker_ExecutesTasks(t *testing.T) {
	defer goleak.VerifyNone(t)

	task := &testTask{ID: 1, Data: "a"}
	result := &testResult{Output: "done"}
	completed := make(chan struct{})

	tw := &mockTaskWorker{}
	tw.On("Start", mock.Anything).Return(nil)
	tw.On("Get", mock.Anything).Return(task, nil).Once()
	tw.On("Get", mock.Anything).Return(nil, nil)
	tw.On("Execute", mock.Anything, task).Return(result, nil)
	tw.On("Complete", mock.Anything, result, task).Return(nil).Run(func(mock.Arguments) {
		close(completed)
	})

	w := newTestWorker(tw, &WorkerOptions{
		Pollers:         1,
		PollingInterval: time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	select {
	case <-completed:
	case <-time.After(time.Second):
		require.Fail(t, "task was not completed")
	}

	cancel()
	require.NoError(t, w.WaitForCompletion())
	tw.AssertExpectations(t)
}

func Test_Worker_RetriesPollErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	task := &testTask{ID: 2}
	result := &testResult{}
	completed := make(chan struct{})

	tw := &mockTaskWorker{}
	tw.On("Start", mock.Anything).Return(nil)
	tw.On("Get", mock.Anything).Return(nil, errors.New("unavailable")).Times(3)
	tw.On("Get", mock.Anything).Return(task, nil).Once()
	tw.On("Get", mock.Anything).Return(nil, nil)
	tw.On("Execute", mock.Anything, task).Return(result, nil)
	tw.On("Complete", mock.Anything, result, task).Return(nil).Run(func(mock.Arguments) {
		close(completed)
	})

	w := newTestWorker(tw, &WorkerOptions{
		Pollers:                1,
		PollingInterval:        time.Millisecond,
		BackoffInitialInterval: time.Millisecond,
		BackoffMaxInterval:     5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	select {
	case <-completed:
	case <-time.After(time.Second):
		require.Fail(t, "task was not completed after poll errors")
	}

	cancel()
	require.NoError(t, w.WaitForCompletion())
	tw.AssertNumberOfCalls(t, "Execute", 1)
}

func Test_Worker_MaxParallelTasks(t *testing.T) {
	defer goleak.VerifyNone(t)

	var running, maxRunning, executed atomic.Int32
	release := make(chan struct{})

	tw := &mockTaskWorker{}
	tw.On("Start", mock.Anything).Return(nil)
	tw.On("Get", mock.Anything).Return(&testTask{}, nil)
	tw.On("Execute", mock.Anything, mock.Anything).Return(&testResult{}, nil).Run(func(mock.Arguments) {
		n := running.Add(1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}

		<-release
		running.Add(-1)
		executed.Add(1)
	})
	tw.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	w := newTestWorker(tw, &WorkerOptions{
		Pollers:          4,
		MaxParallelTasks: 2,
		PollingInterval:  time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	require.Eventually(t, func() bool {
		return running.Load() == 2
	}, time.Second, time.Millisecond)

	// No further task is started while both slots are taken
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(2), running.Load())

	cancel()

	close(release)

	require.NoError(t, w.WaitForCompletion())
	require.Equal(t, int32(2), maxRunning.Load())
	require.GreaterOrEqual(t, executed.Load(), int32(2))
}

func Test_Worker_Poll(t *testing.T) {
	tests := []struct {
		name     string
		get      []any
		wantTask bool
		wantErr  bool
	}{
		{
			name:     "task",
			get:      []any{&testTask{ID: 1}, nil},
			wantTask: true,
		},
		{
			name: "timeout returns no task",
			get:  []any{nil, context.DeadlineExceeded},
		},
		{
			name:    "error",
			get:     []any{nil, errors.New("get error")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := &mockTaskWorker{}
			tw.On("Get", mock.Anything).Return(tt.get...)

			w := newTestWorker(tw, &WorkerOptions{Pollers: 1})

			task, err := w.poll(context.Background(), 0)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			require.Equal(t, tt.wantTask, task != nil)
		})
	}
}

func Test_Worker_Handle(t *testing.T) {
	task := &testTask{ID: 1}
	result := &testResult{Output: "ok"}

	t.Run("execution error", func(t *testing.T) {
		tw := &mockTaskWorker{}
		tw.On("Execute", mock.Anything, task).Return(nil, errors.New("boom"))

		w := newTestWorker(tw, &WorkerOptions{Pollers: 1})

		err := w.handle(context.Background(), task)
		require.ErrorContains(t, err, "executing task: boom")
		tw.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("completion error", func(t *testing.T) {
		completeErr := errors.New("complete error")

		tw := &mockTaskWorker{}
		tw.On("Execute", mock.Anything, task).Return(result, nil)
		tw.On("Complete", mock.Anything, result, task).Return(completeErr)

		w := newTestWorker(tw, &WorkerOptions{Pollers: 1})

		err := w.handle(context.Background(), task)
		require.ErrorIs(t, err, completeErr)
	})
}
