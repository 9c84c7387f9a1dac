package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/usherflow/usher/internal/log"
)

// TaskWorker leases, executes and completes one kind of task.
type TaskWorker[Task, Result any] interface {
	// Start is called once before polling begins.
	Start(context.Context) error

	// Get returns the next task or nil if none is available.
	Get(context.Context) (*Task, error)
	Execute(context.Context, *Task) (*Result, error)
	Complete(context.Context, *Result, *Task) error
}

// Worker polls a TaskWorker for tasks and executes them concurrently.
type Worker[Task, TaskResult any] struct {
	options *WorkerOptions

	tw TaskWorker[Task, TaskResult]

	wq *workQueue[Task]

	logger *slog.Logger

	pollersWg sync.WaitGroup

	dispatcherDone chan struct{}
}

type WorkerOptions struct {
	Pollers int

	MaxParallelTasks int

	// PollingInterval is the delay between polls when no task was available.
	PollingInterval time.Duration

	// BackoffInitialInterval and BackoffMaxInterval bound the exponential delay between polls after
	// errors. The delay is reset after the first successful poll.
	BackoffInitialInterval time.Duration
	BackoffMaxInterval     time.Duration
}

func NewWorker[Task, TaskResult any](
	logger *slog.Logger, tw TaskWorker[Task, TaskResult], options *WorkerOptions,
) *Worker[Task, TaskResult] {
	if options.Pollers <= 0 {
		options.Pollers = 1
	}

	return &Worker[Task, TaskResult]{
		tw:             tw,
		options:        options,
		wq:             newWorkQueue[Task](options.MaxParallelTasks),
		logger:         logger,
		dispatcherDone: make(chan struct{}),
	}
}

// Start starts the pollers and the dispatcher. Canceling ctx stops polling, tasks already
// dispatched run to completion.
func (w *Worker[Task, TaskResult]) Start(ctx context.Context) error {
	if err := w.tw.Start(ctx); err != nil {
		return fmt.Errorf("starting task worker: %w", err)
	}

	w.pollersWg.Add(w.options.Pollers)

	for i := 0; i < w.options.Pollers; i++ {
		go w.poller(ctx)
	}

	go w.dispatcher()

	return nil
}

// WaitForCompletion waits for the pollers to stop and all dispatched tasks to finish. It must only
// be called after the context passed to Start is canceled.
func (w *Worker[Task, TaskResult]) WaitForCompletion() error {
	w.pollersWg.Wait()

	close(w.wq.tasks)
	<-w.dispatcherDone

	return nil
}

func (w *Worker[Task, TaskResult]) poller(ctx context.Context) {
	defer w.pollersWg.Done()

	b := w.newBackOff()
	attempt := 0

	for {
		if err := w.wq.reserve(ctx); err != nil {
			return
		}

		task, err := w.poll(ctx, 30*time.Second)
		if err != nil {
			w.wq.release()

			if ctx.Err() != nil {
				return
			}

			attempt++
			delay := b.NextBackOff()
			w.logger.ErrorContext(ctx, "error polling task", "error", err,
				log.AttemptKey, attempt,
				log.DurationKey, delay.Milliseconds())

			if !sleep(ctx, delay) {
				return
			}

			continue
		}

		if attempt > 0 {
			attempt = 0
			b.Reset()
		}

		if task != nil {
			if err := w.wq.add(ctx, task); err != nil {
				w.wq.release()
				return
			}

			continue // check for new tasks right away
		}

		w.wq.release()

		if !sleep(ctx, w.options.PollingInterval) {
			return
		}
	}
}

func (w *Worker[Task, TaskResult]) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if w.options.BackoffInitialInterval > 0 {
		b.InitialInterval = w.options.BackoffInitialInterval
	}
	if w.options.BackoffMaxInterval > 0 {
		b.MaxInterval = w.options.BackoffMaxInterval
	}

	// Keep retrying until the worker is stopped
	b.MaxElapsedTime = 0
	b.Reset()

	return b
}

func (w *Worker[Task, TaskResult]) dispatcher() {
	var wg sync.WaitGroup

	for t := range w.wq.tasks {
		t := t
		wg.Add(1)

		go func() {
			defer wg.Done()
			defer w.wq.release()

			// Create new context to allow tasks to complete when root context is canceled
			taskCtx := context.Background()
			if err := w.handle(taskCtx, t); err != nil {
				w.logger.ErrorContext(taskCtx, "error handling task", "error", err)
			}
		}()
	}

	wg.Wait()

	close(w.dispatcherDone)
}

func (w *Worker[Task, TaskResult]) handle(ctx context.Context, t *Task) error {
	result, err := w.tw.Execute(ctx, t)
	if err != nil {
		return fmt.Errorf("executing task: %w", err)
	}

	return w.tw.Complete(ctx, result, t)
}

func (w *Worker[Task, TaskResult]) poll(ctx context.Context, timeout time.Duration) (*Task, error) {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	task, err := w.tw.Get(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}

		return nil, err
	}

	return task, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
