package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/usherflow/usher/backend"
	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/backend/metrics"
	"github.com/usherflow/usher/core"
	"github.com/usherflow/usher/internal/log"
	"github.com/usherflow/usher/internal/metrickeys"
	"github.com/usherflow/usher/internal/tracing"
	"github.com/usherflow/usher/internal/workflowerrors"
)

var ErrWorkflowTerminated = errors.New("workflow terminated")

// WorkflowFailedError is returned for runs that finished with a failure.
type WorkflowFailedError struct {
	Reason string
	Err    error
}

func (e *WorkflowFailedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("workflow failed: %s", e.Reason)
	}

	return fmt.Sprintf("workflow failed: %s: %v", e.Reason, e.Err)
}

func (e *WorkflowFailedError) Unwrap() error {
	return e.Err
}

type WorkflowInstanceOptions struct {
	// InstanceID of the new instance. A random id is used when empty.
	InstanceID string

	TagList []string

	// Timeouts declared with the run. Zero durations use core.DefaultWorkflowTimeouts.
	Timeouts core.WorkflowTimeouts
}

type Client struct {
	backend backend.Backend
	clock   clock.Clock
}

func New(backend backend.Backend) *Client {
	return &Client{
		backend: backend,
		clock:   clock.New(),
	}
}

// CreateWorkflowInstance starts a run of the given workflow. input is the root input of the run.
func (c *Client) CreateWorkflowInstance(ctx context.Context, options WorkflowInstanceOptions, name, version string, input any) (*core.WorkflowInstance, error) {
	if name == "" {
		return nil, errors.New("workflow name is required")
	}

	if version == "" {
		version = core.DefaultVersion
	}

	in, err := c.backend.Options().Converter.To(input)
	if err != nil {
		return nil, fmt.Errorf("converting input: %w", err)
	}

	instanceID := options.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	wfi := core.NewWorkflowInstance(instanceID, uuid.NewString())

	ctx, span := c.backend.Tracer().Start(ctx, fmt.Sprintf("CreateWorkflowInstance: %s", name), trace.WithAttributes(
		attribute.String(tracing.WorkflowInstanceID, wfi.InstanceID),
		attribute.String(tracing.WorkflowName, name),
		attribute.String(tracing.WorkflowVersion, version),
	))
	defer span.End()

	timeouts := options.Timeouts
	if timeouts.TaskStartToClose <= 0 {
		timeouts.TaskStartToClose = core.DefaultWorkflowTimeouts.TaskStartToClose
	}
	if timeouts.ExecutionStartToClose <= 0 {
		timeouts.ExecutionStartToClose = core.DefaultWorkflowTimeouts.ExecutionStartToClose
	}

	startedEvent := history.NewHistoryEvent(
		c.clock.Now(),
		history.EventType_WorkflowExecutionStarted,
		&history.ExecutionStartedAttributes{
			Name:        name,
			Version:     version,
			Input:       in,
			TagList:     options.TagList,
			ChildPolicy: core.ChildPolicyTerminate,
			Timeouts:    timeouts,
		})

	if err := c.backend.CreateWorkflowInstance(ctx, wfi, startedEvent); err != nil {
		return nil, tracing.WithSpanError(span, fmt.Errorf("creating workflow instance: %w", err))
	}

	c.backend.Logger().Debug(
		"Created workflow instance",
		log.InstanceIDKey, wfi.InstanceID,
		log.ExecutionIDKey, wfi.ExecutionID,
		log.WorkflowNameKey, name,
		log.WorkflowVersionKey, version,
	)

	c.backend.Metrics().Counter(metrickeys.WorkflowInstanceCreated, metrics.Tags{
		metrickeys.WorkflowName: name,
	}, 1)

	return wfi, nil
}

// WaitForWorkflowInstance waits for the given workflow instance to finish or until the given timeout has expired.
func (c *Client) WaitForWorkflowInstance(ctx context.Context, instance *core.WorkflowInstance, timeout time.Duration) error {
	if timeout == 0 {
		timeout = time.Second * 20
	}

	ctx, span := c.backend.Tracer().Start(ctx, "WaitForWorkflowInstance", trace.WithAttributes(
		attribute.String(tracing.WorkflowInstanceID, instance.InstanceID),
	))
	defer span.End()

	b := backoff.ExponentialBackOff{
		InitialInterval:     time.Millisecond * 1,
		MaxInterval:         time.Second * 1,
		Multiplier:          1.5,
		RandomizationFactor: 0.5,
		MaxElapsedTime:      timeout,
		Stop:                backoff.Stop,
		Clock:               c.clock,
	}
	b.Reset()

	ticker := backoff.NewTicker(backoff.WithContext(&b, ctx))
	defer ticker.Stop()

	for range ticker.C {
		s, err := c.backend.GetWorkflowInstanceState(ctx, instance)
		if err != nil {
			return fmt.Errorf("getting workflow state: %w", err)
		}

		if s == core.WorkflowInstanceStateFinished {
			return nil
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return errors.New("workflow did not finish in specified timeout")
}

// GetWorkflowResult gets the workflow result for the given workflow result. It first waits for the workflow to finish or until
// the given timeout has expired.
//
// Runs ended by a Stop task return their output like completed runs.
func GetWorkflowResult[T any](ctx context.Context, c *Client, instance *core.WorkflowInstance, timeout time.Duration) (T, error) {
	b := c.backend

	ctx, span := b.Tracer().Start(ctx, "GetWorkflowResult", trace.WithAttributes(
		attribute.String(tracing.WorkflowInstanceID, instance.InstanceID),
	))
	defer span.End()

	if err := c.WaitForWorkflowInstance(ctx, instance, timeout); err != nil {
		return *new(T), fmt.Errorf("workflow did not finish in time: %w", err)
	}

	h, err := b.GetWorkflowInstanceHistory(ctx, instance, nil)
	if err != nil {
		return *new(T), fmt.Errorf("getting workflow history: %w", err)
	}

	// Iterate over history backwards
	for i := len(h) - 1; i >= 0; i-- {
		event := h[i]
		switch event.Type {
		case history.EventType_WorkflowExecutionCompleted:
			a := event.Attributes.(*history.ExecutionCompletedAttributes)

			var r T
			if a.Result.Empty() {
				return r, nil
			}

			if err := b.Options().Converter.From(a.Result, &r); err != nil {
				return *new(T), fmt.Errorf("converting result: %w", err)
			}

			return r, nil

		case history.EventType_WorkflowExecutionFailed:
			a := event.Attributes.(*history.ExecutionFailedAttributes)

			return *new(T), &WorkflowFailedError{
				Reason: a.Reason,
				Err:    workflowerrors.ToError(a.Error),
			}

		case history.EventType_WorkflowExecutionTerminated:
			return *new(T), ErrWorkflowTerminated
		}
	}

	return *new(T), errors.New("workflow finished, but could not find result event")
}

// RemoveWorkflowInstances removes finished workflow instances from the backend.
func (c *Client) RemoveWorkflowInstances(ctx context.Context, options ...backend.RemovalOption) error {
	ctx, span := c.backend.Tracer().Start(ctx, "RemoveWorkflowInstances")
	defer span.End()

	return tracing.WithSpanError(span, c.backend.RemoveWorkflowInstances(ctx, options...))
}
