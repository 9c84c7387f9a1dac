package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"

	"github.com/usherflow/usher/backend"
	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/backend/metrics"
	"github.com/usherflow/usher/core"
	"github.com/usherflow/usher/internal/log"
	"github.com/usherflow/usher/internal/metrickeys"
	"github.com/usherflow/usher/internal/workflowerrors"
)

//go:embed db/migrations/*.sql
var migrationsFS embed.FS

func NewInMemoryBackend(opts ...option) *sqliteBackend {
	// A second connection would open a separate in-memory database
	return newSqliteBackend("file::memory:", 1, opts...)
}

func NewSqliteBackend(path string, opts ...option) *sqliteBackend {
	return newSqliteBackend(fmt.Sprintf("file:%v?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path), 0, opts...)
}

func newSqliteBackend(dsn string, maxOpenConns int, opts ...option) *sqliteBackend {
	o := backend.ApplyOptions()
	options := &options{
		Options:         &o,
		ApplyMigrations: true,
		Clock:           clock.New(),
	}

	for _, opt := range opts {
		opt(options)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		panic(err)
	}

	db.SetMaxOpenConns(maxOpenConns)

	workerName := options.WorkerName
	if workerName == "" {
		workerName = fmt.Sprintf("worker-%v", uuid.NewString())
	}

	b := &sqliteBackend{
		db:         db,
		workerName: workerName,
		options:    options,
		clock:      options.Clock,
	}

	if options.ApplyMigrations {
		if err := b.Migrate(); err != nil {
			panic(err)
		}
	}

	return b
}

type sqliteBackend struct {
	db         *sql.DB
	workerName string
	options    *options
	clock      clock.Clock
}

var _ backend.Backend = (*sqliteBackend)(nil)

// Migrate applies any pending database migrations.
func (sb *sqliteBackend) Migrate() error {
	dbi, err := migratesqlite.WithInstance(sb.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	migrations, err := iofs.New(migrationsFS, "db/migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", migrations, "sqlite", dbi)
	if err != nil {
		return fmt.Errorf("creating migration: %w", err)
	}

	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	return nil
}

func (sb *sqliteBackend) Close() error {
	return sb.db.Close()
}

func (sb *sqliteBackend) Logger() *slog.Logger {
	return sb.options.Logger
}

func (sb *sqliteBackend) Tracer() trace.Tracer {
	return sb.options.TracerProvider.Tracer(backend.TracerName)
}

func (sb *sqliteBackend) Metrics() metrics.Client {
	return sb.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: "sqlite"})
}

func (sb *sqliteBackend) Options() *backend.Options {
	return sb.options.Options
}

func (sb *sqliteBackend) now() time.Time {
	return sb.clock.Now().UTC()
}

func (sb *sqliteBackend) CreateWorkflowInstance(ctx context.Context, instance *core.WorkflowInstance, event *history.Event) error {
	a, ok := event.Attributes.(*history.ExecutionStartedAttributes)
	if !ok {
		return fmt.Errorf("expected WorkflowExecutionStarted event, got %v", event.Type)
	}

	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := createInstance(ctx, tx, instance, a, sb.now()); err != nil {
		return err
	}

	// Initial history is empty, store only new events
	if err := insertPendingEvents(ctx, tx, instance, []*history.Event{event}); err != nil {
		return fmt.Errorf("inserting new event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("creating workflow instance: %w", err)
	}

	return nil
}

func createInstance(ctx context.Context, tx *sql.Tx, wfi *core.WorkflowInstance, a *history.ExecutionStartedAttributes, now time.Time) error {
	// Check for existing instance
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM `instances` WHERE id = ? LIMIT 1", wfi.InstanceID).Scan(new(int))
	if err == nil {
		return backend.ErrInstanceAlreadyExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	var parentInstanceID, parentExecutionID *string
	var parentEventID *int64
	if wfi.SubWorkflow() {
		parentInstanceID = &wfi.Parent.InstanceID
		parentExecutionID = &wfi.Parent.ExecutionID
		parentEventID = &wfi.ParentEventID
	}

	version := a.Version
	if version == "" {
		version = core.DefaultVersion
	}

	if _, err := tx.ExecContext(
		ctx,
		"INSERT INTO `instances` (id, execution_id, name, version, parent_instance_id, parent_execution_id, parent_schedule_event_id, state, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		wfi.InstanceID,
		wfi.ExecutionID,
		a.Name,
		version,
		parentInstanceID,
		parentExecutionID,
		parentEventID,
		core.WorkflowInstanceStateActive,
		now,
	); err != nil {
		return fmt.Errorf("inserting workflow instance: %w", err)
	}

	return nil
}

func (sb *sqliteBackend) GetWorkflowInstanceState(ctx context.Context, instance *core.WorkflowInstance) (core.WorkflowInstanceState, error) {
	row := sb.db.QueryRowContext(
		ctx,
		"SELECT state FROM `instances` WHERE id = ? AND execution_id = ?",
		instance.InstanceID,
		instance.ExecutionID,
	)

	var state core.WorkflowInstanceState
	if err := row.Scan(&state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.WorkflowInstanceStateActive, backend.ErrInstanceNotFound
		}

		return core.WorkflowInstanceStateActive, fmt.Errorf("scanning instance state: %w", err)
	}

	return state, nil
}

func (sb *sqliteBackend) GetWorkflowInstanceHistory(ctx context.Context, instance *core.WorkflowInstance, lastSequenceID *int64) ([]*history.Event, error) {
	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	h, err := getHistory(ctx, tx, instance, lastSequenceID)
	if err != nil {
		return nil, fmt.Errorf("getting workflow history: %w", err)
	}

	return h, nil
}

func (sb *sqliteBackend) RemoveWorkflowInstances(ctx context.Context, options ...backend.RemovalOption) error {
	ro := backend.ApplyRemovalOptions(options...)

	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	where := "(instance_id, execution_id) IN (SELECT id, execution_id FROM `instances` WHERE completed_at IS NOT NULL AND completed_at < ?)"
	for _, table := range []string{"history", "pending_events", "activities"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM `%s` WHERE %s", table, where), ro.FinishedBefore.UTC()); err != nil {
			return fmt.Errorf("removing %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(
		ctx,
		"DELETE FROM `instances` WHERE completed_at IS NOT NULL AND completed_at < ?",
		ro.FinishedBefore.UTC(),
	); err != nil {
		return fmt.Errorf("removing instances: %w", err)
	}

	return tx.Commit()
}

// GetWorkflowTask returns a pending decision task or nil if there are no pending workflow executions
func (sb *sqliteBackend) GetWorkflowTask(ctx context.Context) (*backend.WorkflowTask, error) {
	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Lock next workflow task by finding an unlocked instance with new events to process
	// (work around missing LIMIT support in sqlite for UPDATE statements by using sub-query)
	now := sb.now()
	row := tx.QueryRowContext(
		ctx,
		`UPDATE instances
			SET locked_until = ?, worker = ?
			WHERE rowid = (
				SELECT rowid FROM instances i
					WHERE
						(locked_until IS NULL OR locked_until < ?)
						AND state = ? AND completed_at IS NULL
						AND EXISTS (
							SELECT 1
								FROM pending_events
								WHERE instance_id = i.id AND execution_id = i.execution_id AND (visible_at IS NULL OR visible_at <= ?)
						)
					LIMIT 1
			) RETURNING id, execution_id, name, version, parent_instance_id, parent_execution_id, parent_schedule_event_id`,
		now.Add(sb.options.WorkflowLockTimeout), // new locked_until
		sb.workerName,
		now, // locked_until
		core.WorkflowInstanceStateActive,
		now, // event.visible_at
	)

	var instanceID, executionID, name, version string
	var parentInstanceID, parentExecutionID sql.NullString
	var parentEventID sql.NullInt64
	if err := row.Scan(&instanceID, &executionID, &name, &version, &parentInstanceID, &parentExecutionID, &parentEventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("locking workflow task: %w", err)
	}

	var wfi *core.WorkflowInstance
	if parentInstanceID.Valid && parentExecutionID.Valid && parentEventID.Valid {
		wfi = core.NewSubWorkflowInstance(instanceID, executionID, core.NewWorkflowInstance(parentInstanceID.String, parentExecutionID.String), parentEventID.Int64)
	} else {
		wfi = core.NewWorkflowInstance(instanceID, executionID)
	}

	pendingEvents, ids, err := getPendingEvents(ctx, tx, wfi, now)
	if err != nil {
		return nil, err
	}

	// Return if there aren't any new events
	if len(pendingEvents) == 0 {
		return nil, nil
	}

	seq, err := lastSequenceID(ctx, tx, wfi)
	if err != nil {
		return nil, err
	}

	// Move pending events into the history and mark the start of the decision
	newEvents := append(pendingEvents, history.NewHistoryEvent(now, history.EventType_DecisionTaskStarted, &history.DecisionTaskStartedAttributes{
		Identity: sb.workerName,
	}))
	for _, e := range newEvents {
		seq++
		e.SequenceID = seq
	}

	if err := deletePendingEvents(ctx, tx, ids); err != nil {
		return nil, fmt.Errorf("deleting pending events: %w", err)
	}

	if err := insertHistoryEvents(ctx, tx, wfi, newEvents); err != nil {
		return nil, fmt.Errorf("inserting history events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &backend.WorkflowTask{
		ID:                    uuid.NewString(),
		WorkflowInstance:      wfi,
		WorkflowInstanceState: core.WorkflowInstanceStateActive,
		Name:                  name,
		Version:               version,
		LastSequenceID:        seq,
		NewEvents:             newEvents,
	}, nil
}

// CompleteWorkflowTask checkpoints a decision task retrieved using GetWorkflowTask
//
// The events recorded for the decision are appended to the history after a DecisionTaskCompleted
// event. Activity tasks, timers, sub-workflow instances and notifications of the parent instance are
// derived from them.
func (sb *sqliteBackend) CompleteWorkflowTask(
	ctx context.Context,
	task *backend.WorkflowTask,
	state core.WorkflowInstanceState,
	events []*history.Event,
) error {
	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	instance := task.WorkflowInstance
	now := sb.now()

	var completedAt *time.Time
	if state == core.WorkflowInstanceStateFinished {
		completedAt = &now
	}

	// Unlock instance
	if res, err := tx.ExecContext(
		ctx,
		`UPDATE instances SET locked_until = NULL, completed_at = ?, state = ? WHERE id = ? AND execution_id = ? AND worker = ? AND locked_until IS NOT NULL`,
		completedAt,
		state,
		instance.InstanceID,
		instance.ExecutionID,
		sb.workerName,
	); err != nil {
		return fmt.Errorf("unlocking workflow instance: %w", err)
	} else if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("checking for unlocked workflow instances: %w", err)
	} else if n != 1 {
		return errors.New("could not find workflow instance to unlock")
	}

	seq, err := lastSequenceID(ctx, tx, instance)
	if err != nil {
		return err
	}

	executed := append([]*history.Event{
		history.NewHistoryEvent(now, history.EventType_DecisionTaskCompleted, &history.DecisionTaskCompletedAttributes{}),
	}, events...)
	for _, e := range executed {
		seq++
		e.SequenceID = seq
	}

	if err := insertHistoryEvents(ctx, tx, instance, executed); err != nil {
		return fmt.Errorf("inserting new history events: %w", err)
	}

	for _, e := range events {
		if err := sb.applyEvent(ctx, tx, task, e, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing complete workflow transaction: %w", err)
	}

	return nil
}

// applyEvent derives the side effects of an event recorded by a decision.
func (sb *sqliteBackend) applyEvent(ctx context.Context, tx *sql.Tx, task *backend.WorkflowTask, e *history.Event, now time.Time) error {
	instance := task.WorkflowInstance

	switch a := e.Attributes.(type) {
	case *history.ActivityScheduledAttributes:
		if err := scheduleActivity(ctx, tx, instance, e); err != nil {
			return fmt.Errorf("scheduling activity: %w", err)
		}

	case *history.TimerStartedAttributes:
		visibleAt := a.At
		if visibleAt.IsZero() {
			visibleAt = now.Add(a.Delay)
		}

		sb.options.Logger.Debug("Scheduling timer", log.AtKey, visibleAt, log.ScheduleEventIDKey, e.SequenceID)

		if err := insertPendingEvents(ctx, tx, instance, []*history.Event{
			history.NewHistoryEvent(now, history.EventType_TimerFired, &history.TimerFiredAttributes{
				TimerID: a.TimerID,
				At:      visibleAt,
			}, history.ScheduleEventID(e.SequenceID), history.VisibleAt(visibleAt)),
		}); err != nil {
			return fmt.Errorf("scheduling timer: %w", err)
		}

	case *history.SubWorkflowInitiatedAttributes:
		if err := sb.startSubWorkflow(ctx, tx, instance, e, a, now); err != nil {
			return fmt.Errorf("starting sub-workflow: %w", err)
		}

	case *history.ExecutionCompletedAttributes:
		if instance.SubWorkflow() {
			return notifyParent(ctx, tx, instance, history.NewHistoryEvent(now, history.EventType_SubWorkflowCompleted, &history.SubWorkflowCompletedAttributes{
				Result: a.Result,
			}, history.ScheduleEventID(instance.ParentEventID)))
		}

	case *history.ExecutionFailedAttributes:
		if instance.SubWorkflow() {
			return notifyParent(ctx, tx, instance, history.NewHistoryEvent(now, history.EventType_SubWorkflowFailed, &history.SubWorkflowFailedAttributes{
				Reason: a.Reason,
				Error:  a.Error,
			}, history.ScheduleEventID(instance.ParentEventID)))
		}
	}

	return nil
}

func (sb *sqliteBackend) startSubWorkflow(ctx context.Context, tx *sql.Tx, parent *core.WorkflowInstance, e *history.Event, a *history.SubWorkflowInitiatedAttributes, now time.Time) error {
	instanceID, executionID := uuid.NewString(), uuid.NewString()
	if a.SubWorkflowInstance != nil {
		instanceID, executionID = a.SubWorkflowInstance.InstanceID, a.SubWorkflowInstance.ExecutionID
	}

	child := core.NewSubWorkflowInstance(instanceID, executionID, parent, e.SequenceID)

	started := &history.ExecutionStartedAttributes{
		Name:        a.Name,
		Version:     a.Version,
		Input:       a.Input,
		TagList:     a.TagList,
		ChildPolicy: a.ChildPolicy,
		Timeouts:    a.Timeouts,
	}

	if err := createInstance(ctx, tx, child, started, now); err != nil {
		if errors.Is(err, backend.ErrInstanceAlreadyExists) {
			return insertPendingEvents(ctx, tx, parent, []*history.Event{
				history.NewHistoryEvent(now, history.EventType_SubWorkflowFailed, &history.SubWorkflowFailedAttributes{
					Reason: "StartFailed",
					Error:  workflowerrors.FromError(backend.ErrInstanceAlreadyExists),
				}, history.ScheduleEventID(e.SequenceID)),
			})
		}

		return err
	}

	if err := insertPendingEvents(ctx, tx, child, []*history.Event{
		history.NewHistoryEvent(now, history.EventType_WorkflowExecutionStarted, started),
	}); err != nil {
		return err
	}

	return insertPendingEvents(ctx, tx, parent, []*history.Event{
		history.NewHistoryEvent(now, history.EventType_SubWorkflowStarted, &history.SubWorkflowStartedAttributes{},
			history.ScheduleEventID(e.SequenceID)),
	})
}

func notifyParent(ctx context.Context, tx *sql.Tx, instance *core.WorkflowInstance, e *history.Event) error {
	if err := insertPendingEvents(ctx, tx, instance.Parent, []*history.Event{e}); err != nil {
		return fmt.Errorf("notifying parent workflow instance: %w", err)
	}

	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
