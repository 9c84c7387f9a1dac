package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/usherflow/usher/backend"
	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/core"
)

func scheduleActivity(ctx context.Context, tx *sql.Tx, instance *core.WorkflowInstance, event *history.Event) error {
	attributes, err := history.SerializeAttributes(event.Attributes)
	if err != nil {
		return err
	}

	taskList := core.TaskListDefault
	if a, ok := event.Attributes.(*history.ActivityScheduledAttributes); ok && a.TaskList != "" {
		taskList = a.TaskList
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO activities
			(id, instance_id, execution_id, task_list, event_type, timestamp, sequence_id, attributes) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		instance.InstanceID,
		instance.ExecutionID,
		string(taskList),
		event.Type,
		event.Timestamp.UTC(),
		event.SequenceID,
		attributes,
	)

	return err
}

// GetActivityTask returns a pending activity task or nil if there are no pending activities
func (sb *sqliteBackend) GetActivityTask(ctx context.Context, taskLists []core.TaskList) (*backend.ActivityTask, error) {
	if len(taskLists) == 0 {
		return nil, errors.New("no task lists provided")
	}

	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := sb.now()
	args := []any{
		now.Add(sb.options.ActivityLockTimeout), // new locked_until
		sb.workerName,
		now, // locked_until
	}

	for _, tl := range taskLists {
		args = append(args, string(tl))
	}

	// Lock next activity
	// (work around missing LIMIT support in sqlite for UPDATE statements by using sub-query)
	row := tx.QueryRowContext(
		ctx,
		fmt.Sprintf(`UPDATE activities
			SET locked_until = ?, worker = ?
			WHERE rowid = (
				SELECT rowid FROM activities
					WHERE (locked_until IS NULL OR locked_until < ?) AND task_list IN (%s)
					ORDER BY timestamp
					LIMIT 1
			) RETURNING id, event_type, timestamp, sequence_id, attributes, instance_id, execution_id`, placeholders(len(taskLists))),
		args...,
	)

	var instanceID, executionID string
	var attributes []byte
	event := &history.Event{}

	if err := row.Scan(&event.ID, &event.Type, &event.Timestamp, &event.SequenceID, &attributes, &instanceID, &executionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No activity locked
			return nil, nil
		}

		return nil, fmt.Errorf("locking activity task: %w", err)
	}

	a, err := history.DeserializeAttributes(event.Type, attributes)
	if err != nil {
		return nil, fmt.Errorf("deserializing attributes: %w", err)
	}

	event.Attributes = a

	instance := core.NewWorkflowInstance(instanceID, executionID)

	if err := insertPendingEvents(ctx, tx, instance, []*history.Event{
		history.NewHistoryEvent(now, history.EventType_ActivityStarted, &history.ActivityStartedAttributes{
			Identity: sb.workerName,
		}, history.ScheduleEventID(event.SequenceID)),
	}); err != nil {
		return nil, fmt.Errorf("recording activity start: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &backend.ActivityTask{
		ID:               event.ID,
		WorkflowInstance: instance,
		Event:            event,
	}, nil
}

// CompleteActivityTask removes the activity task and hands result to its workflow instance.
func (sb *sqliteBackend) CompleteActivityTask(ctx context.Context, task *backend.ActivityTask, result *history.Event) error {
	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	instance := task.WorkflowInstance

	// Remove activity
	if res, err := tx.ExecContext(
		ctx,
		`DELETE FROM activities WHERE instance_id = ? AND execution_id = ? AND id = ? AND worker = ?`,
		instance.InstanceID,
		instance.ExecutionID,
		task.ID,
		sb.workerName,
	); err != nil {
		return fmt.Errorf("deleting activity: %w", err)
	} else if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("checking for deleted activities: %w", err)
	} else if n != 1 {
		return errors.New("could not find activity to delete")
	}

	if result.ScheduleEventID == 0 {
		result.ScheduleEventID = task.Event.SequenceID
	}

	if err := insertPendingEvents(ctx, tx, instance, []*history.Event{result}); err != nil {
		return fmt.Errorf("inserting new events for completed activity: %w", err)
	}

	return tx.Commit()
}
