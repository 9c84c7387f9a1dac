package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/core"
)

const eventColumns = "event_id, event_type, timestamp, schedule_event_id, attributes, visible_at"

type Scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row Scanner, dest ...any) (*history.Event, error) {
	var attributes []byte

	e := &history.Event{}

	fields := append([]any{&e.ID, &e.Type, &e.Timestamp, &e.ScheduleEventID, &attributes, &e.VisibleAt}, dest...)
	if err := row.Scan(fields...); err != nil {
		return nil, fmt.Errorf("scanning event: %w", err)
	}

	a, err := history.DeserializeAttributes(e.Type, attributes)
	if err != nil {
		return nil, fmt.Errorf("deserializing attributes: %w", err)
	}

	e.Attributes = a

	return e, nil
}

func scanEvents(rows *sql.Rows, withSequenceID bool) ([]*history.Event, []int64, error) {
	defer rows.Close()

	events := make([]*history.Event, 0)
	ids := make([]int64, 0)

	for rows.Next() {
		var id int64
		var e *history.Event
		var err error

		if withSequenceID {
			var sequenceID int64
			e, err = scanEvent(rows, &id, &sequenceID)
			if e != nil {
				e.SequenceID = sequenceID
			}
		} else {
			e, err = scanEvent(rows, &id)
		}
		if err != nil {
			return nil, nil, err
		}

		events = append(events, e)
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return events, ids, nil
}

// getPendingEvents returns the pending events of the instance visible at now, with their row ids.
func getPendingEvents(ctx context.Context, tx *sql.Tx, instance *core.WorkflowInstance, now time.Time) ([]*history.Event, []int64, error) {
	rows, err := tx.QueryContext(
		ctx,
		"SELECT "+eventColumns+", id FROM `pending_events` WHERE instance_id = ? AND execution_id = ? AND (visible_at IS NULL OR visible_at <= ?) ORDER BY id",
		instance.InstanceID,
		instance.ExecutionID,
		now,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("getting pending events: %w", err)
	}

	return scanEvents(rows, false)
}

func getHistory(ctx context.Context, tx *sql.Tx, instance *core.WorkflowInstance, lastSequenceID *int64) ([]*history.Event, error) {
	var rows *sql.Rows
	var err error

	if lastSequenceID != nil {
		rows, err = tx.QueryContext(
			ctx,
			"SELECT "+eventColumns+", id, sequence_id FROM `history` WHERE instance_id = ? AND execution_id = ? AND sequence_id > ? ORDER BY sequence_id",
			instance.InstanceID,
			instance.ExecutionID,
			*lastSequenceID,
		)
	} else {
		rows, err = tx.QueryContext(
			ctx,
			"SELECT "+eventColumns+", id, sequence_id FROM `history` WHERE instance_id = ? AND execution_id = ? ORDER BY sequence_id",
			instance.InstanceID,
			instance.ExecutionID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("getting history: %w", err)
	}

	events, _, err := scanEvents(rows, true)
	return events, err
}

func lastSequenceID(ctx context.Context, tx *sql.Tx, instance *core.WorkflowInstance) (int64, error) {
	var id sql.NullInt64
	if err := tx.QueryRowContext(
		ctx,
		"SELECT MAX(sequence_id) FROM `history` WHERE instance_id = ? AND execution_id = ?",
		instance.InstanceID,
		instance.ExecutionID,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("getting most recent sequence id: %w", err)
	}

	return id.Int64, nil
}

func insertPendingEvents(ctx context.Context, tx *sql.Tx, instance *core.WorkflowInstance, events []*history.Event) error {
	const batchSize = 20
	for batchStart := 0; batchStart < len(events); batchStart += batchSize {
		batchEvents := events[batchStart:min(batchStart+batchSize, len(events))]

		query := "INSERT INTO `pending_events` (event_id, instance_id, execution_id, event_type, timestamp, schedule_event_id, attributes, visible_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)" +
			strings.Repeat(", (?, ?, ?, ?, ?, ?, ?, ?)", len(batchEvents)-1)

		args := make([]any, 0, len(batchEvents)*8)

		for _, e := range batchEvents {
			a, err := history.SerializeAttributes(e.Attributes)
			if err != nil {
				return err
			}

			args = append(args, e.ID, instance.InstanceID, instance.ExecutionID, e.Type, e.Timestamp.UTC(), e.ScheduleEventID, a, utc(e.VisibleAt))
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	return nil
}

// insertHistoryEvents appends events to the history. Events need to carry their sequence id.
func insertHistoryEvents(ctx context.Context, tx *sql.Tx, instance *core.WorkflowInstance, events []*history.Event) error {
	const batchSize = 20
	for batchStart := 0; batchStart < len(events); batchStart += batchSize {
		batchEvents := events[batchStart:min(batchStart+batchSize, len(events))]

		query := "INSERT INTO `history` (event_id, sequence_id, instance_id, execution_id, event_type, timestamp, schedule_event_id, attributes, visible_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)" +
			strings.Repeat(", (?, ?, ?, ?, ?, ?, ?, ?, ?)", len(batchEvents)-1)

		args := make([]any, 0, len(batchEvents)*9)

		for _, e := range batchEvents {
			a, err := history.SerializeAttributes(e.Attributes)
			if err != nil {
				return err
			}

			args = append(args, e.ID, e.SequenceID, instance.InstanceID, instance.ExecutionID, e.Type, e.Timestamp.UTC(), e.ScheduleEventID, a, utc(e.VisibleAt))
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	return nil
}

func deletePendingEvents(ctx context.Context, tx *sql.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := tx.ExecContext(
		ctx,
		fmt.Sprintf("DELETE FROM `pending_events` WHERE id IN (?%v)", strings.Repeat(",?", len(ids)-1)),
		args...,
	)

	return err
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	u := t.UTC()
	return &u
}
