package sqlite

import (
	"context"
	"fmt"

	"github.com/usherflow/usher/backend"
	"github.com/usherflow/usher/core"
)

func (sb *sqliteBackend) GetStats(ctx context.Context) (*backend.Stats, error) {
	s := &backend.Stats{}

	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(
		ctx,
		"SELECT COUNT(*) FROM instances i WHERE i.completed_at IS NULL",
	)
	if err := row.Scan(&s.ActiveWorkflowInstances); err != nil {
		return nil, fmt.Errorf("failed to scan active instances: %w", err)
	}

	// Get workflow instances ready to be picked up
	now := sb.now()
	row = tx.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM instances i
			WHERE
				(i.locked_until IS NULL OR i.locked_until < ?)
				AND i.state = ? AND i.completed_at IS NULL
				AND EXISTS (
					SELECT 1
						FROM pending_events
						WHERE instance_id = i.id AND execution_id = i.execution_id AND (visible_at IS NULL OR visible_at <= ?)
				)`,
		now,                              // locked_until
		core.WorkflowInstanceStateActive, // state
		now,                              // pending_event.visible_at
	)
	if err := row.Scan(&s.PendingWorkflowTasks); err != nil {
		return nil, fmt.Errorf("failed to scan pending workflow tasks: %w", err)
	}

	// Get pending activities
	row = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM activities WHERE locked_until IS NULL OR locked_until < ?", now)
	if err := row.Scan(&s.PendingActivities); err != nil {
		return nil, fmt.Errorf("failed to scan pending activities: %w", err)
	}

	// Timers are pending events that become visible once they fire
	row = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM pending_events WHERE visible_at IS NOT NULL AND visible_at > ?", now)
	if err := row.Scan(&s.PendingTimers); err != nil {
		return nil, fmt.Errorf("failed to scan pending timers: %w", err)
	}

	return s, nil
}
