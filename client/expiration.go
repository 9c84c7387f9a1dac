package client

import (
	"context"
	"time"

	"github.com/usherflow/usher/backend"
	"github.com/usherflow/usher/internal/log"
)

// RunAutoExpiration removes, every interval, the workflow instances that finished more than
// retention ago. It blocks until ctx is canceled.
func (c *Client) RunAutoExpiration(ctx context.Context, interval, retention time.Duration) error {
	ticker := c.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			before := c.clock.Now().Add(-retention)

			if err := c.RemoveWorkflowInstances(ctx, backend.RemoveFinishedBefore(before)); err != nil {
				c.backend.Logger().Error("Could not remove expired workflow instances", "error", err, log.AtKey, before)
			}
		}
	}
}
