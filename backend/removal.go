package backend

import (
	"time"
)

// RemovalOptions select the finished workflow instances RemoveWorkflowInstances deletes.
type RemovalOptions struct {
	FinishedBefore time.Time
}

type RemovalOption func(o *RemovalOptions)

// RemoveFinishedBefore removes instances that finished before t. Without it, all finished
// instances are removed.
func RemoveFinishedBefore(t time.Time) RemovalOption {
	return func(o *RemovalOptions) {
		o.FinishedBefore = t
	}
}

func ApplyRemovalOptions(opts ...RemovalOption) RemovalOptions {
	var options RemovalOptions

	for _, opt := range opts {
		opt(&options)
	}

	if options.FinishedBefore.IsZero() {
		options.FinishedBefore = time.Now()
	}

	return options
}
