package backend

// Stats is a point-in-time view of the work held by a backend.
type Stats struct {
	// ActiveWorkflowInstances are runs that have not finished yet.
	ActiveWorkflowInstances int64

	// PendingWorkflowTasks are runs with new events waiting for their next tick.
	PendingWorkflowTasks int64

	// PendingActivities are scheduled activities no worker has leased yet.
	PendingActivities int64

	// PendingTimers are timers started by a tick that have not fired yet.
	PendingTimers int64
}
