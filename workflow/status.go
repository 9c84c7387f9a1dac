package workflow

import "strings"

// Status is the outcome of evaluating a task in one tick. Flags are orthogonal, a task may carry
// more than one of them.
type Status uint16

const (
	// StatusPending means the dependencies of the task are not resolved yet.
	StatusPending Status = 1 << iota

	// StatusScheduled means the task emitted a command in this tick.
	StatusScheduled

	// StatusOutstanding means the task was scheduled earlier and has not finished yet.
	StatusOutstanding

	// StatusComplete means the task finished, successfully or as a false branch.
	StatusComplete

	// StatusResolved means dependents may consume the result of the task.
	StatusResolved

	StatusFailed

	// StatusTerminate ends the workflow.
	StatusTerminate
)

var statusNames = []struct {
	s    Status
	name string
}{
	{StatusPending, "pending"},
	{StatusScheduled, "scheduled"},
	{StatusOutstanding, "outstanding"},
	{StatusComplete, "complete"},
	{StatusResolved, "resolved"},
	{StatusFailed, "failed"},
	{StatusTerminate, "terminate"},
}

// Has reports whether all of the given flags are set.
func (s Status) Has(flags Status) bool {
	return s&flags == flags
}

func (s Status) String() string {
	names := make([]string, 0, 2)
	for _, n := range statusNames {
		if s.Has(n.s) {
			names = append(names, n.name)
		}
	}

	if len(names) == 0 {
		return "none"
	}

	return strings.Join(names, "|")
}
