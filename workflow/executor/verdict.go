package executor

import "github.com/usherflow/usher/workflow"

type VerdictKind int

const (
	// VerdictPending means the run is waiting for outstanding work.
	VerdictPending VerdictKind = iota
	VerdictSucceeded
	VerdictFailed

	// VerdictTerminated means the service terminated the run. Runs ended by a Stop task succeed.
	VerdictTerminated
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictPending:
		return "Pending"
	case VerdictSucceeded:
		return "Succeeded"
	case VerdictFailed:
		return "Failed"
	case VerdictTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Verdict is the workflow level outcome of a tick.
type Verdict struct {
	Kind VerdictKind

	// Result is the root result of a succeeded run.
	Result any

	// Failures lists the failed tasks of a failed run.
	Failures []workflow.Failure
}

// Terminal reports whether the run ends with this tick.
func (v Verdict) Terminal() bool {
	return v.Kind != VerdictPending
}
