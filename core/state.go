package core

type WorkflowInstanceState int

const (
	WorkflowInstanceStateActive WorkflowInstanceState = iota
	WorkflowInstanceStateFinished
)

func (s WorkflowInstanceState) String() string {
	switch s {
	case WorkflowInstanceStateActive:
		return "Active"
	case WorkflowInstanceStateFinished:
		return "Finished"
	default:
		return "Unknown"
	}
}
