package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingDependency = errors.New("missing dependency")
	ErrCyclicDependency  = errors.New("cyclic dependency")
	ErrDuplicateTask     = errors.New("duplicate task")
	ErrInvalidTaskName   = errors.New("invalid task name")
)

// MissingDependencyError is returned when a task depends on a task that is not part of the same
// fragment.
type MissingDependencyError struct {
	Task       string
	Dependency string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on unknown task %q", e.Task, e.Dependency)
}

func (e *MissingDependencyError) Unwrap() error {
	return ErrMissingDependency
}

// CyclicDependencyError is returned when the tasks of a fragment cannot be ordered.
type CyclicDependencyError struct {
	// Cycle lists the task names forming the cycle, the first task is repeated at the end.
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency: %s", strings.Join(e.Cycle, " -> "))
}

func (e *CyclicDependencyError) Unwrap() error {
	return ErrCyclicDependency
}

// Failure describes a task that failed.
type Failure struct {
	// Task is the correlation id of the failed task.
	Task string `json:"task"`

	Reason string `json:"reason"`
}
