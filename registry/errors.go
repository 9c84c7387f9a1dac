package registry

import "fmt"

type ErrInvalidWorkflow struct {
	msg string
	err error
}

func (e *ErrInvalidWorkflow) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}

	return e.msg
}

func (e *ErrInvalidWorkflow) Unwrap() error {
	return e.err
}

type ErrWorkflowAlreadyRegistered struct {
	msg string
}

func (e *ErrWorkflowAlreadyRegistered) Error() string {
	return e.msg
}

type ErrInvalidActivity struct {
	msg string
	err error
}

func (e *ErrInvalidActivity) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}

	return e.msg
}

func (e *ErrInvalidActivity) Unwrap() error {
	return e.err
}

type ErrActivityAlreadyRegistered struct {
	msg string
}

func (e *ErrActivityAlreadyRegistered) Error() string {
	return e.msg
}

// ErrNotFound is returned when nothing is registered under a name.
type ErrNotFound struct {
	Kind string
	Name string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// ErrNoValidVersion is returned when registrations exist for a name, but none of them satisfies the
// requested version.
type ErrNoValidVersion struct {
	Kind    string
	Name    string
	Version string
}

func (e *ErrNoValidVersion) Error() string {
	return fmt.Sprintf("no %s %q satisfies version %s", e.Kind, e.Name, e.Version)
}
