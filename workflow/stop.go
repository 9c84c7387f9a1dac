package workflow

// Stop ends the workflow once its dependencies are resolved.
type Stop struct {
	taskBase
}

var _ Task = (*Stop)(nil)

func newStop(name string, deps []string) *Stop {
	return &Stop{
		taskBase: newTaskBase(name, deps, defaultOptions),
	}
}

func (s *Stop) Evaluate(*Context) Status {
	return StatusTerminate
}
