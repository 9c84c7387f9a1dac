package workflow

// Step schedules an activity and resolves with the activity's result.
type Step struct {
	taskBase
}

var _ Task = (*Step)(nil)

func newStep(name string, deps []string, opts options) *Step {
	return &Step{
		taskBase: newTaskBase(name, deps, opts),
	}
}

func (s *Step) Evaluate(ctx *Context) Status {
	l := ctx.activity(s)

	switch {
	case l.Failed():
		return ctx.fail(s, "%s", failureReason(l))

	case l.Completed():
		result, err := ctx.decode(l.Result)
		if err != nil {
			return ctx.fail(s, "decoding result: %v", err)
		}

		ctx.SetResult(s, result)
		return StatusComplete | StatusResolved

	case l.Outstanding():
		return StatusOutstanding
	}

	input, err := ctx.Input(s)
	if err != nil {
		return ctx.fail(s, "composing input: %v", err)
	}

	activityType, err := s.activityType(input)
	if err != nil {
		return ctx.fail(s, "activity type: %v", err)
	}

	if err := ctx.ScheduleActivity(s, activityType, s.opts.version, input); err != nil {
		return ctx.fail(s, "%v", err)
	}

	return StatusScheduled
}

// activityType is the configured activity type, the type computed from the input, or the task
// name.
func (s *Step) activityType(input any) (string, error) {
	if s.opts.activityTypeFn != nil {
		name, err := s.opts.activityTypeFn(input)
		if err != nil {
			return "", err
		}

		if name != "" {
			return name, nil
		}
	}

	if s.opts.activityType != "" {
		return s.opts.activityType, nil
	}

	return s.name, nil
}
