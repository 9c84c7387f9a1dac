package workflow

import "github.com/usherflow/usher/core"

// SubWorkflow starts another workflow and resolves with its result.
type SubWorkflow struct {
	taskBase

	workflowName    string
	workflowVersion string
}

var _ Task = (*SubWorkflow)(nil)

func newSubWorkflow(name string, deps []string, workflowName, workflowVersion string, opts options) *SubWorkflow {
	if workflowName == "" {
		workflowName = name
	}

	if workflowVersion == "" {
		workflowVersion = core.DefaultVersion
	}

	return &SubWorkflow{
		taskBase:        newTaskBase(name, deps, opts),
		workflowName:    workflowName,
		workflowVersion: workflowVersion,
	}
}

func (s *SubWorkflow) Evaluate(ctx *Context) Status {
	l := ctx.subWorkflow(s)

	switch {
	case l.Failed():
		if s.opts.ignoreFailures {
			ctx.Logger().Debug("Ignoring sub-workflow failure", "reason", failureReason(l))
			ctx.SetResult(s, nil)
			return StatusComplete | StatusResolved
		}

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

	name, version, err := s.workflowType(input)
	if err != nil {
		return ctx.fail(s, "workflow type: %v", err)
	}

	tags := s.opts.tagList
	if s.opts.tagListFn != nil {
		if tags, err = s.opts.tagListFn(input); err != nil {
			return ctx.fail(s, "tag list: %v", err)
		}
	}

	if err := ctx.ScheduleSubWorkflow(s, name, version, input, tags); err != nil {
		return ctx.fail(s, "%v", err)
	}

	return StatusScheduled
}

func (s *SubWorkflow) workflowType(input any) (string, string, error) {
	name, version := s.workflowName, s.workflowVersion

	if s.opts.workflowTypeFn != nil {
		n, v, err := s.opts.workflowTypeFn(input)
		if err != nil {
			return "", "", err
		}

		if n != "" {
			name = n
			if v != "" {
				version = v
			}
		}
	}

	return name, version, nil
}
