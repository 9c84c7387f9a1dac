package workflow

// DecisionFunc decides a branch from the branch input.
type DecisionFunc func(input any) (bool, error)

// Branch is a conditional fork. A false branch is complete but never resolved, so its dependents
// stay pending.
type Branch struct {
	taskBase

	fn DecisionFunc
}

var _ Task = (*Branch)(nil)

func newBranch(name string, deps []string, fn DecisionFunc) *Branch {
	return &Branch{
		taskBase: newTaskBase(name, deps, defaultOptions),
		fn:       fn,
	}
}

func (b *Branch) Evaluate(ctx *Context) Status {
	decision := true

	if b.fn != nil {
		input, err := ctx.Input(b)
		if err != nil {
			return ctx.fail(b, "composing input: %v", err)
		}

		if decision, err = b.fn(input); err != nil {
			return ctx.fail(b, "%v", err)
		}
	}

	ctx.SetResult(b, decision)

	if !decision {
		return StatusComplete
	}

	return StatusComplete | StatusResolved
}
