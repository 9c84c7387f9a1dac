package workflow

// Variable binds the run-wide variable named like the task to a value computed from its input.
type Variable struct {
	taskBase

	fn TransformFunc
}

var _ Task = (*Variable)(nil)

func newVariable(name string, deps []string, fn TransformFunc, opts options) *Variable {
	return &Variable{
		taskBase: newTaskBase(name, deps, opts),
		fn:       fn,
	}
}

func (v *Variable) Evaluate(ctx *Context) Status {
	value, err := apply(ctx, v, v.fn)
	if err != nil {
		return ctx.fail(v, "%v", err)
	}

	if err := ctx.SetVariable(v.name, value); err != nil {
		return ctx.fail(v, "%v", err)
	}

	ctx.SetResult(v, value)
	return StatusComplete | StatusResolved
}
