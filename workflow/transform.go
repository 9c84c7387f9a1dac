package workflow

import "errors"

// TransformFunc computes a value from the task input.
type TransformFunc func(input any) (any, error)

var errNoFunction = errors.New("no function configured")

// Transform computes its result from its input.
type Transform struct {
	taskBase

	fn TransformFunc
}

var _ Task = (*Transform)(nil)

func newTransform(name string, deps []string, fn TransformFunc, opts options) *Transform {
	return &Transform{
		taskBase: newTaskBase(name, deps, opts),
		fn:       fn,
	}
}

func (t *Transform) Evaluate(ctx *Context) Status {
	v, err := apply(ctx, t, t.fn)
	if err != nil {
		return ctx.fail(t, "%v", err)
	}

	ctx.SetResult(t, v)
	return StatusComplete | StatusResolved
}

// ResultOverride replaces the output of the fragment it belongs to. The last override evaluated in
// a tick wins.
type ResultOverride struct {
	taskBase

	fn TransformFunc
}

var _ Task = (*ResultOverride)(nil)

func newResultOverride(name string, deps []string, fn TransformFunc, opts options) *ResultOverride {
	return &ResultOverride{
		taskBase: newTaskBase(name, deps, opts),
		fn:       fn,
	}
}

func (r *ResultOverride) Evaluate(ctx *Context) Status {
	v, err := apply(ctx, r, r.fn)
	if err != nil {
		return ctx.fail(r, "%v", err)
	}

	ctx.SetResult(r, v)
	ctx.SetOutput(v)

	return StatusComplete | StatusResolved
}

func apply(ctx *Context, t Task, fn TransformFunc) (any, error) {
	if fn == nil {
		return nil, errNoFunction
	}

	input, err := ctx.Input(t)
	if err != nil {
		return nil, err
	}

	return fn(input)
}
