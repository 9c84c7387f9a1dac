package executor

import (
	"fmt"
	"log/slog"

	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/internal/command"
	"github.com/usherflow/usher/internal/log"
	"github.com/usherflow/usher/internal/workflowerrors"
	"github.com/usherflow/usher/internal/workflowstate"
	"github.com/usherflow/usher/workflow"
)

// Result is the outcome of one decision tick.
type Result struct {
	// Commands emitted by the tick in emission order. Schedule and timer commands are dropped once
	// the verdict is terminal.
	Commands []command.Command

	Verdict Verdict

	// Output is the root output of the run, computed for every verdict.
	Output any
}

type tickOptions struct {
	logger *slog.Logger
}

type TickOption func(o *tickOptions)

func WithLogger(logger *slog.Logger) TickOption {
	return func(o *tickOptions) {
		o.logger = logger
	}
}

// EvaluateTick replays events up to horizon and evaluates def against the result. A nil rootInput
// uses the input the run was started with. Only definition errors and panics raised by task
// functions are returned as errors, task failures are part of the verdict.
func EvaluateTick(
	def *workflow.Definition,
	rootInput any,
	events []*history.Event,
	horizon int64,
	namespace string,
	localVariables map[string]any,
	opts ...TickOption,
) (result *Result, err error) {
	options := tickOptions{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow definition %q: %w", def.Name, err)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = workflowerrors.NewPanicError(fmt.Sprintf("panic while evaluating tick: %v", r))
		}
	}()

	snapshot := workflowstate.Fold(events, horizon)
	if snapshot.Terminated() {
		return &Result{
			Commands: []command.Command{},
			Verdict:  Verdict{Kind: VerdictTerminated},
		}, nil
	}

	if orphans := snapshot.Orphans(); len(orphans) > 0 {
		options.logger.Warn("History contains events without initiating event", log.OrphansKey, len(orphans))
	}

	if rootInput == nil {
		rootInput = snapshot.WorkflowInput()
	}

	batch := command.NewBatch()
	ctx := workflow.NewContext(snapshot, batch, options.logger, namespace, rootInput, localVariables)

	if err := workflow.Execute(def.Fragment, ctx); err != nil {
		return nil, err
	}

	output := rootOutput(def, ctx)
	verdict := verdictOf(ctx, output)

	commands := batch.Commands()
	if verdict.Terminal() {
		commands = markersOnly(commands)
	}

	return &Result{
		Commands: commands,
		Verdict:  verdict,
		Output:   output,
	}, nil
}

func verdictOf(ctx *workflow.Context, output any) Verdict {
	switch {
	case ctx.Failed():
		return Verdict{Kind: VerdictFailed, Failures: ctx.Failures()}

	// A Stop ends the run successfully
	case ctx.Terminated(), ctx.Success():
		return Verdict{Kind: VerdictSucceeded, Result: output}

	default:
		return Verdict{Kind: VerdictPending}
	}
}

// rootOutput is the result override, the result of the single resolved terminal task, or the
// results of all resolved terminal tasks by name. Without resolved terminal tasks it is the results
// of all tasks.
func rootOutput(def *workflow.Definition, ctx *workflow.Context) any {
	if v, ok := ctx.Override(); ok {
		return v
	}

	results := map[string]any{}
	for _, t := range def.Terminal() {
		if s, ok := ctx.Status(t.Name()); !ok || !s.Has(workflow.StatusResolved) {
			continue
		}

		results[t.Name()], _ = ctx.Result(t.Name())
	}

	switch len(results) {
	case 0:
		// Runs ended by a Stop task have no resolved terminal task
		return ctx.Results()
	case 1:
		for _, v := range results {
			return v
		}
	}

	return results
}

func markersOnly(commands []command.Command) []command.Command {
	r := make([]command.Command, 0, len(commands))
	for _, c := range commands {
		if _, ok := c.(*command.RecordMarkerCommand); ok {
			r = append(r, c)
		}
	}

	return r
}
