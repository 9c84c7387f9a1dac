package tester

import (
	"log/slog"

	"github.com/usherflow/usher/backend/converter"
)

type options struct {
	Logger    *slog.Logger
	Converter converter.Converter

	// MaxTicks bounds the number of decision ticks of all runs of a test.
	MaxTicks int
}

type WorkflowTesterOption func(*options)

func WithLogger(logger *slog.Logger) WorkflowTesterOption {
	return func(o *options) {
		o.Logger = logger
	}
}

func WithConverter(converter converter.Converter) WorkflowTesterOption {
	return func(o *options) {
		o.Converter = converter
	}
}

func WithMaxTicks(n int) WorkflowTesterOption {
	return func(o *options) {
		o.MaxTicks = n
	}
}
