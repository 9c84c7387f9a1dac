package workflow

import "github.com/usherflow/usher/core"

// Definition is a named and versioned workflow. Its root fragment is built with the embedded
// Fragment builder.
type Definition struct {
	*Fragment

	Name string

	// Version is the version of the definition. The registry treats it as a semver constraint.
	Version string
}

func NewDefinition(name, version string) *Definition {
	if version == "" {
		version = core.DefaultVersion
	}

	return &Definition{
		Fragment: NewFragment(),
		Name:     name,
		Version:  version,
	}
}
