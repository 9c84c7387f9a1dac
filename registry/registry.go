package registry

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/usherflow/usher/core"
	"github.com/usherflow/usher/workflow"
)

// Activity runs the work of a scheduled activity. input is the decoded input of the task.
type Activity func(ctx context.Context, input any) (any, error)

// Registry routes workflow and activity tasks to registered implementations by name and version.
type Registry struct {
	sync.Mutex

	workflowMap map[string][]*versioned[*workflow.Definition]
	activityMap map[string][]*versioned[Activity]
}

// New creates a new registry instance.
func New() *Registry {
	return &Registry{
		workflowMap: make(map[string][]*versioned[*workflow.Definition]),
		activityMap: make(map[string][]*versioned[Activity]),
	}
}

type registerConfig struct {
	Name    string
	Version string
}

// RegisterWorkflow registers def under its name. The definition version is treated as a semver
// constraint, so a definition with version "1.x" handles runs started for "1.2.0".
func (r *Registry) RegisterWorkflow(def *workflow.Definition, opts ...RegisterOption) error {
	if def == nil {
		return &ErrInvalidWorkflow{msg: "workflow definition is nil"}
	}

	cfg := registerOptions(opts).applyRegisterOptions(registerConfig{
		Name:    def.Name,
		Version: def.Version,
	})

	if cfg.Name == "" {
		return &ErrInvalidWorkflow{msg: "workflow has no name"}
	}

	if err := def.Validate(); err != nil {
		return &ErrInvalidWorkflow{msg: fmt.Sprintf("workflow %q is invalid", cfg.Name), err: err}
	}

	v, err := newVersioned(cfg.Version, def)
	if err != nil {
		return &ErrInvalidWorkflow{msg: fmt.Sprintf("workflow %q has invalid version %q", cfg.Name, cfg.Version), err: err}
	}

	r.Lock()
	defer r.Unlock()

	for _, existing := range r.workflowMap[cfg.Name] {
		if existing.version == cfg.Version {
			return &ErrWorkflowAlreadyRegistered{fmt.Sprintf("workflow with name %q and version %q already registered", cfg.Name, cfg.Version)}
		}
	}

	r.workflowMap[cfg.Name] = insertVersioned(r.workflowMap[cfg.Name], v)

	return nil
}

// RegisterActivity registers fn under name. Without WithVersion the activity handles
// core.DefaultVersion.
func (r *Registry) RegisterActivity(name string, fn Activity, opts ...RegisterOption) error {
	cfg := registerOptions(opts).applyRegisterOptions(registerConfig{
		Name:    name,
		Version: core.DefaultVersion,
	})

	if !core.ValidName(cfg.Name) {
		return &ErrInvalidActivity{msg: fmt.Sprintf("invalid activity name %q", cfg.Name)}
	}

	if fn == nil {
		return &ErrInvalidActivity{msg: fmt.Sprintf("activity %q has no function", cfg.Name)}
	}

	v, err := newVersioned(cfg.Version, fn)
	if err != nil {
		return &ErrInvalidActivity{msg: fmt.Sprintf("activity %q has invalid version %q", cfg.Name, cfg.Version), err: err}
	}

	r.Lock()
	defer r.Unlock()

	for _, existing := range r.activityMap[cfg.Name] {
		if existing.version == cfg.Version {
			return &ErrActivityAlreadyRegistered{fmt.Sprintf("activity with name %q and version %q already registered", cfg.Name, cfg.Version)}
		}
	}

	r.activityMap[cfg.Name] = insertVersioned(r.activityMap[cfg.Name], v)

	return nil
}

// GetWorkflow returns the first registered definition, in ascending version order, whose version
// constraint is satisfied by version. Short versions like "1" are padded to "1.0.0".
func (r *Registry) GetWorkflow(name, version string) (*workflow.Definition, error) {
	r.Lock()
	defer r.Unlock()

	list, ok := r.workflowMap[name]
	if !ok {
		return nil, &ErrNotFound{Kind: "workflow", Name: name}
	}

	if def, ok := match(list, version); ok {
		return def, nil
	}

	return nil, &ErrNoValidVersion{Kind: "workflow", Name: name, Version: version}
}

// GetActivity returns the activity registered under name handling version.
func (r *Registry) GetActivity(name, version string) (Activity, error) {
	r.Lock()
	defer r.Unlock()

	if version == "" {
		version = core.DefaultVersion
	}

	list, ok := r.activityMap[name]
	if !ok {
		return nil, &ErrNotFound{Kind: "activity", Name: name}
	}

	if fn, ok := match(list, version); ok {
		return fn, nil
	}

	return nil, &ErrNoValidVersion{Kind: "activity", Name: name, Version: version}
}

// Workflows returns the sorted names of all registered workflows.
func (r *Registry) Workflows() []string {
	r.Lock()
	defer r.Unlock()

	names := make([]string, 0, len(r.workflowMap))
	for name := range r.workflowMap {
		names = append(names, name)
	}

	slices.Sort(names)
	return names
}
