package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Runner executes the type-specific work of a job.
type Runner interface {
	Run(ctx context.Context, job *Job) error
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func(ctx context.Context, job *Job) error

// Run calls f(ctx, job).
func (f RunnerFunc) Run(ctx context.Context, job *Job) error { return f(ctx, job) }

// Constructor builds the Runner for a job type.
type Constructor func() Runner

// Registry maps job type names to constructors.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Constructor
}

// NewRegistry creates an empty job type registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Constructor)}
}

// Register associates name with ctor, replacing any previous entry.
func (r *Registry) Register(name string, ctor Constructor) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[name] = ctor
	return name
}

// Deregister removes name. Removing an unknown name is a no-op.
func (r *Registry) Deregister(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.types, name)
	return name
}

// Resolve returns the constructor registered for name.
func (r *Registry) Resolve(name string) (Constructor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.types[name]
	if !ok || ctor == nil {
		return nil, fmt.Errorf("%w: a type has not been registered for %q", ErrUnregisteredJobType, name)
	}
	return ctor, nil
}

// Names returns the registered type names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
