package adapter

import (
	"github.com/rotisserie/eris"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

// Constructor builds a fresh adapter instance for one attempt on target.
type Constructor func(target model.Target, env Env) (Adapter, error)

// Registry maps adapter type names to constructors.
type Registry struct {
	ctors map[string]Constructor
	order []string // insertion order for deterministic listing
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register adds or replaces the constructor for name.
func (r *Registry) Register(name string, c Constructor) {
	if _, ok := r.ctors[name]; !ok {
		r.order = append(r.order, name)
	}
	r.ctors[name] = c
}

// Get returns the constructor registered under name.
func (r *Registry) Get(name string) (Constructor, error) {
	c, ok := r.ctors[name]
	if !ok {
		return nil, eris.Errorf("adapter: unknown adapter %q", name)
	}
	return c, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.ctors[name]
	return ok
}

// New builds an adapter for target using the constructor named by
// target.Adapter.
func (r *Registry) New(target model.Target, env Env) (Adapter, error) {
	c, err := r.Get(target.Adapter)
	if err != nil {
		return nil, err
	}
	a, err := c(target, env)
	if err != nil {
		return nil, eris.Wrapf(err, "adapter: construct %s for %s", target.Adapter, target.Key)
	}
	if a == nil {
		return nil, eris.Errorf("adapter: constructor %s returned nil for %s", target.Adapter, target.Key)
	}
	return a, nil
}

// Names returns all registered adapter names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
