package target

import (
	"fmt"

	"github.com/papapumpkin/buildscript/internal/dag"
)

// Spec is one row of the registration table: the static description of a
// kind together with the initializer that constructs its instances.
type Spec struct {
	Kind     Kind
	Name     string
	Doc      string
	Flags    Flags
	Requires []Kind
	Init     Initializer
}

// Depends marks every declared dependency of s at least Dependency in r.
func (s Spec) Depends(r *Recipe) {
	for _, dep := range s.Requires {
		r.MarkDependency(dep)
	}
}

// Registry is the ordered registration table. Declaration order is the
// order of every lifecycle pass.
type Registry struct {
	specs  []Spec
	byName map[string]Kind
	graph  *dag.DAG
}

// NewRegistry validates specs and builds a registry. Kinds must be dense and
// in declaration order (specs[i].Kind == i), names unique and non-empty, every
// spec must carry an Initializer, and declared dependencies must be acyclic.
func NewRegistry(specs ...Spec) (*Registry, error) {
	r := &Registry{
		specs:  make([]Spec, len(specs)),
		byName: make(map[string]Kind, len(specs)),
		graph:  dag.New(),
	}
	for i, s := range specs {
		if int(s.Kind) != i {
			return nil, fmt.Errorf("%w: %q declared at position %d has kind %d", ErrInvalidRegistry, s.Name, i, s.Kind)
		}
		if s.Name == "" || s.Name == GoalAll || s.Name == GoalRun {
			return nil, fmt.Errorf("%w: kind %d has reserved or empty name %q", ErrInvalidRegistry, i, s.Name)
		}
		if s.Init == nil {
			return nil, fmt.Errorf("%w: %q has no initializer", ErrInvalidRegistry, s.Name)
		}
		if err := r.graph.AddNode(s.Name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
		}
		r.byName[s.Name] = s.Kind
		r.specs[i] = s
	}
	for _, s := range specs {
		for _, dep := range s.Requires {
			if dep < 0 || int(dep) >= len(specs) {
				return nil, fmt.Errorf("%w: %q requires undeclared kind %d", ErrInvalidRegistry, s.Name, dep)
			}
			if err := r.graph.AddEdge(s.Name, specs[dep].Name); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidRegistry, err)
			}
		}
	}
	return r, nil
}

// Len returns the number of registered kinds.
func (r *Registry) Len() int {
	return len(r.specs)
}

// Kinds returns every kind in declaration order.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, len(r.specs))
	for i := range r.specs {
		kinds[i] = Kind(i)
	}
	return kinds
}

// Spec returns the registration row for k.
func (r *Registry) Spec(k Kind) Spec {
	return r.specs[k]
}

// Name returns the operator-facing name of k.
func (r *Registry) Name(k Kind) string {
	return r.specs[k].Name
}

// Lookup resolves an operator-facing name to its kind.
func (r *Registry) Lookup(name string) (Kind, bool) {
	k, ok := r.byName[name]
	return k, ok
}

// Supervisor returns the kind flagged as the process supervisor, if any.
func (r *Registry) Supervisor() (Kind, bool) {
	for _, s := range r.specs {
		if s.Flags.Supervisor {
			return s.Kind, true
		}
	}
	return 0, false
}

// Closure returns every kind k transitively requires, in declaration order.
func (r *Registry) Closure(k Kind) []Kind {
	names := r.graph.Ancestors(r.specs[k].Name)
	kinds := make([]Kind, len(names))
	for i, n := range names {
		kinds[i] = r.byName[n]
	}
	return kinds
}

// BuildOrder returns kinds so that every dependency precedes its dependents.
// Lifecycle passes use declaration order; this is reported for diagnostics.
func (r *Registry) BuildOrder() []Kind {
	names, err := r.graph.TopologicalSort()
	if err != nil {
		// NewRegistry rejects cycles.
		panic(err)
	}
	kinds := make([]Kind, len(names))
	for i, n := range names {
		kinds[i] = r.byName[n]
	}
	return kinds
}
