package target

import "fmt"

// Pseudo-goals accepted alongside kind names.
const (
	GoalAll = "all"
	GoalRun = "run"
)

// Recipe is the per-invocation enablement table indexed by Kind.
type Recipe struct {
	reg *Registry
	en  []Enablement
}

// NewRecipe returns a recipe with every kind of r Disabled.
func NewRecipe(r *Registry) *Recipe {
	return &Recipe{reg: r, en: make([]Enablement, r.Len())}
}

// Get returns the enablement of k.
func (r *Recipe) Get(k Kind) Enablement {
	return r.en[k]
}

// MarkBuild requests k explicitly and marks its dependencies.
func (r *Recipe) MarkBuild(k Kind) {
	prev := r.en[k]
	r.en[k] = Build
	if !prev.Enabled() {
		r.reg.Spec(k).Depends(r)
	}
}

// MarkDependency raises k to at least Dependency and marks its dependencies.
func (r *Recipe) MarkDependency(k Kind) {
	prev := r.en[k]
	r.en[k] = prev.Merge(Dependency)
	if !prev.Enabled() {
		r.reg.Spec(k).Depends(r)
	}
}

// Enabled returns the kinds that will be constructed, in declaration order.
func (r *Recipe) Enabled() []Kind {
	var kinds []Kind
	for i, e := range r.en {
		if e.Enabled() {
			kinds = append(kinds, Kind(i))
		}
	}
	return kinds
}

// Goals is the parsed operator selection.
type Goals struct {
	Recipe *Recipe
	Run    bool // start services after building
}

// ParseGoals turns operator-supplied names into a propagated recipe.
// "all" marks every non-deprecated kind Build; "run" enables the run phases
// and marks the supervisor kind Build. Unknown names fail with
// ErrUnknownTarget before anything is marked.
func ParseGoals(reg *Registry, names []string) (Goals, error) {
	for _, n := range names {
		if n == GoalAll || n == GoalRun {
			continue
		}
		if _, ok := reg.Lookup(n); !ok {
			return Goals{}, fmt.Errorf("%w: no target %q defined", ErrUnknownTarget, n)
		}
	}

	g := Goals{Recipe: NewRecipe(reg)}
	for _, n := range names {
		switch n {
		case GoalAll:
			for _, k := range reg.Kinds() {
				if !reg.Spec(k).Flags.Deprecated {
					g.Recipe.MarkBuild(k)
				}
			}
		case GoalRun:
			g.Run = true
		default:
			k, _ := reg.Lookup(n)
			g.Recipe.MarkBuild(k)
		}
	}
	if g.Run {
		if k, ok := reg.Supervisor(); ok {
			g.Recipe.MarkBuild(k)
		}
	}
	return g, nil
}
