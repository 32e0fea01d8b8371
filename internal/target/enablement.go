package target

// Kind identifies a target by its position in the registration table.
type Kind int

// Flags is static per-kind metadata. The zero value is inert: a kind that
// sets no flags gets default behaviour, and new fields default to off.
type Flags struct {
	// AlwaysLocal skips host probing; the tool always lives in the workspace.
	AlwaysLocal bool
	// Deprecated excludes the kind from the "all" goal.
	Deprecated bool
	// Supervisor marks the process supervisor enabled by the "run" goal.
	Supervisor bool
}

// Enablement is how strongly a kind is requested for one invocation.
// Values are totally ordered: Disabled < Dependency < Build.
type Enablement int

const (
	// Disabled kinds are not constructed.
	Disabled Enablement = iota
	// Dependency kinds are acquired so that other kinds can use them.
	Dependency
	// Build kinds were requested explicitly.
	Build
)

// Merge returns the stronger of e and other. Enablement never regresses.
func (e Enablement) Merge(other Enablement) Enablement {
	if other > e {
		return other
	}
	return e
}

// Enabled reports whether a kind with this enablement is constructed.
func (e Enablement) Enabled() bool {
	return e >= Dependency
}

// String returns the lower-case name of e.
func (e Enablement) String() string {
	switch e {
	case Disabled:
		return "disabled"
	case Dependency:
		return "dependency"
	case Build:
		return "build"
	default:
		return "unknown"
	}
}
