// Package target is the orchestration engine: the registration table of
// target kinds, per-invocation enablement and dependency propagation, the
// collection of live instances, and the driver that walks every enabled kind
// through initialize, build, run-init and run in declaration order.
package target

import "context"

// Target is the live state of one enabled kind for one invocation.
type Target interface {
	// Build compiles or prepares the target and contributes environment
	// variables and search-path entries to p. deps never contains the
	// target itself.
	Build(ctx context.Context, deps *Collection, p *BuildParams) error
}

// RunIniter is implemented by targets that need configuration before any
// service starts. RunInit allocates ports, writes config files and prepares
// the command to launch. It must not start processes.
type RunIniter interface {
	RunInit(ctx context.Context, deps *Collection, p *RunParams) error
}

// Runner is implemented by targets that start or register a long-running
// process.
type Runner interface {
	Run(ctx context.Context, deps *Collection, p *RunParams) error
}

// Initializer constructs instances of one kind. deps holds the kinds that
// were initialized earlier in declaration order.
type Initializer interface {
	// InitializeHost adopts a tool already installed on the host. It returns
	// a nil Target when the host tool is missing or unusable and never
	// downloads anything.
	InitializeHost(ctx context.Context, en Enablement, deps *Collection, p *InitParams) (Target, error)
	// InitializeCached adopts an install left in the workspace by an earlier
	// run. It returns a nil Target when nothing usable is there and never
	// touches the network.
	InitializeCached(ctx context.Context, en Enablement, deps *Collection, p *InitParams) (Target, error)
	// InitializeLocal fetches, installs or clones the tool into the
	// workspace. A nil Target with a nil error is treated as a failure.
	InitializeLocal(ctx context.Context, en Enablement, deps *Collection, p *InitParams) (Target, error)
}

// Tier identifies which acquisition strategy produced an instance.
type Tier string

const (
	TierHost   Tier = "host"
	TierCached Tier = "cached"
	TierLocal  Tier = "local"
)
