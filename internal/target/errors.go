package target

import (
	"errors"
	"fmt"

	"github.com/papapumpkin/buildscript/internal/dag"
)

// Sentinel errors for the orchestration engine.
var (
	ErrUnknownTarget       = errors.New("unknown target")
	ErrDeclined            = errors.New("installation declined")
	ErrAcquisition         = errors.New("acquisition failed")
	ErrBuild               = errors.New("build failed")
	ErrRun                 = errors.New("run failed")
	ErrOccupied            = errors.New("slot already occupied")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrInvalidRegistry     = errors.New("invalid target registry")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrCycle               = dag.ErrCycle
)

// Phase names a lifecycle pass.
type Phase string

const (
	PhaseInitialize Phase = "initialize"
	PhaseBuild      Phase = "build"
	PhaseRunInit    Phase = "run-init"
	PhaseRun        Phase = "run"
)

// kindErr maps a phase to the sentinel its failures are classified under.
func (p Phase) kindErr() error {
	switch p {
	case PhaseInitialize:
		return ErrAcquisition
	case PhaseBuild:
		return ErrBuild
	default:
		return ErrRun
	}
}

// PhaseError reports a target failure during one lifecycle pass.
// It matches both the phase sentinel (ErrAcquisition, ErrBuild, ErrRun) and
// the underlying cause under errors.Is.
type PhaseError struct {
	Phase  Phase
	Target string
	Err    error
}

// Error implements error.
func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Target, e.Phase, e.Err)
}

// Unwrap returns the phase sentinel and the cause.
func (e *PhaseError) Unwrap() []error {
	return []error{e.Phase.kindErr(), e.Err}
}
