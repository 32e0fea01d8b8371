package target

import "fmt"

// State is the lifecycle position of one kind within an invocation.
type State int

// Lifecycle states in the order a kind passes through them.
const (
	Unbuilt State = iota
	Initialized
	Built
	RunInitialized
	Running
	Stopped
)

// String returns the lower-case name of s.
func (s State) String() string {
	switch s {
	case Unbuilt:
		return "unbuilt"
	case Initialized:
		return "initialized"
	case Built:
		return "built"
	case RunInitialized:
		return "run-initialized"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// transition moves states[k] from its current value to to, rejecting any
// move the lifecycle does not allow.
func transition(states []State, k Kind, to State) error {
	from := states[k]
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("%w: kind %d: %s -> %s", ErrInvalidTransition, k, from, to)
	}
	states[k] = to
	return nil
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case Unbuilt:
		return to == Initialized
	case Initialized:
		return to == Built
	case Built:
		return to == RunInitialized
	case RunInitialized:
		return to == Running
	case Running:
		return to == Stopped
	default:
		return false
	}
}
