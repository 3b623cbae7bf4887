package transfer

import "fmt"

// State is the lifecycle of a single transfer attempt.
type State int

const (
	StateIdle State = iota
	StateBuilding
	StateSigned
	StateSubmitted
	StateConfirmed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StateSigned:
		return "signed"
	case StateSubmitted:
		return "submitted"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateFailed
}

// CanTransition reports whether from -> to is a legal step.
// Any non-terminal state may fail; there is no way back.
func CanTransition(from, to State) bool {
	if to == StateFailed {
		return !from.Terminal()
	}
	switch from {
	case StateIdle:
		return to == StateBuilding
	case StateBuilding:
		return to == StateSigned
	case StateSigned:
		return to == StateSubmitted
	case StateSubmitted:
		return to == StateConfirmed
	default:
		return false
	}
}
