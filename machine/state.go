package machine

import "fmt"

// State is the sequencer state.
type State int

const (
	Idle State = iota
	Homed
	Positioning
	Settling
	Acquiring
	Complete
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Homed:
		return "Homed"
	case Positioning:
		return "Positioning"
	case Settling:
		return "Settling"
	case Acquiring:
		return "Acquiring"
	case Complete:
		return "Complete"
	case Aborted:
		return "Aborted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Ready reports whether a run may start from s.
func (s State) Ready() bool { return s == Homed || s == Complete }

func isAllowedTransition(from, to State) bool {
	if to == Aborted {
		return from != Aborted
	}
	switch from {
	case Idle:
		return to == Homed
	case Homed, Complete:
		return to == Homed || to == Positioning || to == Complete
	case Positioning:
		return to == Settling
	case Settling:
		return to == Acquiring || to == Positioning || to == Complete
	case Acquiring:
		return to == Positioning || to == Complete
	default:
		return false
	}
}
