// internal/hourglass/state.go
package hourglass

// State is the lifecycle position of an Hourglass.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateFinished
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further ticks or transitions can happen.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateCancelled
}
