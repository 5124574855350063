package engine

// State represents the engine lifecycle state. The engine is the only
// writer; transitions always pass through Starting or Stopping.
type State int

const (
	// StateStopped means no sync run is active.
	StateStopped State = iota
	// StateStarting means a start attempt is underway but the watch
	// subscription is not confirmed yet.
	StateStarting
	// StateRunning means the watch is live and the queue is draining.
	StateRunning
	// StateStopping means a stop is in progress; no new operations are
	// accepted.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}
