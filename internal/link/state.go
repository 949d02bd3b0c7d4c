package link

import "time"

// State is the lifecycle position of the classifier link.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent read of the machine's state for observers.
type Snapshot struct {
	State      State
	Attempt    int           // reconnect attempts used since the last successful open
	Delay      time.Duration // pending reconnect delay while reconnecting
	LastReason string        // why the link last closed
}
