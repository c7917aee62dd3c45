// Package connection tracks each provider's connection state through the
// refresh lifecycle and monitors for staleness and network changes.
package connection

import "time"

// State enumerates the connection lifecycle states. No state is terminal.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateSyncing
	StateError
	StateRateLimited
	StateStale
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSyncing:
		return "syncing"
	case StateError:
		return "error"
	case StateRateLimited:
		return "rateLimited"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Status is a tagged connection state. Message is set for StateError;
// RetryAfter for StateRateLimited when the API supplied a hint.
type Status struct {
	State      State
	Message    string
	RetryAfter *time.Time
}

func Disconnected() Status { return Status{State: StateDisconnected} }
func Connecting() Status   { return Status{State: StateConnecting} }
func Connected() Status    { return Status{State: StateConnected} }
func Syncing() Status      { return Status{State: StateSyncing} }
func Stale() Status        { return Status{State: StateStale} }

// Error returns an error status carrying a user-facing message.
func Error(message string) Status {
	return Status{State: StateError, Message: message}
}

// RateLimited returns a rate-limited status with an optional retry hint.
func RateLimited(until *time.Time) Status {
	return Status{State: StateRateLimited, RetryAfter: until}
}

// inFlight reports whether the status represents an active connection that a
// failure or network loss can interrupt.
func (s Status) inFlight() bool {
	return s.State == StateConnected || s.State == StateSyncing
}
