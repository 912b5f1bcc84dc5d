package feed

import (
	"time"
)

// DefaultEventName is the name used for frames that carry no explicit event field
const DefaultEventName = "message"

// Message represents one named occurrence delivered by a push connection
type Message struct {
	Name       string    `json:"event"`
	Data       []byte    `json:"data"`
	ID         string    `json:"id,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// State represents the lifecycle state of a push connection
type State int

const (
	StateConnecting   State = iota // first dial in progress, nothing received yet
	StateOpen                      // stream established
	StateReconnecting              // stream lost, retrying
	StateClosed                    // terminal, no more messages will arrive
)

// String returns a human readable state name
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of a connection
type Status struct {
	State   State
	Err     error // cause of the last failure, nil on caller-initiated close
	Attempt int   // reconnect attempt counter, 0 while open
	Since   time.Time
}

// Terminal returns whether the connection will never deliver again
func (s Status) Terminal() bool {
	return s.State == StateClosed
}

// Healthy returns whether the connection is currently streaming
func (s Status) Healthy() bool {
	return s.State == StateOpen
}
