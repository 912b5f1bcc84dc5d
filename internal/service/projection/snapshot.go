package projection

import (
	"time"

	"github.com/meaze0507/itchysats/internal/domain/feed"
)

// State is the binding state of a projection
type State int

const (
	StateUnbound State = iota // released by the caller, never updated again
	StateAbsent               // bound, nothing received yet
	StatePresent              // bound, holds the latest decoded value
)

// String returns a human readable state name
func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateAbsent:
		return "absent"
	case StatePresent:
		return "present"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of a projection at one instant
type Snapshot[T any] struct {
	State      State
	Value      T         // zero unless a value was ever applied
	Seq        uint64    // number of values applied, 0 while absent
	ReceivedAt time.Time // arrival time of Value
	Link       feed.Status

	// DecodeErr is the error of the most recent occurrence when it was
	// discarded. It is cleared by the next value that decodes.
	DecodeErr error
}

// Bound returns whether the projection is still attached to its connection
func (s Snapshot[T]) Bound() bool {
	return s.State != StateUnbound
}

// Present returns whether a value has been received
func (s Snapshot[T]) Present() bool {
	return s.State == StatePresent
}

// Pending returns whether the projection is still waiting for its first value
func (s Snapshot[T]) Pending() bool {
	return s.State == StateAbsent && !s.Link.Terminal()
}

// Failed returns whether the connection is closed and no more values will arrive
func (s Snapshot[T]) Failed() bool {
	return s.Bound() && s.Link.Terminal()
}

// Stale returns whether the value may be outdated because the connection is down
func (s Snapshot[T]) Stale() bool {
	return s.State == StatePresent && !s.Link.Healthy()
}
