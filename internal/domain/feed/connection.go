package feed

// Connection is the capability a projector needs from a push connection.
// Dialing, retry policy and shutdown belong to the implementation.
type Connection interface {
	// Listen registers fn for every message named name.
	// The returned release func is idempotent. Messages dispatched after release
	// returns are not passed to fn; a call already in flight runs to completion.
	Listen(name string, fn func(Message)) (release func())

	// Watch registers fn for connection status changes.
	Watch(fn func(Status)) (release func())

	// Status returns the current connection status
	Status() Status
}
