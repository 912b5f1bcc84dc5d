package projection

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/meaze0507/itchysats/internal/domain/feed"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ==============================================================================
// Latest - single-slot projection of one named event
// ==============================================================================

// Latest holds the most recently delivered value of one named event on one
// connection. Every change replaces the snapshot as a whole, so readers
// never observe a torn or mixed value.
type Latest[T any] struct {
	name   string
	decode func([]byte) (T, error)
	logger zerolog.Logger

	snap atomic.Pointer[Snapshot[T]]

	// Write path: connection callbacks and Close
	mu          sync.Mutex
	closed      bool
	watched     bool // a status change arrived through Watch
	subscribers map[*subscriber[T]]struct{}
	changes     chan struct{}

	release func()
	unwatch func()

	// Metrics
	received  int64
	applied   int64
	discarded int64
}

type subscriber[T any] struct {
	fn     func(Snapshot[T])
	active atomic.Bool
}

// Option configures a projection
type Option[T any] func(*Latest[T])

// WithDecoder replaces the default JSON decoder
func WithDecoder[T any](decode func([]byte) (T, error)) Option[T] {
	return func(l *Latest[T]) {
		l.decode = decode
	}
}

// WithLogger sets the logger used for discarded payloads
func WithLogger[T any](logger zerolog.Logger) Option[T] {
	return func(l *Latest[T]) {
		l.logger = logger
	}
}

// New binds a projection of event name on conn. It starts absent.
func New[T any](conn feed.Connection, name string, opts ...Option[T]) *Latest[T] {
	l := &Latest[T]{
		name:        name,
		decode:      decodeJSON[T],
		logger:      log.Logger,
		subscribers: make(map[*subscriber[T]]struct{}),
		changes:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With().Str("event", name).Logger()

	l.snap.Store(&Snapshot[T]{
		State: StateAbsent,
		Link:  conn.Status(),
	})

	l.release = conn.Listen(name, l.onMessage)
	l.unwatch = conn.Watch(l.onStatus)

	// Status may have moved between the first read and Watch
	l.syncStatus(conn.Status())

	return l
}

func decodeJSON[T any](data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

// ==============================================================================
// Read side
// ==============================================================================

// Name returns the projected event name
func (l *Latest[T]) Name() string {
	return l.name
}

// Get returns the current snapshot
func (l *Latest[T]) Get() Snapshot[T] {
	return *l.snap.Load()
}

// Value returns the current value and whether one is present
func (l *Latest[T]) Value() (T, bool) {
	s := l.snap.Load()
	return s.Value, s.State == StatePresent
}

// Subscribe registers fn to be called after every change, on the goroutine
// that delivered it. The returned cancel is idempotent.
func (l *Latest[T]) Subscribe(fn func(Snapshot[T])) (cancel func()) {
	sub := &subscriber[T]{fn: fn}
	sub.active.Store(true)

	l.mu.Lock()
	if !l.closed {
		l.subscribers[sub] = struct{}{}
	}
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			l.mu.Lock()
			delete(l.subscribers, sub)
			l.mu.Unlock()
		})
	}
}

// Changes returns a signal that fires at least once after any number of
// changes. It is closed when the projection is closed.
func (l *Latest[T]) Changes() <-chan struct{} {
	return l.changes
}

// Close detaches the projection from its connection. The last snapshot is
// kept with state unbound.
func (l *Latest[T]) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true

	next := *l.snap.Load()
	next.State = StateUnbound
	l.snap.Store(&next)

	targets := l.targetsLocked()
	l.subscribers = make(map[*subscriber[T]]struct{})
	close(l.changes)
	l.mu.Unlock()

	// Release outside mu, a callback in flight may be waiting on it
	l.release()
	l.unwatch()

	l.notify(targets, next)
}

// ==============================================================================
// Write side
// ==============================================================================

func (l *Latest[T]) onMessage(msg feed.Message) {
	atomic.AddInt64(&l.received, 1)

	value, err := l.decode(msg.Data)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}

	next := *l.snap.Load()
	if err != nil {
		atomic.AddInt64(&l.discarded, 1)
		next.DecodeErr = &DecodeError{Event: l.name, Data: msg.Data, Err: err}

		l.logger.Warn().
			Err(err).
			Int("length", len(msg.Data)).
			Msg("Discarding malformed payload, keeping previous value")
	} else {
		atomic.AddInt64(&l.applied, 1)
		next.State = StatePresent
		next.Value = value
		next.Seq++
		next.ReceivedAt = msg.ReceivedAt
		next.DecodeErr = nil
	}

	targets := l.publishLocked(&next)
	l.mu.Unlock()

	l.notify(targets, next)
}

func (l *Latest[T]) onStatus(status feed.Status) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}

	l.watched = true

	next := *l.snap.Load()
	next.Link = status

	targets := l.publishLocked(&next)
	l.mu.Unlock()

	l.notify(targets, next)
}

// syncStatus applies status read after Watch was registered, unless the
// watcher already delivered a change.
func (l *Latest[T]) syncStatus(status feed.Status) {
	l.mu.Lock()
	if l.closed || l.watched || sameStatus(l.snap.Load().Link, status) {
		l.mu.Unlock()
		return
	}

	next := *l.snap.Load()
	next.Link = status

	targets := l.publishLocked(&next)
	l.mu.Unlock()

	l.notify(targets, next)
}

func sameStatus(a, b feed.Status) bool {
	return a.State == b.State && a.Attempt == b.Attempt && a.Since.Equal(b.Since) && a.Err == b.Err
}

// publishLocked swaps in next and signals Changes. Caller holds mu.
func (l *Latest[T]) publishLocked(next *Snapshot[T]) []*subscriber[T] {
	l.snap.Store(next)

	select {
	case l.changes <- struct{}{}:
	default:
	}

	return l.targetsLocked()
}

func (l *Latest[T]) targetsLocked() []*subscriber[T] {
	targets := make([]*subscriber[T], 0, len(l.subscribers))
	for sub := range l.subscribers {
		targets = append(targets, sub)
	}
	return targets
}

func (l *Latest[T]) notify(targets []*subscriber[T], snap Snapshot[T]) {
	for _, sub := range targets {
		if sub.active.Load() {
			sub.fn(snap)
		}
	}
}

// ==============================================================================
// Info Methods
// ==============================================================================

// Stats holds projection statistics
type Stats struct {
	Received  int64 // occurrences delivered for the name
	Applied   int64 // occurrences that replaced the value
	Discarded int64 // occurrences dropped because they failed to decode
}

// Stats returns projection statistics
func (l *Latest[T]) Stats() Stats {
	return Stats{
		Received:  atomic.LoadInt64(&l.received),
		Applied:   atomic.LoadInt64(&l.applied),
		Discarded: atomic.LoadInt64(&l.discarded),
	}
}
