package feed

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/meaze0507/itchysats/internal/domain/feed"
	"github.com/rs/zerolog/log"
)

// ==============================================================================
// Dispatcher - name-keyed listener registry for one push connection
// ==============================================================================

// Dispatcher routes messages of one connection to listeners by event name.
// Deliver runs listeners synchronously on the caller's goroutine, so a
// transport with a single read loop delivers in wire order.
type Dispatcher struct {
	mu sync.RWMutex

	// Event-specific listeners
	listeners map[string]map[*listener]bool // name → set of listeners
	watchers  map[*watcher]bool

	status feed.Status

	// Metrics
	delivered int64
	unrouted  int64
}

type listener struct {
	name   string
	fn     func(feed.Message)
	active atomic.Bool
}

type watcher struct {
	fn     func(feed.Status)
	active atomic.Bool
}

// NewDispatcher creates a dispatcher in connecting state
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		listeners: make(map[string]map[*listener]bool),
		watchers:  make(map[*watcher]bool),
		status: feed.Status{
			State: feed.StateConnecting,
			Since: time.Now(),
		},
	}
}

// ==============================================================================
// feed.Connection
// ==============================================================================

// Listen registers fn for messages named name
func (d *Dispatcher) Listen(name string, fn func(feed.Message)) func() {
	l := &listener{name: name, fn: fn}
	l.active.Store(true)

	d.mu.Lock()
	if _, ok := d.listeners[name]; !ok {
		d.listeners[name] = make(map[*listener]bool)
	}
	d.listeners[name][l] = true
	total := len(d.listeners[name])
	d.mu.Unlock()

	log.Debug().
		Str("event", name).
		Int("listeners", total).
		Msg("Dispatcher: listener added")

	var once sync.Once
	return func() {
		once.Do(func() { d.removeListener(l) })
	}
}

// Watch registers fn for status changes
func (d *Dispatcher) Watch(fn func(feed.Status)) func() {
	w := &watcher{fn: fn}
	w.active.Store(true)

	d.mu.Lock()
	d.watchers[w] = true
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.active.Store(false)
			d.mu.Lock()
			delete(d.watchers, w)
			d.mu.Unlock()
		})
	}
}

// Status returns the current status
func (d *Dispatcher) Status() feed.Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

// ==============================================================================
// Delivery
// ==============================================================================

// Deliver passes msg to every active listener of msg.Name.
// Listeners may release themselves or others from inside the callback.
func (d *Dispatcher) Deliver(msg feed.Message) {
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}

	d.mu.RLock()
	set := d.listeners[msg.Name]
	targets := make([]*listener, 0, len(set))
	for l := range set {
		targets = append(targets, l)
	}
	d.mu.RUnlock()

	if len(targets) == 0 {
		atomic.AddInt64(&d.unrouted, 1)
		return
	}

	for _, l := range targets {
		if !l.active.Load() {
			continue
		}
		l.fn(msg)
		atomic.AddInt64(&d.delivered, 1)
	}
}

// SetStatus records a new status and notifies watchers.
// Once closed, later transitions are ignored.
func (d *Dispatcher) SetStatus(status feed.Status) {
	if status.Since.IsZero() {
		status.Since = time.Now()
	}

	d.mu.Lock()
	if d.status.State == feed.StateClosed {
		d.mu.Unlock()
		return
	}
	d.status = status
	targets := make([]*watcher, 0, len(d.watchers))
	for w := range d.watchers {
		targets = append(targets, w)
	}
	d.mu.Unlock()

	for _, w := range targets {
		if w.active.Load() {
			w.fn(status)
		}
	}
}

func (d *Dispatcher) removeListener(l *listener) {
	l.active.Store(false)

	d.mu.Lock()
	defer d.mu.Unlock()

	if subs, ok := d.listeners[l.name]; ok {
		delete(subs, l)
		if len(subs) == 0 {
			delete(d.listeners, l.name)
		}
	}

	log.Debug().
		Str("event", l.name).
		Msg("Dispatcher: listener released")
}

// ==============================================================================
// Info Methods
// ==============================================================================

// DispatcherStats holds dispatcher statistics
type DispatcherStats struct {
	ActiveEvents    int
	ActiveListeners int
	ActiveWatchers  int
	TotalDelivered  int64
	TotalUnrouted   int64
}

// GetStats returns dispatcher statistics
func (d *Dispatcher) GetStats() DispatcherStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	listeners := 0
	for _, subs := range d.listeners {
		listeners += len(subs)
	}

	return DispatcherStats{
		ActiveEvents:    len(d.listeners),
		ActiveListeners: listeners,
		ActiveWatchers:  len(d.watchers),
		TotalDelivered:  atomic.LoadInt64(&d.delivered),
		TotalUnrouted:   atomic.LoadInt64(&d.unrouted),
	}
}

// ListenerCount returns the number of listeners registered for name
func (d *Dispatcher) ListenerCount(name string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[name])
}
