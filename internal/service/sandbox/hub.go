package sandbox

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/meaze0507/itchysats/internal/domain/feed"
	"github.com/rs/zerolog/log"
)

// ==============================================================================
// Hub - In-memory named pub/sub feeding the sandbox push endpoints
// ==============================================================================

// Hub distributes named events to subscribers and remembers the last event
// of each name, which every new subscriber receives first.
type Hub struct {
	mu sync.Mutex

	// Name-specific subscribers
	subscribers map[string]map[*Subscription]bool // name → set of subscriptions

	// All-name subscribers (feed streams)
	allSubs map[*Subscription]bool

	last map[string]feed.Message // name → last published message
	seq  uint64

	// Configuration
	channelSize int

	// Metrics
	published int64
	delivered int64
	dropped   int64
}

// Subscription represents a feed subscription
type Subscription struct {
	C     chan feed.Message // Channel to receive events
	Names []string          // Specific names, empty for all

	closed bool
}

// HubConfig holds hub configuration
type HubConfig struct {
	ChannelSize int // buffer size for subscription channels (default: 100)
}

// DefaultHubConfig returns default configuration
func DefaultHubConfig() HubConfig {
	return HubConfig{
		ChannelSize: 100,
	}
}

// NewHub creates a new hub
func NewHub(config HubConfig) *Hub {
	if config.ChannelSize <= 0 {
		config.ChannelSize = 100
	}

	return &Hub{
		subscribers: make(map[string]map[*Subscription]bool),
		allSubs:     make(map[*Subscription]bool),
		last:        make(map[string]feed.Message),
		channelSize: config.ChannelSize,
	}
}

// ==============================================================================
// Subscribe Methods
// ==============================================================================

// Subscribe creates a subscription for names, or for every name when none
// are given. The last event of each subscribed name is queued first.
func (h *Hub) Subscribe(names ...string) *Subscription {
	names = uniqueNames(names)

	h.mu.Lock()
	defer h.mu.Unlock()

	size := h.channelSize + len(h.last)
	sub := &Subscription{
		C:     make(chan feed.Message, size),
		Names: names,
	}

	if len(names) == 0 {
		h.allSubs[sub] = true
	}
	for _, name := range names {
		if _, ok := h.subscribers[name]; !ok {
			h.subscribers[name] = make(map[*Subscription]bool)
		}
		h.subscribers[name][sub] = true
	}

	// Replay in publish order
	for _, msg := range h.replayLocked(names) {
		sub.C <- msg
	}

	log.Debug().
		Strs("names", names).
		Int("total_subs", h.countLocked()).
		Msg("Hub: new subscription")

	return sub
}

// Unsubscribe removes a subscription and closes its channel
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if sub.closed {
		return
	}

	delete(h.allSubs, sub)
	for _, name := range sub.Names {
		if subs, ok := h.subscribers[name]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.subscribers, name)
			}
		}
	}

	sub.closed = true
	close(sub.C)

	log.Debug().
		Strs("names", sub.Names).
		Int("total_subs", h.countLocked()).
		Msg("Hub: unsubscribed")
}

// ==============================================================================
// Publish Methods
// ==============================================================================

// Publish encodes payload as JSON and publishes it under name
func (h *Hub) Publish(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", name, err)
	}
	h.PublishRaw(name, data)
	return nil
}

// PublishRaw publishes data under name as is
func (h *Hub) PublishRaw(name string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	h.published++

	msg := feed.Message{
		Name:       name,
		Data:       data,
		ID:         strconv.FormatUint(h.seq, 10),
		ReceivedAt: time.Now(),
	}
	h.last[name] = msg

	for sub := range h.subscribers[name] {
		h.sendToSubscriber(sub, msg)
	}
	for sub := range h.allSubs {
		h.sendToSubscriber(sub, msg)
	}
}

// sendToSubscriber sends msg to a subscriber (non-blocking)
func (h *Hub) sendToSubscriber(sub *Subscription, msg feed.Message) {
	select {
	case sub.C <- msg:
		h.delivered++
	default:
		// Channel full - drop message (slow subscriber)
		h.dropped++
	}
}

func (h *Hub) replayLocked(names []string) []feed.Message {
	var out []feed.Message
	if len(names) == 0 {
		for _, msg := range h.last {
			out = append(out, msg)
		}
	}
	for _, name := range names {
		if msg, ok := h.last[name]; ok {
			out = append(out, msg)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.ParseUint(out[i].ID, 10, 64)
		b, _ := strconv.ParseUint(out[j].ID, 10, 64)
		return a < b
	})
	return out
}

// uniqueNames drops repeated names, keeping first occurrence order
func uniqueNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func (h *Hub) countLocked() int {
	seen := make(map[*Subscription]bool, len(h.allSubs))
	for sub := range h.allSubs {
		seen[sub] = true
	}
	for _, subs := range h.subscribers {
		for sub := range subs {
			seen[sub] = true
		}
	}
	return len(seen)
}

// ==============================================================================
// Info Methods
// ==============================================================================

// Last returns the last message published under name
func (h *Hub) Last(name string) (feed.Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg, ok := h.last[name]
	return msg, ok
}

// HubStats holds hub statistics
type HubStats struct {
	ActiveNames       int     `json:"active_names"`
	ActiveSubscribers int     `json:"active_subscribers"`
	TotalPublished    int64   `json:"total_published"`
	TotalDelivered    int64   `json:"total_delivered"`
	TotalDropped      int64   `json:"total_dropped"`
	DropRate          float64 `json:"drop_rate"` // percentage
}

// GetStats returns hub statistics
func (h *Hub) GetStats() HubStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	dropRate := float64(0)
	if h.published > 0 {
		dropRate = float64(h.dropped) / float64(h.published) * 100
	}

	return HubStats{
		ActiveNames:       len(h.subscribers),
		ActiveSubscribers: h.countLocked(),
		TotalPublished:    h.published,
		TotalDelivered:    h.delivered,
		TotalDropped:      h.dropped,
		DropRate:          dropRate,
	}
}

// Close closes all subscriptions
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.allSubs {
		if !sub.closed {
			sub.closed = true
			close(sub.C)
		}
	}
	for _, subs := range h.subscribers {
		for sub := range subs {
			if !sub.closed {
				sub.closed = true
				close(sub.C)
			}
		}
	}

	h.subscribers = make(map[string]map[*Subscription]bool)
	h.allSubs = make(map[*Subscription]bool)

	log.Info().Msg("Hub closed")
}
