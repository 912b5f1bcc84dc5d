package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/meaze0507/itchysats/internal/domain/feed"
	"github.com/meaze0507/itchysats/internal/service/sandbox"
	"github.com/rs/zerolog/log"
)

// ==============================================================================
// FeedStreamHandler - push endpoints for daemon events
// ==============================================================================

// FeedStreamHandler streams hub events over SSE and WebSocket
type FeedStreamHandler struct {
	hub       *sandbox.Hub
	keepAlive time.Duration
	upgrader  websocket.Upgrader
}

// NewFeedStreamHandler creates a new feed stream handler
func NewFeedStreamHandler(hub *sandbox.Hub, keepAlive time.Duration) *FeedStreamHandler {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &FeedStreamHandler{
		hub:       hub,
		keepAlive: keepAlive,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ==============================================================================
// SSE Endpoints
// ==============================================================================

// StreamSSE streams events via SSE
// GET /feed?events=balance,offer
func (h *FeedStreamHandler) StreamSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Setup SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Last values are replayed first, so a resumed client is current again
	sub := h.hub.Subscribe(parseNames(r.URL.Query().Get("events"))...)
	defer h.hub.Unsubscribe(sub)

	log.Info().
		Str("remote", r.RemoteAddr).
		Strs("events", sub.Names).
		Str("last_event_id", r.Header.Get("Last-Event-ID")).
		Msg("SSE: client connected")

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Info().
				Str("remote", r.RemoteAddr).
				Msg("SSE: client disconnected")
			return

		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			writeEvent(w, msg)
			flusher.Flush()

		case <-keepAlive.C:
			fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

// ==============================================================================
// WebSocket Endpoints
// ==============================================================================

// StreamWS streams events as JSON envelopes
// GET /feed/ws?events=balance,offer
func (h *FeedStreamHandler) StreamWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WS: upgrade failed")
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe(parseNames(r.URL.Query().Get("events"))...)
	defer h.hub.Unsubscribe(sub)

	log.Info().
		Str("remote", r.RemoteAddr).
		Strs("events", sub.Names).
		Msg("WS: client connected")

	// Reader detects client close; inbound frames are ignored
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.keepAlive)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			log.Info().
				Str("remote", r.RemoteAddr).
				Msg("WS: client disconnected")
			return

		case <-r.Context().Done():
			return

		case msg, ok := <-sub.C:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(time.Second))
				return
			}
			frame, err := json.Marshal(feed.NewEnvelope(msg))
			if err != nil {
				log.Error().Err(err).Str("event", msg.Name).Msg("WS: failed to marshal envelope")
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warn().Err(err).Msg("WS: write failed")
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}

// ==============================================================================
// Helper Methods
// ==============================================================================

// writeEvent writes msg as one SSE event. Multi-line data becomes several
// data lines.
func writeEvent(w http.ResponseWriter, msg feed.Message) {
	if msg.ID != "" {
		fmt.Fprintf(w, "id: %s\n", msg.ID)
	}
	fmt.Fprintf(w, "event: %s\n", msg.Name)
	for _, line := range strings.Split(string(msg.Data), "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}

// parseNames parses comma-separated event names
func parseNames(s string) []string {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
