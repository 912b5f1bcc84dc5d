package feed

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/meaze0507/itchysats/internal/domain/feed"
	"github.com/rs/zerolog/log"
)

// WebSocketClient consumes a feed of JSON envelopes over WebSocket
type WebSocketClient struct {
	*session

	dialer *websocket.Dialer
}

// NewWebSocketClient creates a new WebSocket client
func NewWebSocketClient(cfg Config) *WebSocketClient {
	c := &WebSocketClient{session: newSession(cfg, "WS")}

	c.dialer = &websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	c.stream = c.readStream

	return c
}

func (c *WebSocketClient) readStream(ctx context.Context, opened func()) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("%w: %d %s: %v", feed.ErrUnexpectedResponse, resp.StatusCode, resp.Status, err)
		}
		return fmt.Errorf("dial feed: %w", err)
	}

	// ReadMessage does not observe ctx, closing the conn unblocks it
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	opened()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("feed closed by server: %w", err)
			}
			return fmt.Errorf("read feed: %w", err)
		}

		msg, err := feed.DecodeEnvelope(frame)
		if err != nil {
			atomic.AddInt64(&c.malformed, 1)
			log.Warn().
				Err(err).
				Int("length", len(frame)).
				Msg("[WS] Skipping malformed frame")
			continue
		}

		log.Debug().
			Str("event", msg.Name).
			Int("length", len(msg.Data)).
			Msg("[WS] Received message")

		c.Deliver(msg)
	}
}
