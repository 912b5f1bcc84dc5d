package feed

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/meaze0507/itchysats/internal/domain/feed"
	"github.com/rs/zerolog/log"
)

// Transport names
const (
	TransportSSE       = "sse"
	TransportWebSocket = "ws"
)

// Config holds push connection configuration
type Config struct {
	URL              string
	Transport        string        // sse (default) or ws
	ReconnectInitial time.Duration // first backoff interval (default: 1s)
	ReconnectMax     time.Duration // backoff ceiling (default: 30s)
	MaxAttempts      int           // consecutive failed attempts before giving up, 0 = never
	HandshakeTimeout time.Duration // dial/response header timeout (default: 10s)
	Header           http.Header   // extra request headers
}

// DefaultConfig returns default configuration for url
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		Transport:        TransportSSE,
		ReconnectInitial: 1 * time.Second,
		ReconnectMax:     30 * time.Second,
		MaxAttempts:      10,
		HandshakeTimeout: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.Transport == "" {
		c.Transport = TransportSSE
	}
	if c.ReconnectInitial <= 0 {
		c.ReconnectInitial = 1 * time.Second
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = 30 * time.Second
	}
	if c.ReconnectMax < c.ReconnectInitial {
		c.ReconnectMax = c.ReconnectInitial
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	return c
}

// Client is a push connection that owns its transport lifecycle
type Client interface {
	feed.Connection

	// Start dials in the background and returns immediately
	Start(ctx context.Context) error

	// Close stops the read loop and marks the connection closed
	Close() error

	// GetStats returns connection statistics
	GetStats() ClientStats
}

// ClientStats holds push connection statistics
type ClientStats struct {
	DispatcherStats
	Connects   int64
	Reconnects int64
	Malformed  int64
}

// NewClient creates the client selected by cfg.Transport
func NewClient(cfg Config) (Client, error) {
	switch cfg.Transport {
	case "", TransportSSE:
		return NewSSEClient(cfg), nil
	case TransportWebSocket:
		return NewWebSocketClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown feed transport %q", cfg.Transport)
	}
}

// ==============================================================================
// session - reconnect loop shared by every transport
// ==============================================================================

// streamFunc connects once and reads until the stream fails.
// It calls opened as soon as the stream is established.
type streamFunc func(ctx context.Context, opened func()) error

type session struct {
	*Dispatcher

	cfg    Config
	name   string // log prefix
	stream streamFunc

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool
	closed  atomic.Bool

	// Server supplied reconnect hint (SSE retry field), owned by the read loop
	retryHint time.Duration

	// Metrics
	connects   int64
	reconnects int64
	malformed  int64
}

func newSession(cfg Config, name string) *session {
	return &session{
		Dispatcher: NewDispatcher(),
		cfg:        cfg.withDefaults(),
		name:       name,
	}
}

// Start starts the read loop
func (s *session) Start(ctx context.Context) error {
	if s.closed.Load() {
		return feed.ErrClosed
	}
	if !s.started.CompareAndSwap(false, true) {
		return feed.ErrAlreadyStarted
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.SetStatus(feed.Status{State: feed.StateConnecting})

	s.wg.Add(1)
	go s.run()

	return nil
}

// Close stops the read loop and waits for it to exit
func (s *session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	s.SetStatus(feed.Status{State: feed.StateClosed})
	return nil
}

// GetStats returns connection statistics
func (s *session) GetStats() ClientStats {
	return ClientStats{
		DispatcherStats: s.Dispatcher.GetStats(),
		Connects:        atomic.LoadInt64(&s.connects),
		Reconnects:      atomic.LoadInt64(&s.reconnects),
		Malformed:       atomic.LoadInt64(&s.malformed),
	}
}

func (s *session) run() {
	defer s.wg.Done()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.ReconnectInitial
	b.MaxInterval = s.cfg.ReconnectMax
	b.Reset()

	attempt := 0

	for {
		err := s.stream(s.ctx, func() {
			attempt = 0
			b.Reset()
			atomic.AddInt64(&s.connects, 1)
			s.SetStatus(feed.Status{State: feed.StateOpen})

			log.Info().
				Str("url", s.cfg.URL).
				Msgf("[%s] Connected", s.name)
		})

		if s.ctx.Err() != nil {
			log.Debug().Msgf("[%s] Context cancelled, stopping read loop", s.name)
			s.SetStatus(feed.Status{State: feed.StateClosed})
			return
		}

		attempt++
		if s.cfg.MaxAttempts > 0 && attempt > s.cfg.MaxAttempts {
			log.Error().
				Err(err).
				Int("attempts", s.cfg.MaxAttempts).
				Msgf("[%s] Reconnect failed, giving up", s.name)

			s.SetStatus(feed.Status{
				State:   feed.StateClosed,
				Err:     fmt.Errorf("%w: %w", feed.ErrReconnectExhausted, err),
				Attempt: attempt - 1,
			})
			return
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			wait = s.cfg.ReconnectMax
		}
		if s.retryHint > wait {
			wait = s.retryHint
		}

		atomic.AddInt64(&s.reconnects, 1)
		s.SetStatus(feed.Status{
			State:   feed.StateReconnecting,
			Err:     err,
			Attempt: attempt,
		})

		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msgf("[%s] Connection error, attempting reconnect...", s.name)

		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			s.SetStatus(feed.Status{State: feed.StateClosed})
			return
		case <-timer.C:
		}
	}
}
