package feed

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/meaze0507/itchysats/internal/domain/feed"
	"github.com/rs/zerolog/log"
)

// SSEClient consumes a text/event-stream endpoint
type SSEClient struct {
	*session

	httpClient  *http.Client
	lastEventID atomic.Value // string
}

// NewSSEClient creates a new SSE client
func NewSSEClient(cfg Config) *SSEClient {
	c := &SSEClient{session: newSession(cfg, "SSE")}

	c.httpClient = &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: c.cfg.HandshakeTimeout,
		},
	}
	c.stream = c.readStream

	return c
}

// LastEventID returns the id of the last event that carried one
func (c *SSEClient) LastEventID() string {
	id, _ := c.lastEventID.Load().(string)
	return id
}

func (c *SSEClient) readStream(ctx context.Context, opened func()) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("create feed request: %w", err)
	}

	for k, vs := range c.cfg.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if id := c.LastEventID(); id != "" {
		req.Header.Set("Last-Event-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dial feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d %s", feed.ErrUnexpectedResponse, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		return fmt.Errorf("%w: content type %q", feed.ErrUnexpectedResponse, ct)
	}

	opened()

	parser := frameParser{lastID: c.LastEventID()}
	reader := bufio.NewReader(resp.Body)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// An unterminated trailing line is an incomplete event and is dropped
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("feed stream ended: %w", io.ErrUnexpectedEOF)
			}
			return fmt.Errorf("read feed: %w", err)
		}

		msg, ok := parser.line(strings.TrimRight(line, "\r\n"))
		if parser.retry > 0 {
			c.retryHint = parser.retry
		}
		if parser.malformed {
			parser.malformed = false
			atomic.AddInt64(&c.malformed, 1)
			log.Warn().
				Str("line", line).
				Msg("[SSE] Ignoring malformed field")
		}
		if !ok {
			continue
		}

		c.lastEventID.Store(parser.lastID)
		c.Deliver(msg)
	}
}

// ==============================================================================
// frameParser - line oriented event-stream decoder
// ==============================================================================

// frameParser accumulates fields until a blank line completes an event
type frameParser struct {
	name   string
	data   strings.Builder
	lines  int
	lastID string
	retry  time.Duration

	malformed bool
}

// line consumes one line without its terminator. It returns a message when
// the line completes an event that carried data.
func (p *frameParser) line(s string) (feed.Message, bool) {
	if s == "" {
		return p.dispatch()
	}

	// Comment, used by servers as keepalive
	if strings.HasPrefix(s, ":") {
		return feed.Message{}, false
	}

	field, value := s, ""
	if i := strings.IndexByte(s, ':'); i >= 0 {
		field = s[:i]
		value = strings.TrimPrefix(s[i+1:], " ")
	}

	switch field {
	case "event":
		p.name = value
	case "data":
		if p.lines > 0 {
			p.data.WriteByte('\n')
		}
		p.data.WriteString(value)
		p.lines++
	case "id":
		if !strings.ContainsRune(value, 0) {
			p.lastID = value
		}
	case "retry":
		ms, err := strconv.Atoi(value)
		if err != nil || ms < 0 {
			p.malformed = true
			break
		}
		p.retry = time.Duration(ms) * time.Millisecond
	default:
		p.malformed = true
	}

	return feed.Message{}, false
}

func (p *frameParser) dispatch() (feed.Message, bool) {
	defer func() {
		p.name = ""
		p.data.Reset()
		p.lines = 0
	}()

	if p.lines == 0 {
		return feed.Message{}, false
	}

	name := p.name
	if name == "" {
		name = feed.DefaultEventName
	}

	return feed.Message{
		Name:       name,
		Data:       []byte(p.data.String()),
		ID:         p.lastID,
		ReceivedAt: time.Now(),
	}, true
}
