package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/meaze0507/itchysats/internal/domain/cfd"
	"github.com/rs/zerolog/log"
)

// Operation names used in HTTPError
const (
	OpTakeOffer    = "create new CFD take request"
	OpPublishOffer = "publish new offer parameters"
	OpHealth       = "check daemon health"
)

// maxErrorBody bounds how much of an error body is read
const maxErrorBody = 64 << 10

// RESTClient submits commands to the daemon. Commands are never retried.
type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRESTClient creates a new RESTClient
func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the daemon base URL
func (c *RESTClient) BaseURL() string {
	return c.baseURL
}

// TakeOffer submits a take request for an existing offer
func (c *RESTClient) TakeOffer(ctx context.Context, req cfd.TakeOfferRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	log.Info().
		Str("offer_id", req.OfferID).
		Str("quantity", req.Quantity.String()).
		Msg("Submitting take request")

	return c.send(ctx, http.MethodPost, "/cfd", OpTakeOffer, req)
}

// PublishOffer publishes new offer parameters (maker side)
func (c *RESTClient) PublishOffer(ctx context.Context, params cfd.OfferParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	log.Info().
		Str("min_quantity", params.MinQuantity.String()).
		Str("max_quantity", params.MaxQuantity.String()).
		Msg("Publishing offer parameters")

	return c.send(ctx, http.MethodPut, "/api/offer", OpPublishOffer, params)
}

// Health checks that the daemon answers
func (c *RESTClient) Health(ctx context.Context) error {
	return c.send(ctx, http.MethodGet, "/health", OpHealth, nil)
}

func (c *RESTClient) send(ctx context.Context, method, path, op string, payload any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		io.Copy(io.Discard, resp.Body)

		log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Dur("duration", time.Since(start)).
			Msg("Daemon command accepted")
		return nil
	}

	httpErr := &HTTPError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Status:     statusText(resp),
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var p problem
	if json.Unmarshal(respBody, &p) == nil {
		httpErr.Title = p.Title
		httpErr.Detail = p.Detail
	}

	log.Warn().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Str("title", httpErr.Title).
		Msg("Daemon rejected command")

	return httpErr
}

// statusText returns the reason phrase of resp, e.g. "Internal Server Error"
func statusText(resp *http.Response) string {
	if text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); text != "" && text != resp.Status {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
