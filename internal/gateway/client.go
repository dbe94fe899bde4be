// Package gateway is the HTTP client for the upstream commerce API.
// Every call carries a fixed timeout, and failures are classified into the
// model error kinds (timeout, network, API error). There are no retries.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"storefront-proxy/internal/metrics"
	"storefront-proxy/internal/model"
)

const (
	// DefaultBaseURL is the public commerce API.
	DefaultBaseURL = "https://ecommerce.routemisr.com/api/v1"

	// DefaultTimeout bounds every upstream call.
	DefaultTimeout = 12 * time.Second

	// TokenHeader carries the session token. The API does not use Authorization.
	TokenHeader = "token"

	userAgent       = "storefront-proxy/1.0"
	maxResponseSize = 4 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper // nil uses http.DefaultTransport
	Logger    *slog.Logger
}

// Client talks to the commerce API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates a Client. Zero config values fall back to the defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Transport: cfg.Transport},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		logger:     cfg.Logger,
	}
}

// operation names a call for error messages and metrics.
type operation struct {
	name    string // human readable, e.g. "add to cart"
	failure string // message when the server gives none
	network string // message for transport failures
}

func (o operation) label() string {
	return strings.ReplaceAll(o.name, " ", "_")
}

var opRequest = operation{
	name:    "request",
	failure: "Request failed",
	network: "Network error",
}

// Request performs a raw call. path is relative to the base URL.
// A nil body is sent without a payload; an empty token omits the header.
// The returned body is nil when the response was empty or not valid JSON.
func (c *Client) Request(ctx context.Context, method, path string, body any, token string) (json.RawMessage, error) {
	return c.call(ctx, opRequest, method, path, body, token)
}

func (c *Client) call(ctx context.Context, op operation, method, path string, body any, token string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.roundTrip(ctx, op, method, path, body, token)

	outcome := "ok"
	if err != nil {
		outcome = model.KindOf(err)
		c.logger.Debug("upstream call failed",
			slog.String("operation", op.name),
			slog.String("method", method),
			slog.String("path", path),
			slog.String("kind", outcome),
			slog.Any("error", err),
		)
	}
	metrics.UpstreamRequests.WithLabelValues(op.label(), outcome).Inc()
	metrics.UpstreamDuration.WithLabelValues(op.label()).Observe(time.Since(start).Seconds())

	return raw, err
}

func (c *Client) roundTrip(ctx context.Context, op operation, method, path string, body any, token string) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, method, path, body, token)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", op.name, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, classifyTransportError(ctx, op, err)
	}

	// Malformed JSON is an absent body, never a failure on its own.
	var raw json.RawMessage
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && json.Valid(trimmed) {
		raw = trimmed
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseError(op, resp.StatusCode, raw)
	}
	return raw, nil
}

// newRequest creates a JSON request with the token header when a token is given.
func (c *Client) newRequest(ctx context.Context, method, path string, body any, token string) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}

	return req, nil
}

func classifyTransportError(ctx context.Context, op operation, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return model.NewTimeoutError(op.name)
	case errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("%s: %w", op.name, ctx.Err())
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.NewTimeoutError(op.name)
	}
	return model.NewNetworkError(op.network, err)
}

// parseError converts a non-2xx response to model.APIError.
// The server's message wins; op.failure is the fallback.
func parseError(op operation, status int, raw json.RawMessage) error {
	msg := model.Message(raw)
	if msg == "" {
		msg = op.failure
	}

	switch status {
	case http.StatusUnauthorized:
		return model.NewUnauthenticatedError(msg)
	case http.StatusNotFound:
		return &model.APIError{
			Code:       "NOT_FOUND",
			Message:    msg,
			StatusCode: http.StatusNotFound,
			Err:        model.ErrNotFound,
		}
	case http.StatusTooManyRequests:
		return model.NewRateLimitError(msg)
	default:
		return model.NewUpstreamError(status, msg)
	}
}

// unexpectedPayload reports a 2xx response whose body lacks the expected shape.
func unexpectedPayload(op operation) error {
	return &model.APIError{
		Code:       "API_ERROR",
		Message:    op.failure,
		StatusCode: http.StatusBadGateway,
		Err:        fmt.Errorf("%w: unexpected %s payload", model.ErrUpstreamError, op.name),
	}
}
