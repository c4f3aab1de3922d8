// Package api is the REST client for the Kube-JIT backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	kerrors "github.com/p-blackswan/kubejit/internal/errors"
	"github.com/p-blackswan/kubejit/internal/metrics"
	"github.com/p-blackswan/kubejit/internal/requestid"
	"github.com/p-blackswan/kubejit/internal/retry"
)

// HTTPClient abstracts HTTP calls for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Interceptor observes every backend response before the caller sees it.
// Interceptors are registered once, at construction.
type Interceptor func(req *http.Request, resp *http.Response)

// Client wraps the Kube-JIT REST API.
type Client struct {
	root         string
	httpClient   HTTPClient
	interceptors []Interceptor
	retry        retry.Config
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing, or to attach a
// cookie jar).
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithInterceptor registers a response interceptor.
func WithInterceptor(i Interceptor) Option {
	return func(c *Client) { c.interceptors = append(c.interceptors, i) }
}

// WithUnauthorizedHandler routes every 401 response, whatever the endpoint,
// to onExpired.
func WithUnauthorizedHandler(onExpired func(endpoint string)) Option {
	return func(c *Client) {
		c.interceptors = append(c.interceptors, func(req *http.Request, resp *http.Response) {
			if resp.StatusCode != http.StatusUnauthorized {
				return
			}
			c.metrics.RecordUnauthorized()
			onExpired(c.endpoint(req.URL.Path))
		})
	}
}

// WithRetry sets the backoff used for idempotent option and metadata reads.
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithMetrics records per-endpoint call counts and durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client for the API rooted at root (base URL plus
// path prefix, e.g. https://jit.example.com/kube-jit-api).
func NewClient(root string, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		root:       strings.TrimSuffix(root, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      retry.DefaultConfig(),
		logger:     logger.With().Str("component", "api").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Root returns the API root URL.
func (c *Client) Root() string {
	return c.root
}

// endpoint strips the API root's path from p so metrics and errors use
// stable names like "/approvals".
func (c *Client) endpoint(p string) string {
	if u, err := url.Parse(c.root); err == nil && u.Path != "" {
		if trimmed := strings.TrimPrefix(p, u.Path); trimmed != p {
			return trimmed
		}
	}
	return p
}

// do executes an API request, decoding a JSON response into out when out
// is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.root + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := requestid.Apply(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.RecordAPIRequest(path, "0", elapsed.Seconds())
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Str("request_id", reqID).Msg("backend request failed")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s %s: %w", method, path, ctxErr)
		}
		return fmt.Errorf("%w: %s %s: %v", kerrors.ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	c.metrics.RecordAPIRequest(path, strconv.Itoa(resp.StatusCode), elapsed.Seconds())
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", elapsed).
		Str("request_id", reqID).
		Msg("backend request")

	for _, intercept := range c.interceptors {
		intercept(req, resp)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return kerrors.NewAPIError(path, resp.StatusCode, errorMessage(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", kerrors.ErrMalformedResponse, path, err)
	}
	return nil
}

// errorMessage extracts the backend's {"error": ...} or {"message": ...}
// text, falling back to the raw body.
func errorMessage(body []byte) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return strings.TrimSpace(string(body))
}

// IsUnauthorized reports whether err came from a 401 response.
func IsUnauthorized(err error) bool {
	return errors.Is(err, kerrors.ErrUnauthorized)
}
