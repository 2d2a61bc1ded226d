// Package cdn fetches raw asset bytes from the content delivery endpoint.
package cdn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sodareplay/internal/config"
	"sodareplay/internal/services"
)

const (
	// Placeholder is substituted with the numeric asset ID.
	Placeholder = "{id}"

	defaultTimeout  = 10 * time.Second
	defaultMaxBytes = 256 << 20
)

// HTTPDoer is the subset of *http.Client used by the fetcher.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client downloads assets by ID using a URL template.
type Client struct {
	template   string
	userAgent  string
	timeout    time.Duration
	maxBytes   int64
	httpClient HTTPDoer
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.httpClient = doer
		}
	}
}

// WithTemplate overrides the URL template (useful for tests/mocks).
func WithTemplate(template string) Option {
	return func(c *Client) {
		if t := strings.TrimSpace(template); t != "" {
			c.template = t
		}
	}
}

// WithTimeout sets the per-asset deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithMaxBytes caps accepted response bodies.
func WithMaxBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = strings.TrimSpace(ua) }
}

// NewClient constructs a fetcher for the given URL template.
func NewClient(template string, opts ...Option) *Client {
	client := &Client{
		template:   strings.TrimSpace(template),
		timeout:    defaultTimeout,
		maxBytes:   defaultMaxBytes,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// NewFromConfig builds a client from the [cdn] section.
func NewFromConfig(cfg *config.Config, opts ...Option) *Client {
	base := []Option{
		WithTimeout(cfg.FetchTimeout()),
		WithMaxBytes(cfg.MaxAssetBytes()),
		WithUserAgent(cfg.CDN.UserAgent),
	}
	return NewClient(cfg.CDN.URLTemplate, append(base, opts...)...)
}

// URL returns the request URL for id.
func (c *Client) URL(id string) string {
	return strings.ReplaceAll(c.template, Placeholder, id)
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: http %d", e.URL, e.StatusCode)
}

// Fetch downloads the asset identified by id within the configured timeout.
func (c *Client) Fetch(ctx context.Context, id string) ([]byte, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("cdn fetch: asset id required")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.URL(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("cdn fetch: request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: endpoint}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("cdn fetch: asset %s exceeds %d bytes", id, c.maxBytes)
	}
	return body, nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "cdn", "fetch",
			fmt.Sprintf("no response within %s", c.timeout), err)
	}
	return fmt.Errorf("cdn fetch: request failed: %w", err)
}
