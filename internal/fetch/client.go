// Package fetch acquires raw site content over HTTP.
//
// Two sources produce an ingestion.RawContentBundle: the WordPress REST
// API and a sitemap walk that scrapes every listed URL. Both pace their
// requests with a token bucket so crawls stay polite.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultAPIInterval separates REST API requests.
	DefaultAPIInterval = 500 * time.Millisecond

	// DefaultPageInterval separates sitemap and scraped page requests.
	DefaultPageInterval = 300 * time.Millisecond

	// DefaultTimeout bounds each request.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent with every request. Some hosts reject
	// clients that do not look like a browser.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// maxBodyBytes caps how much of a response is read.
	maxBodyBytes = 32 << 20

	// previewLimit is how much of an unexpected body is logged.
	previewLimit = 300
)

// Option configures a fetcher.
type Option func(*options)

type options struct {
	httpClient *http.Client
	interval   time.Duration
	userAgent  string
	logger     *zap.Logger
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithInterval sets the minimum time between requests. Zero disables
// pacing.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		o.interval = d
	}
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Client is an HTTP client that waits on a rate limiter before every
// request.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
	logger    *zap.Logger
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// newClient builds a client from options, using defaultInterval unless
// WithInterval was given.
func newClient(defaultInterval time.Duration, opts []Option) *Client {
	o := options{
		interval:  defaultInterval,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	limit := rate.Inf
	if o.interval > 0 {
		limit = rate.Every(o.interval)
	}

	return &Client{
		http:      o.httpClient,
		limiter:   rate.NewLimiter(limit, 1),
		userAgent: o.userAgent,
		logger:    o.logger,
	}
}

// Get waits for the limiter and performs a GET, reading the whole body.
// Non-2xx statuses are not errors; callers inspect StatusCode.
func (c *Client) Get(ctx context.Context, url, accept string) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}

	c.logger.Debug("fetched",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("latency", time.Since(start)),
	)

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// preview returns the head of a body for log messages.
func preview(body []byte) string {
	if len(body) > previewLimit {
		body = body[:previewLimit]
	}
	return string(body)
}
