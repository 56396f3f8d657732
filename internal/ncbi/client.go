// Package ncbi provides a shared base HTTP client for NCBI E-utilities.
// The eutils client embeds it to share rate limiting, common parameters,
// and response size guards.
package ncbi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the NCBI E-utilities base URL.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	// DefaultTool identifies this application to NCBI.
	DefaultTool = "pubmed-tabulate"
	// DefaultEmail is the contact email sent to NCBI.
	DefaultEmail = "pubmed-tabulate@users.noreply.github.com"

	// Rate limits per NCBI policy.
	RateWithoutKey = 3  // requests per second without API key
	RateWithKey    = 10 // requests per second with API key

	// DefaultMaxResponseBytes is the maximum response body size (50 MB).
	DefaultMaxResponseBytes int64 = 50 * 1024 * 1024

	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	baseRetryWait = 700 * time.Millisecond
	maxRetryWait  = 4 * time.Second
)

// RequestObserver is notified once per completed request attempt.
// status is 0 when no response was received.
type RequestObserver func(endpoint string, status int, elapsed time.Duration, err error)

// BaseClient is a shared HTTP client for NCBI E-utilities with proper
// rate limiting, common parameter injection, and response size guards.
//
// BaseClient performs each request once. HTTP 429 responses are retried only
// when MaxRetries is positive.
type BaseClient struct {
	BaseURL    string
	APIKey     string
	Tool       string
	Email      string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	MaxBytes   int64
	MaxRetries int
	Observer   RequestObserver
}

// Option configures a BaseClient.
type Option func(*BaseClient)

// WithBaseURL sets the base URL for requests.
func WithBaseURL(u string) Option {
	return func(c *BaseClient) { c.BaseURL = u }
}

// WithAPIKey sets the NCBI API key and adjusts the rate limit accordingly.
func WithAPIKey(key string) Option {
	return func(c *BaseClient) {
		c.APIKey = key
		if key != "" {
			c.Limiter = rate.NewLimiter(rate.Limit(RateWithKey), 1)
		}
	}
}

// WithTool sets the tool parameter for NCBI requests.
func WithTool(tool string) Option {
	return func(c *BaseClient) { c.Tool = tool }
}

// WithEmail sets the email parameter for NCBI requests.
func WithEmail(email string) Option {
	return func(c *BaseClient) { c.Email = email }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *BaseClient) { c.HTTPClient = hc }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *BaseClient) {
		if d > 0 {
			c.HTTPClient.Timeout = d
		}
	}
}

// WithMaxResponseBytes sets the maximum allowed response body size.
func WithMaxResponseBytes(n int64) Option {
	return func(c *BaseClient) { c.MaxBytes = n }
}

// WithMaxRetries enables up to n retries of HTTP 429 responses.
func WithMaxRetries(n int) Option {
	return func(c *BaseClient) { c.MaxRetries = n }
}

// WithRateLimit overrides the requests-per-second limit.
func WithRateLimit(perSecond float64) Option {
	return func(c *BaseClient) {
		if perSecond > 0 {
			c.Limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithObserver registers a RequestObserver.
func WithObserver(o RequestObserver) Option {
	return func(c *BaseClient) { c.Observer = o }
}

// NewBaseClient creates a new NCBI base client with the given options.
func NewBaseClient(opts ...Option) *BaseClient {
	c := &BaseClient{
		BaseURL:  DefaultBaseURL,
		Tool:     DefaultTool,
		Email:    DefaultEmail,
		MaxBytes: DefaultMaxResponseBytes,
		Limiter:  rate.NewLimiter(rate.Limit(RateWithoutKey), 1),
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DoGet performs a rate-limited GET request with common NCBI parameters
// and response size limits. Returns the response body. Every failure is a
// *RemoteServiceError.
func (c *BaseClient) DoGet(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	// Add common NCBI params once per request.
	if c.APIKey != "" {
		params.Set("api_key", c.APIKey)
	}
	if c.Tool != "" {
		params.Set("tool", c.Tool)
	}
	if c.Email != "" {
		params.Set("email", c.Email)
	}

	u, err := url.JoinPath(c.BaseURL, endpoint)
	if err != nil {
		return nil, Remote(endpoint, fmt.Errorf("building URL: %w", err))
	}
	fullURL := u + "?" + params.Encode()

	for attempt := 0; ; attempt++ {
		// Wait for rate limiter token (respects context cancellation).
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, Remote(endpoint, fmt.Errorf("rate limit wait: %w", err))
		}

		start := time.Now()
		body, status, err := c.get(ctx, fullURL)
		c.observe(endpoint, status, time.Since(start), err)

		if status == http.StatusTooManyRequests && attempt < c.MaxRetries {
			wait := retryAfterDuration(body)
			if wait <= 0 {
				// Exponential backoff with cap.
				wait = baseRetryWait * time.Duration(1<<attempt)
				if wait > maxRetryWait {
					wait = maxRetryWait
				}
			}
			if err := sleepWithContext(ctx, wait); err != nil {
				return nil, Remote(endpoint, fmt.Errorf("rate limit retry canceled: %w", err))
			}
			continue
		}

		if err != nil || status != http.StatusOK {
			return nil, &RemoteServiceError{Endpoint: endpoint, StatusCode: status, Err: err}
		}
		return body, nil
	}
}

// get issues one GET. For HTTP 429 the returned body holds the Retry-After
// header value so the caller can honour it.
func (c *BaseClient) get(ctx context.Context, fullURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return []byte(resp.Header.Get("Retry-After")), resp.StatusCode,
			fmt.Errorf("rate limit exceeded (HTTP 429). Consider using an API key with --api-key or NCBI_API_KEY env var")
	case resp.StatusCode != http.StatusOK:
		return nil, resp.StatusCode, nil
	}

	// Guard against unbounded reads: read up to MaxBytes+1 to detect oversized responses.
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.MaxBytes+1))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	if int64(len(body)) > c.MaxBytes {
		return nil, resp.StatusCode, fmt.Errorf("response exceeds maximum size of %d bytes", c.MaxBytes)
	}
	return body, resp.StatusCode, nil
}

func (c *BaseClient) observe(endpoint string, status int, elapsed time.Duration, err error) {
	if c.Observer != nil {
		c.Observer(endpoint, status, elapsed, err)
	}
}

func retryAfterDuration(raw []byte) time.Duration {
	v := strings.TrimSpace(string(raw))
	if v == "" {
		return 0
	}

	if secs, err := strconv.Atoi(v); err == nil {
		if secs > 0 {
			return time.Duration(secs) * time.Second
		}
		return 0
	}

	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d > 0 {
			return d
		}
	}

	return 0
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
