package vaillant

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the Netatmo API base URL.
	DefaultBaseURL = "https://api.netatmo.com"

	// DefaultTimeout is the per-attempt HTTP request timeout. The upstream
	// provider exhibits transient timeouts, so every attempt is bounded.
	DefaultTimeout = 30 * time.Second
)

// RetryConfig configures automatic retry behavior for transient failures.
// The same policy is applied uniformly to every outbound call; it holds no
// state across calls.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first
	// (default: 3). Must be at least 1.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry (default: 100ms).
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between retries (default: 5s).
	MaxBackoff time.Duration
	// Multiplier is the exponential backoff multiplier (default: 2.0).
	Multiplier float64
	// Jitter randomizes each delay within [delay/2, delay] to avoid
	// synchronized retry storms (default: true).
	Jitter bool
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
		Jitter:         true,
	}
}

// Client is the shared HTTP pipeline used by the auth and thermostat
// clients: it issues form-encoded requests, applies the retry policy, and
// classifies every failure into the typed error taxonomy.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	timeout     time.Duration
	retryConfig *RetryConfig
	logger      Logger
	cacheConfig *CacheConfig

	rateLimitCallback RateLimitCallback
	rateLimitMu       sync.RWMutex
	lastRateLimit     *RateLimitInfo
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client. Passing the same HTTP client to
// every vaillant client shares one connection pool across them.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-attempt HTTP request timeout. The timeout is
// applied after all options run, so it combines with WithHTTPClient in
// either order and never mutates the caller's client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithRetry replaces the retry policy. Retries are attempted on rate limits
// (429), server errors (5xx), timeouts, and connection failures. Passing nil
// disables retries entirely.
func WithRetry(config *RetryConfig) Option {
	return func(c *Client) {
		c.retryConfig = config
	}
}

// newClient builds the shared pipeline with defaults applied.
func newClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retryConfig: DefaultRetryConfig(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.timeout > 0 {
		client := *c.httpClient
		client.Timeout = c.timeout
		c.httpClient = &client
	}

	return c
}

// close releases idle connections held by the underlying transport.
func (c *Client) close() {
	c.httpClient.CloseIdleConnections()
}

// postForm performs a form-encoded POST through the retry policy. An empty
// bearer token omits the Authorization header (used for the token endpoint).
func (c *Client) postForm(ctx context.Context, path string, form url.Values, bearer string) ([]byte, error) {
	if c.retryConfig == nil || c.retryConfig.MaxAttempts <= 1 {
		return c.do(ctx, path, form, bearer)
	}

	backoff := c.retryConfig.InitialBackoff
	for attempt := 1; ; attempt++ {
		data, err := c.do(ctx, path, form, bearer)
		if err == nil {
			return data, nil
		}

		// Non-retryable errors fail fast on first occurrence.
		if !IsRetryable(err) || attempt >= c.retryConfig.MaxAttempts {
			return nil, err
		}

		delay := backoff
		// Honor the provider-supplied Retry-After when rate limited.
		if rle, ok := err.(*RateLimitError); ok && rle.RetryAfter > 0 && rle.RetryAfter < c.retryConfig.MaxBackoff {
			delay = rle.RetryAfter
		} else if c.retryConfig.Jitter {
			delay = delay/2 + time.Duration(rand.Int63n(int64(delay/2)+1))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		backoff = time.Duration(float64(backoff) * c.retryConfig.Multiplier)
		if backoff > c.retryConfig.MaxBackoff {
			backoff = c.retryConfig.MaxBackoff
		}
	}
}

// do performs a single HTTP attempt and classifies any failure.
func (c *Client) do(ctx context.Context, path string, form url.Values, bearer string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	c.logRequest(ctx, path)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Caller cancellation is not a transport failure; pass it through.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logResponse(ctx, path, 0, time.Since(start), err)
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	c.parseRateLimitHeaders(resp.Header)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode >= 400 {
		cerr := classifyStatus(resp.StatusCode, body, resp.Header)
		c.logResponse(ctx, path, resp.StatusCode, time.Since(start), cerr)
		return nil, cerr
	}

	c.logResponse(ctx, path, resp.StatusCode, time.Since(start), nil)
	return body, nil
}
