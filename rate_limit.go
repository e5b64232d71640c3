package vaillant

import (
	"net/http"
	"strconv"
	"time"
)

// RateLimitInfo contains rate limit information from API response headers.
type RateLimitInfo struct {
	Limit     int       // Maximum requests allowed in the window
	Remaining int       // Requests remaining in current window
	Reset     time.Time // When the rate limit window resets
}

// RateLimitCallback is called when rate limit headers are received.
// Can be used for monitoring or preemptive throttling.
type RateLimitCallback func(RateLimitInfo)

// WithRateLimitCallback sets a callback invoked whenever a response carries
// rate limit headers, including on successful requests.
func WithRateLimitCallback(callback RateLimitCallback) Option {
	return func(c *Client) {
		c.rateLimitCallback = callback
	}
}

// RateLimitError provides detailed information about a 429 response. It
// includes the recommended wait time from the Retry-After header if the
// provider supplied one; the retry policy honors it when scheduling the
// next attempt.
type RateLimitError struct {
	APIError

	// RetryAfter is the recommended wait duration from the Retry-After
	// header. Zero if the header was not present.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return "vaillant: rate limited (retry after " + e.RetryAfter.String() + ")"
	}
	return "vaillant: rate limited"
}

// parseRateLimitHeaders extracts rate limit information from response
// headers, stores it, and invokes the callback when one is registered.
func (c *Client) parseRateLimitHeaders(header http.Header) {
	limit := header.Get("X-RateLimit-Limit")
	remaining := header.Get("X-RateLimit-Remaining")
	reset := header.Get("X-RateLimit-Reset")

	if limit == "" && remaining == "" && reset == "" {
		return
	}

	info := RateLimitInfo{}

	if v, err := strconv.Atoi(limit); err == nil {
		info.Limit = v
	}
	if v, err := strconv.Atoi(remaining); err == nil {
		info.Remaining = v
	}
	if v, err := strconv.ParseInt(reset, 10, 64); err == nil {
		info.Reset = time.Unix(v, 0)
	}

	c.rateLimitMu.Lock()
	c.lastRateLimit = &info
	c.rateLimitMu.Unlock()

	if c.rateLimitCallback != nil {
		c.rateLimitCallback(info)
	}
}

// lastRateLimitInfo returns the most recently observed rate limit headers,
// or nil if none have been seen.
func (c *Client) lastRateLimitInfo() *RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.lastRateLimit
}

// parseRetryAfter parses the Retry-After header value. It handles both
// delta-seconds (e.g., "120") and HTTP-date formats.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	// Try parsing as seconds first (most common)
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	// Try parsing as HTTP-date (RFC 1123)
	if t, err := time.Parse(time.RFC1123, value); err == nil {
		delta := time.Until(t)
		if delta > 0 {
			return delta
		}
	}

	return 0
}
