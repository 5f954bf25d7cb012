// Package zoom provides HTTP client with rate-limit retry for Zoom API interactions
package zoom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/curtbushko/zoom-to-moodle/internal/config"
)

const (
	// DefaultMaxAttempts is how many times a rate-limited request is sent before giving up
	DefaultMaxAttempts = 10
	// DefaultRateLimitBackoff is the fixed pause between rate-limited attempts
	DefaultRateLimitBackoff = 100 * time.Millisecond
)

// HTTPClientConfig holds configuration for the retry HTTP client
type HTTPClientConfig struct {
	Timeout           time.Duration // Request timeout
	MaxAttempts       int           // Attempts per request when rate limited
	Backoff           time.Duration // Fixed wait between rate-limited attempts
	RequestsPerSecond float64       // Client-side pacing, 0 disables
}

// HTTPClientConfigFromZoomConfig creates HTTPClientConfig from ZoomConfig
func HTTPClientConfigFromZoomConfig(cfg config.ZoomConfig) HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:           cfg.TimeoutDuration(),
		MaxAttempts:       cfg.RateLimitRetries,
		Backoff:           cfg.RateLimitBackoff(),
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
}

// RetryHTTPClient is an HTTP client that retries rate-limited requests with a fixed backoff
type RetryHTTPClient struct {
	client  *http.Client
	config  HTTPClientConfig
	limiter *rate.Limiter
}

// NewRetryHTTPClient creates a new HTTP client with rate-limit retry
func NewRetryHTTPClient(config HTTPClientConfig) *RetryHTTPClient {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.Backoff <= 0 {
		config.Backoff = DefaultRateLimitBackoff
	}

	c := &RetryHTTPClient{
		client: &http.Client{Timeout: config.Timeout},
		config: config,
	}
	if config.RequestsPerSecond > 0 {
		burst := int(config.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}
	return c
}

// ZoomAPIError represents a Zoom API error response
type ZoomAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *ZoomAPIError) Error() string {
	return fmt.Sprintf("zoom API error %d: %s", e.Code, e.Message)
}

// HTTPError represents a non-2xx response without a Zoom error body
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.Status)
}

// Do executes an HTTP request, resending it while Zoom reports the rate limit.
// The final response is always returned with a readable body, even when it is
// still rate limited after the last attempt.
func (c *RetryHTTPClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	for attempt := 1; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter wait: %w", err)
			}
		}

		reqClone, err := cloneRequest(req)
		if err != nil {
			return nil, err
		}

		resp, err := c.client.Do(reqClone)
		if err != nil {
			return nil, fmt.Errorf("request failed after %d attempts: %w", attempt, err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		resp.Body = io.NopCloser(bytes.NewReader(body))

		if !isRateLimited(resp.StatusCode, body) || attempt >= c.config.MaxAttempts {
			return resp, nil
		}

		if err := sleepContext(ctx, c.config.Backoff); err != nil {
			return nil, err
		}
	}
}

// cloneRequest creates a copy of the HTTP request with a fresh body for each attempt
func cloneRequest(req *http.Request) (*http.Request, error) {
	reqClone := req.Clone(req.Context())
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		reqClone.Body = body
	}
	return reqClone, nil
}

// isRateLimited reports whether a response signals the per-account request limit
func isRateLimited(statusCode int, body []byte) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	if statusCode != http.StatusForbidden {
		return false
	}
	zoomErr := parseZoomError(statusCode, body)
	return zoomErr != nil && isRateLimitCode(zoomErr)
}

func isRateLimitCode(e *ZoomAPIError) bool {
	if e.Code == http.StatusTooManyRequests || e.Code == http.StatusForbidden {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "rate limit")
}

// parseZoomError attempts to parse a Zoom API error response
func parseZoomError(statusCode int, body []byte) *ZoomAPIError {
	if len(body) == 0 {
		return nil
	}

	var zoomErr ZoomAPIError
	if err := json.Unmarshal(body, &zoomErr); err != nil {
		return nil
	}

	// Validate that it looks like a Zoom error
	if zoomErr.Code == 0 && zoomErr.Message == "" {
		return nil
	}

	zoomErr.Status = statusCode
	return &zoomErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Client returns the underlying HTTP client
func (c *RetryHTTPClient) Client() *http.Client {
	return c.client
}

// AuthenticatedRetryClient combines rate-limit retry with per-request authentication
type AuthenticatedRetryClient struct {
	retryClient *RetryHTTPClient
	auth        Authenticator
}

// NewAuthenticatedRetryClient creates a client with both retry logic and authentication
func NewAuthenticatedRetryClient(retryClient *RetryHTTPClient, auth Authenticator) *AuthenticatedRetryClient {
	return &AuthenticatedRetryClient{
		retryClient: retryClient,
		auth:        auth,
	}
}

// Do signs the request with a freshly minted token and executes it
func (c *AuthenticatedRetryClient) Do(req *http.Request) (*http.Response, error) {
	token, err := c.auth.GetAccessToken(req.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to get access token for request: %w", err)
	}

	req.Header.Set("Authorization", token.TokenType+" "+token.AccessToken)
	return c.retryClient.Do(req)
}

// IsNotFound reports whether err is a 404 from the Zoom API
func IsNotFound(err error) bool {
	var zoomErr *ZoomAPIError
	if errors.As(err, &zoomErr) {
		return zoomErr.Status == http.StatusNotFound
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusNotFound
	}
	return false
}

// IsRateLimitError reports whether err is a request that stayed rate limited after every attempt
func IsRateLimitError(err error) bool {
	var zoomErr *ZoomAPIError
	if errors.As(err, &zoomErr) {
		return zoomErr.Status == http.StatusTooManyRequests ||
			(zoomErr.Status == http.StatusForbidden && isRateLimitCode(zoomErr))
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}
