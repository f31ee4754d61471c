package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kosarica/analytics-service/internal/http/ratelimit"
)

const errorBodyLimit = 4 << 10

// Client is an HTTP client with rate limiting and retry logic
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.RateLimiter
	config      ratelimit.Config
	userAgent   string
}

// NewClient creates a new HTTP client with rate limiting
func NewClient(config ratelimit.Config, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		rateLimiter: ratelimit.NewRateLimiter(config),
		config:      config,
		userAgent:   "Kosarica-Analytics/1.0",
	}
}

// NewClientDefault creates a new HTTP client with default rate limiting
func NewClientDefault() *Client {
	return NewClient(ratelimit.DefaultConfig(), 0)
}

// Do sends req and returns a 2xx response. Any other outcome is a
// *ratelimit.RetryError. GET and HEAD requests are retried on transport
// errors, 429 and 5xx; other methods are sent once.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	maxRetries := 0
	if ratelimit.IsIdempotent(req.Method) {
		maxRetries = c.config.MaxRetries
	}

	retryErr := &ratelimit.RetryError{Method: req.Method, URL: req.URL.Redacted()}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		retryErr.Attempts = attempt + 1

		// Throttle to respect rate limits
		if err := c.rateLimiter.Throttle(ctx); err != nil {
			retryErr.LastError = fmt.Errorf("rate limiter: %w", err)
			return nil, retryErr
		}

		attemptReq := req
		if attempt > 0 {
			attemptReq = req.Clone(ctx)
		}
		if attemptReq.Header.Get("User-Agent") == "" {
			attemptReq.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.httpClient.Do(attemptReq)
		if err != nil {
			retryErr.LastError = err
			if ctx.Err() != nil || attempt == maxRetries {
				return nil, retryErr
			}
			if err := c.wait(ctx, ratelimit.CalculateBackoff(attempt, c.config), retryErr); err != nil {
				return nil, err
			}
			continue
		}

		retryErr.LastStatus = resp.StatusCode
		retryErr.LastError = nil

		// Success - return immediately
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		if !ratelimit.IsRetryableStatus(resp.StatusCode) || attempt == maxRetries {
			retryErr.Body = readErrorBody(resp)
			return nil, retryErr
		}

		var backoff time.Duration
		if resp.StatusCode == http.StatusTooManyRequests {
			backoff = ratelimit.CalculateRateLimitBackoff(attempt, c.config, resp.Header.Get("Retry-After"))
		} else {
			backoff = ratelimit.CalculateBackoff(attempt, c.config)
		}
		drain(resp)

		log.Debug().
			Str("method", req.Method).
			Str("url", retryErr.URL).
			Int("status", resp.StatusCode).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("Retrying request")

		if err := c.wait(ctx, backoff, retryErr); err != nil {
			return nil, err
		}
	}

	return nil, retryErr
}

// GetBytes performs a GET request and returns the response body
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}

// GetConfig returns the current rate limit config
func (c *Client) GetConfig() ratelimit.Config {
	return c.config
}

// SetConfig updates the rate limit config
func (c *Client) SetConfig(config ratelimit.Config) {
	c.config = config
	c.rateLimiter.SetRate(config.RequestsPerSecond)
}

func (c *Client) wait(ctx context.Context, d time.Duration, retryErr *ratelimit.RetryError) error {
	if err := ratelimit.Sleep(ctx, d); err != nil {
		retryErr.LastError = errors.Join(retryErr.LastError, err)
		return retryErr
	}
	return nil
}

func readErrorBody(resp *http.Response) []byte {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return body
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, errorBodyLimit))
	resp.Body.Close()
}
