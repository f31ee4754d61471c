package ratelimit

import (
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

// RetryError is returned when a request did not succeed. LastStatus is 0
// when no response was received.
type RetryError struct {
	Method     string
	URL        string
	Attempts   int
	LastStatus int
	LastError  error
	// Body holds the start of the last error response
	Body []byte
}

func (e *RetryError) Error() string {
	msg := e.Method + " " + e.URL + " failed after " + strconv.Itoa(e.Attempts) + " attempt"
	if e.Attempts != 1 {
		msg += "s"
	}
	if e.LastStatus != 0 {
		msg += " (HTTP " + strconv.Itoa(e.LastStatus) + ")"
	}
	if e.LastError != nil {
		msg += ": " + e.LastError.Error()
	}
	return msg
}

func (e *RetryError) Unwrap() error {
	return e.LastError
}

// IsRetryableStatus reports whether a response status is worth retrying.
// Retryable: 429, 5xx
func IsRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status < 600)
}

// IsIdempotent reports whether a request with this method may be replayed.
// Uploads and creates are never retried so a slow success is not duplicated.
func IsIdempotent(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// CalculateBackoff returns an exponential delay with 0-25% jitter
func CalculateBackoff(attempt int, config Config) time.Duration {
	delay := float64(config.InitialBackoffMs) * math.Pow(2.0, float64(attempt))
	delay = math.Min(delay, float64(config.MaxBackoffMs))
	delay += rand.Float64() * 0.25 * delay
	return time.Duration(delay * float64(time.Millisecond))
}

// CalculateRateLimitBackoff returns the delay after a 429. A Retry-After
// header in seconds wins; otherwise the backoff grows 3x per attempt.
func CalculateRateLimitBackoff(attempt int, config Config, retryAfter string) time.Duration {
	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		jitter := time.Duration(rand.Float64() * float64(time.Second))
		return time.Duration(seconds)*time.Second + jitter
	}

	delay := float64(config.InitialBackoffMs) * math.Pow(3.0, float64(attempt))
	delay = math.Min(delay, float64(config.MaxBackoffMs))
	delay += rand.Float64() * 0.25 * delay
	return time.Duration(delay * float64(time.Millisecond))
}
