package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kosarica/analytics-service/internal/auth"
	"github.com/kosarica/analytics-service/internal/http/ratelimit"
)

// User-facing messages for failures that are not specific to one operation
const (
	MsgNotAuthenticated = "Not authenticated"
	MsgNetwork          = "Network error, please try again"
	MsgUnexpected       = "An unexpected error occurred"
)

// NetworkError is a request that never got an HTTP response
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx backend response other than 401/403
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: backend returned HTTP %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: backend returned HTTP %d: %s", e.Op, e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the backend
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// UserMessage maps an error to the message shown to a user
func UserMessage(err error) string {
	var (
		authErr *auth.AuthError
		netErr  *NetworkError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, auth.ErrNotAuthenticated), errors.As(err, &authErr):
		return MsgNotAuthenticated
	case errors.As(err, &netErr):
		return MsgNetwork
	default:
		return MsgUnexpected
	}
}

// classify turns a transport-level failure into the backend error taxonomy
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var retryErr *ratelimit.RetryError
	if !errors.As(err, &retryErr) || retryErr.LastStatus == 0 {
		return &NetworkError{Op: op, Err: err}
	}

	apiErr := &APIError{Op: op, Status: retryErr.LastStatus, Message: errorMessage(retryErr.Body)}
	if apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden {
		return &auth.AuthError{Op: op, Err: apiErr}
	}
	return apiErr
}

// errorMessage pulls a message out of common error body shapes
func errorMessage(body []byte) string {
	var payload struct {
		Detail  any    `json:"detail"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch d := payload.Detail.(type) {
		case string:
			if d != "" {
				return d
			}
		case nil:
		default:
			if b, err := json.Marshal(d); err == nil {
				return string(b)
			}
		}
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
