// Package backend is the client for the external analytics backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kosarica/analytics-service/internal/auth"
	apphttp "github.com/kosarica/analytics-service/internal/http"
	"github.com/kosarica/analytics-service/internal/telemetry"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_backend_requests_total",
		Help: "Backend requests by operation and outcome",
	}, []string{"op", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "analytics_backend_request_duration_seconds",
		Help:    "Backend request latency by operation",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"op"})
)

// Client calls the analytics backend. The session comes from the request
// context (auth.WithSession) or, failing that, from the configured source.
type Client struct {
	baseURL  *url.URL
	http     *apphttp.Client
	sessions auth.SessionSource
	logger   zerolog.Logger
}

// NewClient creates a backend client
func NewClient(baseURL string, httpClient *apphttp.Client, sessions auth.SessionSource) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = apphttp.NewClientDefault()
	}
	return &Client{
		baseURL:  u,
		http:     httpClient,
		sessions: sessions,
		logger:   log.With().Str("component", "backend").Logger(),
	}, nil
}

// WithSessions returns a copy of c that reads sessions from src
func (c *Client) WithSessions(src auth.SessionSource) *Client {
	cp := *c
	cp.sessions = src
	return &cp
}

type call struct {
	op          string
	method      string
	segments    []string
	query       url.Values
	body        io.Reader
	contentType string
	anonymous   bool
}

func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return bytes.NewReader(data), nil
}

func (c *Client) session(ctx context.Context) (auth.Session, error) {
	if s, ok := auth.FromContext(ctx); ok {
		return s, nil
	}
	if c.sessions == nil {
		return auth.Session{}, auth.ErrNotAuthenticated
	}
	return c.sessions.Session(ctx)
}

func (c *Client) endpoint(segments []string, query url.Values) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u := c.baseURL.JoinPath(escaped...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends one request and decodes a JSON response into out when non-nil
func (c *Client) do(ctx context.Context, cl call, out any) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "backend."+cl.op, trace.WithAttributes(
		attribute.String("http.method", cl.method),
	))
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = outcomeLabel(err)
			telemetry.RecordError(span, err)
		}
		requestsTotal.WithLabelValues(cl.op, outcome).Inc()
		requestDuration.WithLabelValues(cl.op).Observe(time.Since(start).Seconds())
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, cl.method, c.endpoint(cl.segments, cl.query), cl.body)
	if err != nil {
		return fmt.Errorf("%s: %w", cl.op, err)
	}

	if !cl.anonymous {
		s, err := c.session(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Token "+s.AccessToken)
	}

	requestID := uuid.NewString()
	span.SetAttributes(attribute.String("request.id", requestID))
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		err = classify(cl.op, err)
		c.logger.Debug().Err(err).Str("op", cl.op).Str("request_id", requestID).Msg("Backend request failed")
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", cl.op, err)
	}
	return nil
}

func outcomeLabel(err error) string {
	switch UserMessage(err) {
	case MsgNotAuthenticated:
		return "auth_error"
	case MsgNetwork:
		return "network_error"
	default:
		return "error"
	}
}

// ExchangeToken trades an identity-provider token for a backend access token
func (c *Client) ExchangeToken(ctx context.Context, idToken string) (auth.Grant, error) {
	body, err := jsonBody(tokenRequest{IDToken: idToken})
	if err != nil {
		return auth.Grant{}, err
	}
	var resp tokenResponse
	err = c.do(ctx, call{
		op:          "exchange_token",
		method:      http.MethodPost,
		segments:    []string{"auth", "token"},
		body:        body,
		contentType: "application/json",
		anonymous:   true,
	}, &resp)
	if err != nil {
		return auth.Grant{}, err
	}
	return auth.Grant{AccessToken: resp.AccessToken, UserID: string(resp.UserID)}, nil
}
