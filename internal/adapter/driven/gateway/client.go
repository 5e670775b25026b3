// Package gateway talks to the Media Ingest Gateway's control API.
package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ericfisherdev/ingestgate/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.SessionTerminator = (*Client)(nil)
	_ driven.SessionTerminator = Noop{}
)

// Client kicks sessions off the gateway with
// DELETE {baseURL}/api/v1/clients/{sessionID}.
type Client struct {
	baseURL       string
	token         string
	client        *http.Client
	logger        *slog.Logger
	maxAttempts   int
	retryInterval time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.client = c
	}
}

// WithRetry sets how many times a failed reject is attempted and the pause
// between attempts.
func WithRetry(attempts int, interval time.Duration) Option {
	return func(cl *Client) {
		if attempts > 0 {
			cl.maxAttempts = attempts
		}
		if interval >= 0 {
			cl.retryInterval = interval
		}
	}
}

// NewClient creates a Client for the gateway API at baseURL. token, when
// non-empty, is sent as a bearer token.
func NewClient(baseURL, token string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		token:         strings.TrimSpace(token),
		client:        &http.Client{Timeout: 3 * time.Second},
		logger:        logger,
		maxAttempts:   2,
		retryInterval: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reject asks the gateway to drop the session. A 404 means the session is
// already gone and counts as success.
func (c *Client) Reject(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("reject session: session id required")
	}
	target := fmt.Sprintf("%s/api/v1/clients/%s", c.baseURL, url.PathEscape(sessionID))

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		lastErr = c.doDelete(ctx, target)
		if lastErr == nil {
			c.logger.Info("gateway session rejected", "session_id", sessionID)
			return nil
		}
		if attempt == c.maxAttempts {
			break
		}
		c.logger.Warn("gateway reject failed", "session_id", sessionID, "attempt", attempt, "error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryInterval):
		}
	}
	return fmt.Errorf("reject session %s: %w", sessionID, lastErr)
}

func (c *Client) doDelete(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 || resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(data)))
}

// Noop is used when no gateway control API is configured. The hook response
// alone carries the rejection.
type Noop struct{}

// Reject does nothing.
func (Noop) Reject(context.Context, string) error { return nil }
