// Package syncclient posts collected usage to the dashboard.
package syncclient

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

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/pario-ai/tokenboard/pkg/config"
	"github.com/pario-ai/tokenboard/pkg/models"
)

// AttemptTimeout bounds a single HTTP attempt.
const AttemptTimeout = 30 * time.Second

// ErrAuth is returned when the dashboard rejects the API key.
var ErrAuth = errors.New("authentication failed")

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Client sends sync payloads with a fixed-delay retry policy.
type Client struct {
	endpoint string
	apiKey   string
	attempts int
	delay    time.Duration
	http     *http.Client
	logger   *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client from the collector config.
func New(cfg config.Collector, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		attempts: cfg.Retry.Attempts,
		delay:    cfg.Retry.Delay(),
		http:     &http.Client{},
		logger:   logger,
	}
	if c.attempts < 1 {
		c.attempts = 1
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Send posts data and returns the server's per-record results. Auth
// failures are not retried; anything else is retried until attempts run out.
// Record-level errors in the response are logged, not returned.
func (c *Client) Send(ctx context.Context, data models.UsageData) (models.SyncResponse, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return models.SyncResponse{}, fmt.Errorf("encode payload: %w", err)
	}

	var resp models.SyncResponse
	attempt := 0
	op := func() error {
		attempt++
		r, err := c.post(ctx, body)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.delay), uint64(c.attempts-1)),
		ctx,
	)
	notify := func(err error, next time.Duration) {
		c.logger.Warn("sync attempt failed",
			zap.String("agent", data.Device.AgentType),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.attempts),
			zap.Duration("retry_in", next),
			zap.Error(err))
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return models.SyncResponse{}, fmt.Errorf("sync %s after %d attempt(s): %w", data.Device.AgentType, attempt, err)
	}

	for _, r := range resp.Results {
		if r.Status != models.SyncStatusSuccess {
			c.logger.Warn("record rejected",
				zap.String("agent", data.Device.AgentType),
				zap.String("date", r.Date),
				zap.String("message", r.Message))
		}
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, body []byte) (models.SyncResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.SyncResponse{}, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	res, err := c.http.Do(req)
	if err != nil {
		return models.SyncResponse{}, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 10<<20))
	if err != nil {
		return models.SyncResponse{}, fmt.Errorf("read response: %w", err)
	}

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return models.SyncResponse{}, backoff.Permanent(fmt.Errorf("%w: %w", ErrAuth, statusError(res.StatusCode, raw)))
	case res.StatusCode < 200 || res.StatusCode > 299:
		return models.SyncResponse{}, statusError(res.StatusCode, raw)
	}

	var out models.SyncResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.SyncResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func statusError(code int, body []byte) *StatusError {
	msg := strings.TrimSpace(string(body))
	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
		msg = envelope.Error
	}
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return &StatusError{Code: code, Body: msg}
}
