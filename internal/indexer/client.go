// Package indexer is an HTTP client for the TBC indexing service.
package indexer

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

	"github.com/Klingon-tech/tbcwallet/internal/errs"
	"github.com/Klingon-tech/tbcwallet/internal/log"
	"github.com/Klingon-tech/tbcwallet/internal/metrics"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// RPS and Burst throttle outgoing requests. RPS <= 0 disables throttling.
	RPS     float64
	Burst   int
	Retries int
	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff time.Duration
	Metrics *metrics.Metrics
}

// Client talks to the indexer REST API.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
	retries int
	backoff time.Duration
	metrics *metrics.Metrics
}

// New creates a new indexer client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 250 * time.Millisecond
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		retries: cfg.Retries,
		backoff: cfg.Backoff,
		metrics: cfg.Metrics,
	}
}

// APIError is returned when the indexer answers with a client error.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("indexer error %d: %s", e.Status, e.Message)
}

// errorBody is the indexer's error payload.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, data, out)
}

// do performs a request with throttling and retries. An empty response body
// leaves out untouched, which callers read as "no more data".
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var lastErr error
	delay := c.backoff

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			log.Indexer.Debug().
				Str("path", path).
				Int("attempt", attempt).
				Err(lastErr).
				Msg("Retrying indexer request")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		start := time.Now()
		data, status, err := c.roundTrip(ctx, method, path, body)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.metrics.ObserveRequest(method, "transport_error", time.Since(start))
			lastErr = err
			continue
		case status >= 500:
			c.metrics.ObserveRequest(method, "server_error", time.Since(start))
			lastErr = fmt.Errorf("status %d", status)
			continue
		case status == http.StatusNotFound:
			c.metrics.ObserveRequest(method, "not_found", time.Since(start))
			return errs.New(errs.NotFound, "indexer: %s not found", path)
		case status >= 400:
			c.metrics.ObserveRequest(method, "client_error", time.Since(start))
			return decodeAPIError(status, data)
		}
		c.metrics.ObserveRequest(method, "ok", time.Since(start))

		if out == nil || len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		return nil
	}

	log.Indexer.Warn().Str("path", path).Err(lastErr).Msg("Indexer unreachable")
	return errs.Wrap(errs.RemoteUnavailable, lastErr, "indexer %s %s", method, path)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

func decodeAPIError(status int, data []byte) error {
	var eb errorBody
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &eb) == nil {
		if eb.Message != "" {
			msg = eb.Message
		} else if eb.Error != "" {
			msg = eb.Error
		}
	}
	return &APIError{Status: status, Message: msg}
}

// IsNotFound reports whether err is a not-found answer from the indexer.
func IsNotFound(err error) bool {
	return errors.Is(err, errs.ErrNotFound)
}
