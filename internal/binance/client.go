package binance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	spotapi "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	futuresapi "github.com/adshao/go-binance/v2/futures"
)

const defaultTimeout = 30 * time.Second

// Client provides access to the exchange REST API on both venues.
type Client struct {
	spot    *spotapi.Client
	futures *futuresapi.Client
	logger  *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a REST client for the given venue base URLs. The public
// market-data endpoints need no credentials.
func NewClient(spotURL, futuresURL string, opts ...ClientOption) *Client {
	// The underlying clients default to http.DefaultClient; give each venue
	// its own so WithTimeout cannot leak into the global client.
	spot := spotapi.NewClient("", "")
	spot.BaseURL = trimAPIPath(spotURL)
	spot.HTTPClient = &http.Client{Timeout: defaultTimeout}

	fut := futuresapi.NewClient("", "")
	fut.BaseURL = trimAPIPath(futuresURL)
	fut.HTTPClient = &http.Client{Timeout: defaultTimeout}

	c := &Client{
		spot:         spot,
		futures:      fut,
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP timeout on both venue clients.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.spot.HTTPClient.Timeout = d
		c.futures.HTTPClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// trimAPIPath strips the versioned API path from configured base URLs.
// The underlying clients expect scheme+host and append /api/v3 or /fapi/v1
// themselves.
func trimAPIPath(url string) string {
	url = strings.TrimSuffix(url, "/")
	url = strings.TrimSuffix(url, "/api/v3")
	url = strings.TrimSuffix(url, "/fapi/v1")
	return url
}

// withRetry runs fn with exponential backoff on retryable failures.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int63n(int64(backoff)))
			c.logger.Debug("retrying upstream request",
				"attempt", attempt,
				"backoff", jitter,
				"op", op,
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryable reports whether an upstream failure is worth another attempt.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		// -1000 UNKNOWN, -1001 DISCONNECTED, -1003 TOO_MANY_REQUESTS
		switch apiErr.Code {
		case -1000, -1001, -1003:
			return true
		}
		return false
	}

	// Transport-level failure
	return true
}

func parseFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return v, nil
}
