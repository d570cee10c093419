package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"titlecache/internal/logging"
	"titlecache/internal/services"
	"titlecache/internal/worker"
)

const (
	defaultTimeout        = 15 * time.Second
	defaultRetryAttempts  = 5
	defaultRetryBaseDelay = 2 * time.Second
	maxErrorBodyBytes     = 512
)

// Client issues GET requests with retries.
type Client struct {
	httpClient       *http.Client
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(context.Context, time.Duration) error
	userAgent        string
	logger           *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. Its transport is used as is.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithRetryMaxAttempts overrides the number of attempts (defaults to 5).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff sets the first delay and the cap on any single delay. A
// zero maxDelay leaves delays uncapped.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how backoff sleeps are performed (useful for tests).
// The sleeper must return ctx.Err() if ctx ends first.
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New constructs a Client whose transport records a client span per attempt.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		sleeper:          worker.Sleep,
		userAgent:        "titlecache",
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "fetcher")
	return c
}

// Error is returned once every attempt has failed, or when a successful
// response cannot be decoded.
type Error struct {
	URL        string
	Attempts   int
	StatusCode int
	Err        error
	malformed  bool
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "fetch %s", e.URL)
	if e.malformed {
		b.WriteString(": malformed response")
	} else {
		fmt.Fprintf(&b, ": failed after %d attempts", e.Attempts)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (last status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets callers classify with the services markers.
func (e *Error) Is(target error) bool {
	if e.malformed {
		return target == services.ErrMalformed
	}
	return target == services.ErrTransient
}

type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// FetchJSON GETs url and decodes the body into out.
func (c *Client) FetchJSON(ctx context.Context, url string, out any) error {
	return c.do(ctx, url, func(body io.Reader) error {
		if err := json.NewDecoder(body).Decode(out); err != nil {
			return &Error{URL: url, Err: err, malformed: true}
		}
		return nil
	})
}

// Download GETs url and streams the body into the writer returned by open,
// which is called once per 2xx response. A failed attempt may leave a
// partial body behind, so open should truncate its target.
func (c *Client) Download(ctx context.Context, url string, open func() (io.WriteCloser, error)) error {
	return c.do(ctx, url, func(body io.Reader) error {
		w, err := open()
		if err != nil {
			return err
		}
		if _, err := io.Copy(w, body); err != nil {
			_ = w.Close()
			return fmt.Errorf("copy body: %w", err)
		}
		return w.Close()
	})
}

// do runs attempts until consume succeeds. Transport errors, non-2xx
// statuses and body read errors during consume are retried; a malformed
// *Error from consume is returned immediately.
func (c *Client) do(ctx context.Context, url string, consume func(io.Reader) error) error {
	attempts := c.retryAttempts()
	var (
		lastErr    error
		lastStatus int
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		status, err := c.attempt(ctx, url, consume)
		if err == nil {
			return nil
		}
		var fetchErr *Error
		if errors.As(err, &fetchErr) && fetchErr.malformed {
			fetchErr.Attempts = attempt
			fetchErr.StatusCode = status
			return fetchErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		lastErr, lastStatus = err, status
		if attempt == attempts {
			break
		}

		delay := c.backoffDelay(attempt)
		c.logger.Debug("fetch attempt failed",
			logging.String("url", url),
			logging.Int("attempt", attempt),
			logging.Int("status", status),
			logging.Duration("retry_in", delay),
			logging.Error(err),
		)
		if err := c.sleeper(ctx, delay); err != nil {
			return err
		}
	}
	return &Error{URL: url, Attempts: attempts, StatusCode: lastStatus, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, url string, consume func(io.Reader) error) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &Error{URL: url, Err: fmt.Errorf("new request: %w", err), malformed: true}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return resp.StatusCode, &statusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	return resp.StatusCode, consume(resp.Body)
}

func (c *Client) retryAttempts() int {
	if c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

// backoffDelay returns the pause after the given 1-based failed attempt:
// base, 2*base, 4*base and so on, capped at retryMaxDelay when set.
func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.retryBaseDelay
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if c.retryMaxDelay > 0 && delay > c.retryMaxDelay/2 {
			return c.retryMaxDelay
		}
		delay *= 2
	}
	if c.retryMaxDelay > 0 && delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}
