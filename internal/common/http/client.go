// internal/common/http/client.go
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrRetriesExhausted = errors.New("HTTP_RETRIES_EXHAUSTED")

// RetryPolicy controls how transport failures are retried. Only failures to
// obtain a response are retried; any HTTP status is returned to the caller.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
}

// Delay returns the backoff before the retry that follows the given attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.InitialDelay * time.Duration(1<<attempt)
}

// RequestFactory builds a fresh request for each attempt, since a request
// body cannot be replayed once sent.
type RequestFactory func(ctx context.Context) (*http.Request, error)

// AttemptHook runs before every attempt, e.g. to wait on a rate limiter.
type AttemptHook func(ctx context.Context) error

type Sleeper func(ctx context.Context, d time.Duration) error

type Client struct {
	httpClient *http.Client
	retry      RetryPolicy
	sleep      Sleeper
}

type Option func(*Client)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.httpClient.Do(req)
}

// DoWithRetry sends the request built by newReq, retrying transport failures
// with exponential backoff. Cancellation is checked between attempts.
func (c *Client) DoWithRetry(ctx context.Context, newReq RequestFactory, before AttemptHook) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if before != nil {
			if err := before(ctx); err != nil {
				return nil, err
			}
		}

		req, err := newReq(ctx)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == c.retry.MaxRetries {
			break
		}

		if err := c.sleep(ctx, c.retry.Delay(attempt)); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, c.retry.MaxRetries+1, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
