// Package fetch wraps HTTP access to the listing site. Retries are an
// explicit bounded loop with doubling delay, so the attempt count is a
// visible, testable parameter rather than recursion depth.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// Options configures the client.
type Options struct {
	UserAgent      string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// Client fetches raw page content.
type Client struct {
	http    *resty.Client
	logger  *logrus.Logger
	retries int
	delay   time.Duration
}

func NewClient(opts Options, logger *logrus.Logger) *Client {
	http := resty.New().
		SetTimeout(opts.RequestTimeout).
		SetHeader("User-Agent", opts.UserAgent)

	retries := opts.MaxRetries
	if retries < 1 {
		retries = 1
	}

	return &Client{
		http:    http,
		logger:  logger,
		retries: retries,
		delay:   opts.RetryBaseDelay,
	}
}

// Get fetches url with the given query parameters, retrying transient
// failures with exponential backoff. Non-2xx responses count as
// failures. The context aborts both in-flight requests and backoff
// waits.
func (c *Client) Get(ctx context.Context, url string, params map[string]string) ([]byte, error) {
	var lastErr error
	delay := c.delay

	for attempt := 1; attempt <= c.retries; attempt++ {
		if attempt > 1 {
			c.logger.WithFields(logrus.Fields{
				"url":     url,
				"attempt": attempt,
				"delay":   delay.String(),
			}).Warn("Retrying fetch")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(url)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.IsError() {
			lastErr = fmt.Errorf("unexpected status %d for %s", resp.StatusCode(), url)
			continue
		}
		return resp.Body(), nil
	}

	return nil, fmt.Errorf("fetch %s failed after %d attempts: %w", url, c.retries, lastErr)
}
