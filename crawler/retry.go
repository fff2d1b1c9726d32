package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// RetryPolicy configures retry behavior for failed fetches.
type RetryPolicy struct {
	MaxRetries int           // Maximum number of retries (2 = 3 total attempts)
	BaseDelay  time.Duration // Initial backoff delay
	MaxDelay   time.Duration // Maximum backoff cap
}

// DefaultRetryPolicy returns a RetryPolicy with sensible defaults:
// 2 retries (3 attempts), 1s base delay, 30s max delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// fetchFunc performs a single fetch attempt.
type fetchFunc func(ctx context.Context) (*Document, error)

// fetchWithRetry runs fetch with exponential backoff. It retries transient
// failures (network errors, 5xx, 429) but not permanent ones (other 4xx).
// The returned error carries the number of attempts when retries ran out.
func fetchWithRetry(ctx context.Context, policy RetryPolicy, fetch fetchFunc) (*Document, error) {
	backoff := policy.BaseDelay
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("%w (retry interrupted: %w)", lastErr, ctx.Err())
			case <-timer.C:
				backoff = min(backoff*2, policy.MaxDelay)
			}
		}

		attempts++
		doc, err := fetch(ctx)
		if err == nil {
			return doc, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldRetry(err) {
			return nil, err
		}
	}

	if attempts > 1 {
		return nil, fmt.Errorf("%w (after %d attempts)", lastErr, attempts)
	}
	return nil, lastErr
}

// shouldRetry determines if a failed fetch should be retried.
// Returns true for network errors, timeouts, HTTP 429 and HTTP 5xx.
// Returns false for other 4xx responses and cancellation.
func shouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	return isRetryableMessage(err.Error())
}

// retryablePatterns indicate transient failures in errors that lost their
// type on the way through a client library.
var retryablePatterns = []string{
	"timeout",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"temporary failure",
	"eof",
}

func isRetryableMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
