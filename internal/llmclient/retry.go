package llmclient

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// newBackOff returns the retry policy shared by all provider clients.
// Transient provider errors (rate limits, 5xx) are retried with exponential
// backoff; everything else is wrapped in backoff.Permanent by the caller.
func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second
	return b
}

// retryableStatus reports whether an HTTP status from a provider should be
// retried.
func retryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 529:
		return true
	}
	return false
}
