// Package resilience classifies transient upstream failures and applies the
// fetch pipeline's retry policy: at most a small, configured number of
// retries on transient errors, fail fast on everything else.
package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
	"time"
)

// TransientError marks an error as safe to retry (e.g. 429, 5xx, timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// RetryableStatus reports whether an HTTP status code indicates a
// server-side condition worth one more attempt.
func RetryableStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// Transient reports whether err (or anything in its chain) looks like a
// passing network or server failure rather than a permanent one.
func Transient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	// Wrapped client errors often survive only as text.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"i/o timeout",
		"tls handshake timeout",
		"no such host",
		"broken pipe",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// Do runs fn, retrying up to retries additional times when the failure is
// transient. It waits `wait` between attempts and stops immediately when the
// context is done. The last error is returned unchanged so callers keep the
// original failure, not a retry wrapper.
func Do(ctx context.Context, retries int, wait time.Duration, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || attempt >= retries || !Transient(lastErr) {
			return lastErr
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
}
