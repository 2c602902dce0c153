// Package retry wraps a single logical operation with bounded attempts and
// exponential backoff. It only retries errors explicitly marked transient;
// everything else propagates immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrExhausted is returned (wrapped) once all attempts have failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// transientError marks an error as retryable.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err so Do will retry it. A nil err returns nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked with Transient, or looks like a
// network-level failure (timeout, reset, refused, hang-up).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection reset", "connection refused", "EOF", "broken pipe", "no such host", "timeout"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Options controls a Do call.
type Options struct {
	MaxAttempts int           // minimum 1
	BaseDelay   time.Duration // delay before attempt 2; doubles each retry
	Sleep       func(time.Duration)
	OnRetry     func(attempt int, err error) // observability hook, may be nil
}

// Do runs op up to opts.MaxAttempts times. Attempt n (1-indexed) waits
// BaseDelay * 2^(n-2) before running, except the first which runs
// immediately. Terminal errors are returned as-is without consuming a retry.
func Do(ctx context.Context, op func() error, opts Options) error {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := opts.BaseDelay << (attempt - 2)
			sleep(delay)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, lastErr)
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrExhausted, opts.MaxAttempts, lastErr)
}
