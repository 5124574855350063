// Package fsops wraps the filesystem operations the sync engine performs
// with bounded retries and an atomic replace primitive.
package fsops

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	domainerrors "github.com/mirrordapp/mirrord-server/internal/errors"
)

// Defaults for the retry policy. Backoff grows as baseDelay * 3^attempt.
const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 50 * time.Millisecond
)

// RetryPolicy bounds how often a failing filesystem call is retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy returns the standard policy used by the engine.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	return p
}

// IsTransient reports whether err is an OS-level contention error worth
// retrying. Editors, antivirus scanners and the OS importer hold short
// lived locks on files they touch. Permanent conditions such as
// "not found" or "is a directory" are never retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	for _, errno := range []syscall.Errno{
		syscall.EBUSY,
		syscall.EAGAIN,
		syscall.ETXTBSY,
		syscall.EACCES,
		syscall.EPERM,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// WithRetry invokes action, retrying transient failures with exponential
// backoff until the policy's attempt budget is spent. Non-transient
// failures return immediately, wrapped with the operation name. The
// backoff sleep honors ctx cancellation.
func WithRetry(ctx context.Context, policy RetryPolicy, name string, action func() error) error {
	policy = policy.normalized()

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := policy.BaseDelay
			for i := 0; i < attempt-1; i++ {
				delay *= 3
			}
			if err := sleepContext(ctx, delay); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}

		lastErr = action()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return fmt.Errorf("%s: %w", name, lastErr)
		}
	}

	return domainerrors.Transientf("%s failed after %d attempts", name, policy.MaxAttempts).WithCause(lastErr)
}

// sleepContext sleeps for d or returns early when ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
