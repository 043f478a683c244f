// Package retry provides a bounded retry wrapper with exponential backoff
// for network calls. Callers pass the operation and policy explicitly;
// there is no implicit retry anywhere else in the codebase.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy bounds a retried operation.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration // delay before attempt n is BaseDelay * 2^(n-1)
	MaxDelay    time.Duration // 0 = uncapped
}

// Permanent wraps an error that must not be retried.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Abort marks err as non-retryable so Do fails fast.
func Abort(err error) error {
	return &Permanent{Err: err}
}

// Do runs op up to p.MaxAttempts times, sleeping BaseDelay * 2^attempt
// between failures. It stops early on context cancellation or a Permanent
// error and returns the last error observed.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		var perm *Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}

		delay := p.BaseDelay << (attempt - 1)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("failed after %d attempts, last error: %w", p.MaxAttempts, lastErr)
}
