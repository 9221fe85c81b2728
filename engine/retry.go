// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/danielhkuo/stall-allot/store"
)

// retryable reports whether a failed attempt should be repeated: a lost
// compare-and-swap or a transient store fault. Domain errors are final.
func retryable(err error) bool {
	if IsDomain(err) {
		return false
	}
	return errors.Is(err, store.ErrConflict) || store.IsTransient(err)
}

// withRetry runs fn until it succeeds, fails permanently, or the service's
// retry budget elapses. Every attempt re-reads state, so fn must be safe to
// repeat.
func withRetry[T any](ctx context.Context, s *Service, op string, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		if attempt > 0 {
			s.metrics.Retry(op)
		}
		attempt++

		v, err := fn()
		if err != nil && !retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(s.retryMaxElapsed),
	)
}
