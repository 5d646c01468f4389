// Package service contains application services for moderation, recovery
// and account lifecycle.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vouchnet/trustd/internal/errs"
)

// withContentionRetry re-runs fn on serialization/deadlock aborts with
// exponential backoff. Safe for conviction (idempotent) and for recovery
// (every attempt re-validates inside its own transaction).
func withContentionRetry(ctx context.Context, fn func(context.Context) error) error {
	b := retry.WithMaxRetries(3, retry.NewExponential(50*time.Millisecond))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			if errors.Is(err, errs.ErrTxContention) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
}
