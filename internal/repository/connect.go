package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/fuaSmart/medical-project/internal/metrics"
)

// DialFunc opens a single connection-like resource.
type DialFunc[T any] func(ctx context.Context) (T, error)

// Acquire calls dial until it succeeds, retrying transient failures with a fixed
// delay for at most maxAttempts attempts in total. A failure that is not transient
// is returned immediately. When the attempts run out the returned error wraps
// ErrConnectionExhausted and the last transient failure.
func Acquire[T any](ctx context.Context, dial DialFunc[T], maxAttempts int, delay time.Duration, logger *zap.Logger) (T, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		conn, err := dial(ctx)
		if err != nil && !IsTransient(err) {
			return conn, backoff.Permanent(err)
		}
		return conn, err
	}

	notify := func(err error, wait time.Duration) {
		metrics.ConnectionRetries.Inc()
		logger.Warn("Database not ready yet, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("delay", wait),
			zap.Error(err))
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(maxAttempts-1)),
		ctx,
	)

	conn, err := backoff.RetryNotifyWithData(operation, policy, notify)
	if err == nil {
		return conn, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return conn, fmt.Errorf("connect aborted after %d attempts: %w", attempt, ctxErr)
	}
	if IsTransient(err) {
		logger.Error("Failed to connect to database",
			zap.Int("attempts", attempt),
			zap.Error(err))
		return conn, fmt.Errorf("%w after %d attempts: %w", ErrConnectionExhausted, attempt, err)
	}
	return conn, err
}
