package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bookingengine/internal/app/commands"
	"bookingengine/internal/domain/shared/fault"
)

// Retry repeats commands failing with a transient store error, waiting
// backoff[i] before attempt i+2. Once the schedule is exhausted the failure
// surfaces as unavailable. Busy (lock timeout) is never retried.
func Retry(backoff []time.Duration, logger *slog.Logger) CommandMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			attempt := 0
			for {
				res, err := nextFn(ctx, cmd)
				if err == nil || !fault.Retryable(err) {
					return res, err
				}
				if attempt >= len(backoff) {
					return nil, fmt.Errorf("%w: %s gave up after %d attempts: %w", fault.ErrUnavailable, cmd.Key(), attempt+1, err)
				}
				logger.Warn("transient store error, retrying", "command", cmd.Key(), "attempt", attempt+1, "error", err)
				timer := time.NewTimer(backoff[attempt])
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, fmt.Errorf("%w: %w", fault.ErrUnavailable, ctx.Err())
				case <-timer.C:
				}
				attempt++
			}
		})
	}
}
