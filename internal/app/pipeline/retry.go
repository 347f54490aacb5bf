package pipeline

import (
	"context"
	"log/slog"
	"time"

	"bookingengine/internal/domain/shared/fault"
)

// DeadLetterRecord is a message parked after it kept failing.
type DeadLetterRecord struct {
	Message  Message
	Group    string
	Attempts int
	Error    string
	ParkedAt time.Time
}

// DeadLetter parks messages that exhausted their retries. Alerting on parked
// messages is left to the operator tooling reading the store.
type DeadLetter interface {
	Park(ctx context.Context, rec DeadLetterRecord) error
}

type RetryPolicy struct {
	Backoff     []time.Duration
	MaxAttempts int
	// Retryable decides whether a failure is worth another attempt.
	// Defaults to everything except permanent input errors.
	Retryable func(error) bool
}

func (p RetryPolicy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return len(p.Backoff) + 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if attempt < len(p.Backoff) {
		return p.Backoff[attempt]
	}
	if len(p.Backoff) > 0 {
		return p.Backoff[len(p.Backoff)-1]
	}
	return time.Second
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return !fault.Permanent(err)
}

// WithRetry retries h with backoff and parks the message once attempts run out.
// It returns nil after a successful park so the broker can move on; a park
// failure is returned so the message stays unacknowledged.
func WithRetry(h Handler, group string, policy RetryPolicy, dl DeadLetter, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return HandlerFunc(func(ctx context.Context, msg Message) error {
		limit := policy.maxAttempts()
		var err error
		attempt := 0
		for attempt < limit {
			if attempt > 0 {
				if sleepErr := sleep(ctx, policy.delay(attempt-1)); sleepErr != nil {
					return sleepErr
				}
			}
			attempt++
			err = h.Handle(ctx, msg)
			if err == nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("message handling failed", "topic", msg.Topic, "group", group, "event_id", msg.ID, "attempt", attempt, "error", err)
			if !policy.retryable(err) {
				break
			}
		}
		if dl == nil {
			return err
		}
		rec := DeadLetterRecord{Message: msg, Group: group, Attempts: attempt, Error: err.Error(), ParkedAt: time.Now().UTC()}
		if parkErr := dl.Park(ctx, rec); parkErr != nil {
			logger.Error("dead letter park failed", "topic", msg.Topic, "group", group, "event_id", msg.ID, "error", parkErr)
			return parkErr
		}
		logger.Error("message parked in dead letter", "topic", msg.Topic, "group", group, "event_id", msg.ID, "attempts", attempt, "error", err)
		return nil
	})
}
