package pipeline

import (
	"context"
	"log/slog"
)

// Inbox remembers which messages a consumer group has already handled.
type Inbox interface {
	Processed(ctx context.Context, group, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, group, messageID string) error
}

// WithInbox skips redelivered messages and records a message only after h succeeds.
func WithInbox(h Handler, group string, inbox Inbox, logger *slog.Logger) Handler {
	if inbox == nil {
		return h
	}
	if logger == nil {
		logger = slog.Default()
	}
	return HandlerFunc(func(ctx context.Context, msg Message) error {
		if msg.ID == "" {
			return h.Handle(ctx, msg)
		}
		seen, err := inbox.Processed(ctx, group, msg.ID)
		if err != nil {
			return err
		}
		if seen {
			logger.Debug("duplicate message skipped", "topic", msg.Topic, "group", group, "event_id", msg.ID)
			return nil
		}
		if err := h.Handle(ctx, msg); err != nil {
			return err
		}
		return inbox.MarkProcessed(ctx, group, msg.ID)
	})
}
