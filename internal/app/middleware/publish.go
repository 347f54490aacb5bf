package middleware

import (
	"context"
	"log/slog"

	"bookingengine/internal/app/commands"
	"bookingengine/internal/app/outbox"
	"bookingengine/internal/app/pipeline"
)

// Publish collects committed events for the duration of a command and hands
// them to the pipeline once the command returns. Publishing never changes the
// command's outcome.
func Publish(pub pipeline.Publisher, enc pipeline.Encoder, logger *slog.Logger) CommandMiddleware {
	if pub == nil {
		panic("middleware: publisher required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			collected := outbox.NewCollector()
			res, err := nextFn(outbox.ContextWithOutbox(ctx, collected), cmd)
			for _, rec := range collected.Drain() {
				msg, encErr := enc.Encode(rec)
				if encErr != nil {
					logger.Warn("event encode failed", "event", rec.Name, "aggregate_id", rec.Aggregate, "error", encErr)
					continue
				}
				pub.Publish(msg)
			}
			return res, err
		})
	}
}
