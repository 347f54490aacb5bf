package workers

import (
	"context"
	"log/slog"

	"bookingengine/internal/app/pipeline"
	"bookingengine/internal/app/timeline"
	domainbooking "bookingengine/internal/domain/booking"
)

// TimelineWorker records every booking event in the per-booking status history.
type TimelineWorker struct {
	Store  timeline.Writer
	Logger *slog.Logger
}

func (w *TimelineWorker) Handle(ctx context.Context, msg pipeline.Message) error {
	var ev domainbooking.Event
	env, err := pipeline.Decode(msg, &ev)
	if err != nil {
		return err
	}
	at := ev.Timestamp
	if at.IsZero() {
		at = env.Time
	}
	entry := timeline.Entry{
		BookingID:  ev.BookingID,
		EventID:    env.ID,
		Event:      ev.Name,
		Status:     string(ev.Status),
		Reason:     ev.Reason,
		PropertyID: ev.PropertyID,
		At:         at,
	}
	if err := w.Store.Append(ctx, entry); err != nil {
		return err
	}
	if w.Logger != nil {
		w.Logger.Debug("timeline entry appended", "booking_id", ev.BookingID, "event", ev.Name)
	}
	return nil
}

var _ pipeline.Handler = (*TimelineWorker)(nil)
