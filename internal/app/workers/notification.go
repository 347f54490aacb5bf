package workers

import (
	"context"
	"encoding/json"
	"log/slog"

	"bookingengine/internal/app/pipeline"
	"bookingengine/internal/app/policies"
	domainbooking "bookingengine/internal/domain/booking"
)

// NotificationWorker turns status changes into notifications for the traveler,
// and for the owner when a booking is cancelled. Notifier failures are retried
// by the pipeline and never reach the booking itself.
type NotificationWorker struct {
	Notifier policies.Notifier
	Logger   *slog.Logger
}

func (w *NotificationWorker) Handle(ctx context.Context, msg pipeline.Message) error {
	var ev domainbooking.Event
	env, err := pipeline.Decode(msg, &ev)
	if err != nil {
		return err
	}
	if ev.Name == domainbooking.EventRequested {
		return nil
	}
	for _, n := range notificationsFor(env.ID, ev) {
		if err := w.Notifier.Send(ctx, n); err != nil {
			return err
		}
	}
	if w.Logger != nil {
		w.Logger.Debug("booking notifications sent", "booking_id", ev.BookingID, "status", ev.Status)
	}
	return nil
}

func notificationsFor(eventID string, ev domainbooking.Event) []policies.Notification {
	data := map[string]any{
		"property_id": ev.PropertyID,
		"check_in":    ev.CheckIn,
		"check_out":   ev.CheckOut,
		"status":      string(ev.Status),
	}
	if ev.Reason != "" {
		data["reason"] = ev.Reason
	}
	template := "booking." + string(ev.Status)
	out := []policies.Notification{{
		ID:        eventID + ":" + ev.TravelerID,
		Recipient: ev.TravelerID,
		Template:  template,
		BookingID: ev.BookingID,
		Data:      data,
	}}
	if ev.Name == domainbooking.EventCancelled && ev.OwnerID != "" {
		out = append(out, policies.Notification{
			ID:        eventID + ":" + ev.OwnerID,
			Recipient: ev.OwnerID,
			Template:  template,
			BookingID: ev.BookingID,
			Data:      data,
		})
	}
	return out
}

// PipelineNotifier hands notifications to the notification service through the
// bookings.notifications topic, keyed by recipient.
type PipelineNotifier struct {
	Producer pipeline.Producer
	Topic    string
}

func (n PipelineNotifier) Send(ctx context.Context, note policies.Notification) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return err
	}
	headers := map[string]string{
		pipeline.HeaderEventID:     note.ID,
		pipeline.HeaderEventType:   note.Template,
		pipeline.HeaderContentType: "application/json",
	}
	return n.Producer.Publish(ctx, n.Topic, note.Recipient, payload, headers)
}

var _ policies.Notifier = PipelineNotifier{}
var _ pipeline.Handler = (*NotificationWorker)(nil)
