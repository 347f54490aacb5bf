package booking

import (
	"time"

	"bookingengine/internal/domain/shared/daterange"
)

const (
	EventRequested = "booking.requested"
	EventAccepted  = "booking.accepted"
	EventRejected  = "booking.rejected"
	EventCancelled = "booking.cancelled"
	EventCompleted = "booking.completed"
)

func eventFor(s Status) string {
	switch s {
	case StatusAccepted:
		return EventAccepted
	case StatusRejected:
		return EventRejected
	case StatusCancelled:
		return EventCancelled
	case StatusCompleted:
		return EventCompleted
	default:
		return EventRequested
	}
}

// Event is the immutable snapshot carried on the booking topics.
type Event struct {
	Name       string    `json:"event"`
	BookingID  string    `json:"booking_id"`
	PropertyID string    `json:"property_id"`
	OwnerID    string    `json:"owner_id"`
	TravelerID string    `json:"traveler_id"`
	CheckIn    string    `json:"check_in"`
	CheckOut   string    `json:"check_out"`
	Guests     int       `json:"guests"`
	TotalPrice int64     `json:"total_price"`
	Status     Status    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	Version    int64     `json:"version"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e Event) EventName() string     { return e.Name }
func (e Event) AggregateID() string   { return e.BookingID }
func (e Event) OccurredAt() time.Time { return e.Timestamp }

// PartitionKey keeps all events of one property in order.
func (e Event) PartitionKey() string { return e.PropertyID }

func (b *Booking) event(name string, at time.Time) Event {
	return Event{
		Name:       name,
		BookingID:  string(b.ID),
		PropertyID: string(b.PropertyID),
		OwnerID:    b.OwnerID,
		TravelerID: b.TravelerID,
		CheckIn:    b.Range.CheckIn.Format(daterange.Layout),
		CheckOut:   b.Range.CheckOut.Format(daterange.Layout),
		Guests:     b.Guests,
		TotalPrice: b.TotalPrice.Int64(),
		Status:     b.Status,
		Reason:     b.Reason,
		Version:    b.Version,
		Timestamp:  at,
	}
}
