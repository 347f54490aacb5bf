package policies

import "context"

// Notification is a user-facing message derived from a booking status change.
type Notification struct {
	ID        string         `json:"id"`
	Recipient string         `json:"recipient"`
	Template  string         `json:"template"`
	BookingID string         `json:"booking_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Notifier delivers notifications. Failures never affect booking state.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}
