// Package timeline defines the status history kept for each booking by the
// timeline consumer group.
package timeline

import (
	"context"
	"time"
)

type Entry struct {
	BookingID  string
	EventID    string
	Event      string
	Status     string
	Reason     string
	PropertyID string
	At         time.Time
}

type Writer interface {
	// Append stores e. Appending the same EventID twice keeps one entry.
	Append(ctx context.Context, e Entry) error
}

type Reader interface {
	// List returns a booking's entries oldest first.
	List(ctx context.Context, bookingID string) ([]Entry, error)
}

type Store interface {
	Writer
	Reader
}
