package scylla

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gocql/gocql"

	"bookingengine/internal/app/timeline"
)

var errNoSession = errors.New("scylla session not initialized")

// TimelineStore keeps one partition per booking, clustered by event time.
// Appends are upserts on (booking_id, at, event_id), so redelivery is harmless.
type TimelineStore struct {
	session *gocql.Session
	logger  *slog.Logger
}

func NewTimelineStore(session *gocql.Session, logger *slog.Logger) *TimelineStore {
	return &TimelineStore{session: session, logger: logger}
}

func (s *TimelineStore) Append(ctx context.Context, e timeline.Entry) error {
	if s.session == nil {
		return errNoSession
	}
	return s.session.
		Query(`INSERT INTO booking_timeline (booking_id, at, event_id, event, status, reason, property_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.BookingID, e.At.UTC(), e.EventID, e.Event, e.Status, e.Reason, e.PropertyID).
		WithContext(ctx).
		Exec()
}

func (s *TimelineStore) List(ctx context.Context, bookingID string) ([]timeline.Entry, error) {
	if s.session == nil {
		return nil, errNoSession
	}
	iter := s.session.
		Query(`SELECT at, event_id, event, status, reason, property_id FROM booking_timeline WHERE booking_id = ?`, bookingID).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()

	var (
		out     []timeline.Entry
		at      time.Time
		eventID string
		event   string
		status  string
		reason  string
		prop    string
	)
	for iter.Scan(&at, &eventID, &event, &status, &reason, &prop) {
		out = append(out, timeline.Entry{
			BookingID:  bookingID,
			EventID:    eventID,
			Event:      event,
			Status:     status,
			Reason:     reason,
			PropertyID: prop,
			At:         at.UTC(),
		})
	}
	if err := iter.Close(); err != nil {
		if s.logger != nil {
			s.logger.Warn("timeline read failed", "booking_id", bookingID, "error", err)
		}
		return nil, err
	}
	return out, nil
}

var _ timeline.Store = (*TimelineStore)(nil)
