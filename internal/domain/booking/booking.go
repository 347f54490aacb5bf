package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bookingengine/internal/domain/property"
	"bookingengine/internal/domain/shared/daterange"
	"bookingengine/internal/domain/shared/events"
	"bookingengine/internal/domain/shared/fault"
	"bookingengine/internal/domain/shared/money"
)

var (
	ErrNotFound          = fmt.Errorf("%w: booking not found", fault.ErrNotFound)
	ErrInvalidGuests     = fmt.Errorf("%w: guests count must be positive", fault.ErrInvalidInput)
	ErrCheckInInPast     = fmt.Errorf("%w: check-in date is in the past", fault.ErrInvalidInput)
	ErrTravelerRequired  = fmt.Errorf("%w: traveler id required", fault.ErrInvalidInput)
	ErrInvalidTransition = fmt.Errorf("%w: illegal status transition", fault.ErrInvalidState)
	ErrStayNotFinished   = fmt.Errorf("%w: stay has not ended yet", fault.ErrInvalidState)
)

type ID string

type Booking struct {
	ID              ID
	PropertyID      property.ID
	TravelerID      string
	OwnerID         string
	Range           daterange.DateRange
	Guests          int
	SpecialRequests string
	TotalPrice      money.Money
	Status          Status
	Reason          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
	events.EventRecorder
}

type ListFilter struct {
	Status Status
	Page   int
	Limit  int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalized clamps paging to sane bounds; pages start at 1.
func (f ListFilter) Normalized() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	return f
}

func (f ListFilter) Offset() int { return (f.Page - 1) * f.Limit }

type Page struct {
	Items []*Booking
	Total int
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Booking, error)
	Save(ctx context.Context, b *Booking) error
	// ActiveByProperty returns the pending and accepted bookings of a property.
	ActiveByProperty(ctx context.Context, propertyID property.ID) ([]*Booking, error)
	ListByTraveler(ctx context.Context, travelerID string, filter ListFilter) (Page, error)
	ListByOwner(ctx context.Context, ownerID string, filter ListFilter) (Page, error)
}

type RequestParams struct {
	ID              ID
	Property        *property.Property
	TravelerID      string
	Range           daterange.DateRange
	Guests          int
	SpecialRequests string
	Now             time.Time
}

// Request creates a pending booking after checking every input-only rule.
// Availability against other bookings is the caller's concern.
func Request(params RequestParams) (*Booking, error) {
	if params.Property == nil {
		return nil, property.ErrNotFound
	}
	if strings.TrimSpace(params.TravelerID) == "" {
		return nil, ErrTravelerRequired
	}
	if params.Guests <= 0 {
		return nil, ErrInvalidGuests
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	now := params.Now.UTC()
	if params.Range.CheckIn.Before(daterange.Day(now)) {
		return nil, ErrCheckInInPast
	}
	if err := params.Property.Admit(params.Range, params.Guests); err != nil {
		return nil, err
	}
	b := &Booking{
		ID:              params.ID,
		PropertyID:      params.Property.ID,
		TravelerID:      params.TravelerID,
		OwnerID:         params.Property.OwnerID,
		Range:           params.Range,
		Guests:          params.Guests,
		SpecialRequests: strings.TrimSpace(params.SpecialRequests),
		TotalPrice:      params.Property.Quote(params.Range),
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}
	b.Record(b.event(EventRequested, now))
	return b, nil
}

// Accept moves a pending booking to accepted. Re-accepting is a no-op.
func (b *Booking) Accept(actor Actor, now time.Time) error {
	if err := b.authorize(actionDecide, actor); err != nil {
		return err
	}
	return b.transition(StatusAccepted, "", now)
}

func (b *Booking) Reject(actor Actor, reason string, now time.Time) error {
	if err := b.authorize(actionDecide, actor); err != nil {
		return err
	}
	return b.transition(StatusRejected, reason, now)
}

func (b *Booking) Cancel(actor Actor, reason string, policy CancellationPolicy, now time.Time) error {
	if err := b.authorize(actionCancel, actor); err != nil {
		return err
	}
	if b.Status == StatusCancelled {
		return nil
	}
	if err := policy.Check(b, now); err != nil {
		return err
	}
	return b.transition(StatusCancelled, reason, now)
}

// Complete closes an accepted stay once its check-out date has been reached.
func (b *Booking) Complete(actor Actor, now time.Time) error {
	if err := b.authorize(actionComplete, actor); err != nil {
		return err
	}
	if b.Status == StatusCompleted {
		return nil
	}
	if now.UTC().Before(b.Range.CheckOut) {
		return ErrStayNotFinished
	}
	return b.transition(StatusCompleted, "", now)
}

// HasStatus lets redelivered handlers detect an already-applied transition before doing work.
func (b *Booking) HasStatus(s Status) bool { return b.Status == s }

func (b *Booking) transition(next Status, reason string, now time.Time) error {
	if b.Status == next {
		return nil
	}
	if !b.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, next)
	}
	now = now.UTC()
	b.Status = next
	b.Reason = strings.TrimSpace(reason)
	b.UpdatedAt = now
	b.Version++
	b.Record(b.event(eventFor(next), now))
	return nil
}

// Clone copies the booking without its pending events.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	cp := *b
	cp.EventRecorder = events.EventRecorder{}
	return &cp
}
