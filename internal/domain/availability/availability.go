// Package availability decides whether a stay can be admitted on a property
// given the bookings that already hold dates there.
package availability

import (
	"context"
	"fmt"

	"bookingengine/internal/domain/booking"
	"bookingengine/internal/domain/property"
	"bookingengine/internal/domain/shared/daterange"
	"bookingengine/internal/domain/shared/fault"
)

var ErrDatesUnavailable = fmt.Errorf("%w: dates not available", fault.ErrConflict)

// Scope selects which bookings block a candidate range.
type Scope int

const (
	// ScopeActive blocks on pending and accepted bookings. Used when admitting requests.
	ScopeActive Scope = iota
	// ScopeCommitted blocks on accepted bookings only. Used as the accept-time gate,
	// where other pending requests are competitors rather than commitments.
	ScopeCommitted
)

func (s Scope) blocks(st booking.Status) bool {
	if s == ScopeCommitted {
		return st == booking.StatusAccepted
	}
	return st.IsActive()
}

// Conflicts returns the bookings in scope whose dates overlap candidate, skipping exclude.
func Conflicts(existing []*booking.Booking, candidate daterange.DateRange, exclude booking.ID, scope Scope) []*booking.Booking {
	var out []*booking.Booking
	for _, b := range existing {
		if b == nil || (exclude != "" && b.ID == exclude) {
			continue
		}
		if !scope.blocks(b.Status) {
			continue
		}
		if b.Range.Overlaps(candidate) {
			out = append(out, b)
		}
	}
	return out
}

// IsAvailable is the pure admission decision.
func IsAvailable(existing []*booking.Booking, candidate daterange.DateRange, exclude booking.ID, scope Scope) bool {
	return len(Conflicts(existing, candidate, exclude, scope)) == 0
}

// Source lists the bookings currently holding dates on a property.
type Source interface {
	ActiveByProperty(ctx context.Context, propertyID property.ID) ([]*booking.Booking, error)
}

// Checker evaluates availability against a store. Callers that go on to write
// must hold the property lock for the read-decide-write sequence to be atomic.
type Checker struct {
	Bookings Source
}

func (c Checker) IsAvailable(ctx context.Context, propertyID property.ID, candidate daterange.DateRange, exclude booking.ID, scope Scope) (bool, error) {
	conflicts, err := c.Conflicts(ctx, propertyID, candidate, exclude, scope)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

func (c Checker) Conflicts(ctx context.Context, propertyID property.ID, candidate daterange.DateRange, exclude booking.ID, scope Scope) ([]*booking.Booking, error) {
	if err := candidate.Validate(); err != nil {
		return nil, err
	}
	existing, err := c.Bookings.ActiveByProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return Conflicts(existing, candidate, exclude, scope), nil
}

// Require fails with ErrDatesUnavailable when candidate is blocked.
func (c Checker) Require(ctx context.Context, propertyID property.ID, candidate daterange.DateRange, exclude booking.ID, scope Scope) error {
	conflicts, err := c.Conflicts(ctx, propertyID, candidate, exclude, scope)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return fmt.Errorf("%w: %s overlaps booking %s", ErrDatesUnavailable, candidate, conflicts[0].ID)
	}
	return nil
}
