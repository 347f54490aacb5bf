package property

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bookingengine/internal/domain/shared/daterange"
	"bookingengine/internal/domain/shared/fault"
	"bookingengine/internal/domain/shared/money"
)

var (
	ErrNotFound        = fmt.Errorf("%w: property not found", fault.ErrNotFound)
	ErrInactive        = fmt.Errorf("%w: property is not accepting bookings", fault.ErrInvalidInput)
	ErrTooManyGuests   = fmt.Errorf("%w: guests exceed property max occupancy", fault.ErrInvalidInput)
	ErrOutsideWindow   = fmt.Errorf("%w: dates fall outside the property availability window", fault.ErrInvalidInput)
	ErrInvalidWindow   = fmt.Errorf("%w: availability window end must be after start", fault.ErrInvalidInput)
	ErrWindowExcludes  = fmt.Errorf("%w: availability window excludes existing bookings", fault.ErrConflict)
	ErrNotOwner        = fmt.Errorf("%w: actor does not own the property", fault.ErrForbidden)
	ErrInvalidProperty = fmt.Errorf("%w: invalid property", fault.ErrInvalidInput)
)

type ID string

// Window bounds the dates a property can be booked for. A zero bound is open.
// Like a stay, the window is half-open: From is bookable, Until is the last check-out date.
type Window struct {
	From  time.Time
	Until time.Time
}

func NewWindow(from, until time.Time) (Window, error) {
	w := Window{From: daterange.Day(from), Until: daterange.Day(until)}
	if !w.From.IsZero() && !w.Until.IsZero() && !w.Until.After(w.From) {
		return Window{}, ErrInvalidWindow
	}
	return w, nil
}

func (w Window) IsOpen() bool { return w.From.IsZero() && w.Until.IsZero() }

// Allows reports whether the whole stay lies inside the window.
func (w Window) Allows(dr daterange.DateRange) bool {
	if !w.From.IsZero() && dr.CheckIn.Before(w.From) {
		return false
	}
	if !w.Until.IsZero() && dr.CheckOut.After(w.Until) {
		return false
	}
	return true
}

type Property struct {
	ID          ID
	OwnerID     string
	NightlyRate money.Money
	MaxGuests   int
	Window      Window
	Active      bool
	UpdatedAt   time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Property, error)
	// LockForUpdate loads the property and holds its row lock until the unit of work ends.
	// Every booking mutation on the property is serialized behind this lock.
	LockForUpdate(ctx context.Context, id ID) (*Property, error)
	Save(ctx context.Context, p *Property) error
}

type Params struct {
	ID          ID
	OwnerID     string
	NightlyRate int64
	MaxGuests   int
	Window      Window
	Active      bool
	Now         time.Time
}

func New(params Params) (*Property, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, fmt.Errorf("%w: id required", ErrInvalidProperty)
	}
	if strings.TrimSpace(params.OwnerID) == "" {
		return nil, fmt.Errorf("%w: owner required", ErrInvalidProperty)
	}
	if params.MaxGuests <= 0 {
		return nil, fmt.Errorf("%w: max guests must be positive", ErrInvalidProperty)
	}
	rate, err := money.New(params.NightlyRate)
	if err != nil {
		return nil, err
	}
	window, err := NewWindow(params.Window.From, params.Window.Until)
	if err != nil {
		return nil, err
	}
	return &Property{
		ID:          params.ID,
		OwnerID:     params.OwnerID,
		NightlyRate: rate,
		MaxGuests:   params.MaxGuests,
		Window:      window,
		Active:      params.Active,
		UpdatedAt:   params.Now.UTC(),
	}, nil
}

func (p *Property) OwnedBy(actorID string) bool {
	return actorID != "" && p.OwnerID == actorID
}

// Admit validates a stay request against the property's own limits.
func (p *Property) Admit(dr daterange.DateRange, guests int) error {
	if !p.Active {
		return ErrInactive
	}
	if guests > p.MaxGuests {
		return fmt.Errorf("%w (%d > %d)", ErrTooManyGuests, guests, p.MaxGuests)
	}
	if !p.Window.Allows(dr) {
		return ErrOutsideWindow
	}
	return nil
}

// Quote prices a stay at the current nightly rate.
func (p *Property) Quote(dr daterange.DateRange) money.Money {
	return p.NightlyRate.Multiply(int64(dr.Nights()))
}

// UpdateWindow replaces the availability window. The edit is refused when any
// of the given commitments (pending or accepted stays) would fall outside it.
func (p *Property) UpdateWindow(w Window, commitments []daterange.DateRange, now time.Time) error {
	window, err := NewWindow(w.From, w.Until)
	if err != nil {
		return err
	}
	for _, c := range commitments {
		if !window.Allows(c) {
			return fmt.Errorf("%w: %s", ErrWindowExcludes, c)
		}
	}
	p.Window = window
	p.UpdatedAt = now.UTC()
	return nil
}

// Clone returns a copy safe to hand out of a store.
func (p *Property) Clone() *Property {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
