package booking

import (
	"context"
	"time"

	"bookingengine/internal/app/uow"
	domainbooking "bookingengine/internal/domain/booking"
	domainproperty "bookingengine/internal/domain/property"
)

// Clock returns the current time. Handlers default to time.Now.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

func unitFrom(ctx context.Context) (uow.UnitOfWork, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	return unit, nil
}

// lockBooking takes the lock of the booking's property and returns the booking
// as read under that lock. Status changes on one property are therefore serialized
// with admissions on the same property.
func lockBooking(ctx context.Context, unit uow.UnitOfWork, id domainbooking.ID) (*domainbooking.Booking, *domainproperty.Property, error) {
	b, err := unit.Bookings().ByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	p, err := unit.Properties().LockForUpdate(ctx, b.PropertyID)
	if err != nil {
		return nil, nil, err
	}
	b, err = unit.Bookings().ByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return b, p, nil
}
