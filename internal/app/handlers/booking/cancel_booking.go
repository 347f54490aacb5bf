package booking

import (
	"context"
	"log/slog"

	"bookingengine/internal/app/commands"
	"bookingengine/internal/app/dto"
	"bookingengine/internal/app/outbox"
	domainbooking "bookingengine/internal/domain/booking"
)

const (
	cancelBookingKey   = "booking.cancel"
	completeBookingKey = "booking.complete"
)

type CancelBookingCommand struct {
	BookingID string `validate:"required"`
	Actor     domainbooking.Actor
	Reason    string `validate:"max=500"`
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

func (c CancelBookingCommand) ActingAs() domainbooking.Actor { return c.Actor }

type CancelBookingHandler struct {
	Policy  domainbooking.CancellationPolicy
	Encoder outbox.EventEncoder
	Now     Clock
	Logger  *slog.Logger
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*dto.Booking, error) {
	unit, err := unitFrom(ctx)
	if err != nil {
		return nil, err
	}
	b, _, err := lockBooking(ctx, unit, domainbooking.ID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	changed := !b.HasStatus(domainbooking.StatusCancelled)
	if err := b.Cancel(cmd.Actor, cmd.Reason, h.Policy, h.Now.now()); err != nil {
		return nil, err
	}
	if changed {
		if err := saveAndRecord(ctx, unit.Bookings(), h.Encoder, b); err != nil {
			return nil, err
		}
		if h.Logger != nil {
			h.Logger.Info("booking cancelled", "booking_id", b.ID, "property_id", b.PropertyID, "actor_id", cmd.Actor.ID, "role", cmd.Actor.Role)
		}
	}
	out := dto.MapBooking(b)
	return &out, nil
}

// MarkCompletedCommand is issued by the scheduler once a stay's check-out date has passed.
type MarkCompletedCommand struct {
	BookingID string `validate:"required"`
	Actor     domainbooking.Actor
}

func (c MarkCompletedCommand) Key() string { return completeBookingKey }

func (c MarkCompletedCommand) ActingAs() domainbooking.Actor { return c.Actor }

type MarkCompletedHandler struct {
	Encoder outbox.EventEncoder
	Now     Clock
	Logger  *slog.Logger
}

func (h *MarkCompletedHandler) Handle(ctx context.Context, cmd MarkCompletedCommand) (*dto.Booking, error) {
	unit, err := unitFrom(ctx)
	if err != nil {
		return nil, err
	}
	b, _, err := lockBooking(ctx, unit, domainbooking.ID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	changed := !b.HasStatus(domainbooking.StatusCompleted)
	if err := b.Complete(cmd.Actor, h.Now.now()); err != nil {
		return nil, err
	}
	if changed {
		if err := saveAndRecord(ctx, unit.Bookings(), h.Encoder, b); err != nil {
			return nil, err
		}
		if h.Logger != nil {
			h.Logger.Info("booking completed", "booking_id", b.ID, "property_id", b.PropertyID)
		}
	}
	out := dto.MapBooking(b)
	return &out, nil
}

var _ commands.Handler[CancelBookingCommand, *dto.Booking] = (*CancelBookingHandler)(nil)
var _ commands.Handler[MarkCompletedCommand, *dto.Booking] = (*MarkCompletedHandler)(nil)
