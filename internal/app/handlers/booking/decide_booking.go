package booking

import (
	"context"
	"log/slog"

	"bookingengine/internal/app/commands"
	"bookingengine/internal/app/dto"
	"bookingengine/internal/app/outbox"
	"bookingengine/internal/domain/availability"
	domainbooking "bookingengine/internal/domain/booking"
)

const (
	acceptBookingKey = "booking.accept"
	rejectBookingKey = "booking.reject"
)

type AcceptBookingCommand struct {
	BookingID string `validate:"required"`
	Actor     domainbooking.Actor
}

func (c AcceptBookingCommand) Key() string { return acceptBookingKey }

func (c AcceptBookingCommand) ActingAs() domainbooking.Actor { return c.Actor }

type RejectBookingCommand struct {
	BookingID string `validate:"required"`
	Actor     domainbooking.Actor
	Reason    string `validate:"max=500"`
}

func (c RejectBookingCommand) Key() string { return rejectBookingKey }

func (c RejectBookingCommand) ActingAs() domainbooking.Actor { return c.Actor }

type AcceptBookingHandler struct {
	Encoder outbox.EventEncoder
	Now     Clock
	Logger  *slog.Logger
}

// Handle accepts a pending booking. The dates are checked again against the
// property's accepted bookings, because another request may have been accepted
// since this one was admitted. Accepting an accepted booking is a no-op and skips
// the check.
func (h *AcceptBookingHandler) Handle(ctx context.Context, cmd AcceptBookingCommand) (*dto.Booking, error) {
	unit, err := unitFrom(ctx)
	if err != nil {
		return nil, err
	}
	b, _, err := lockBooking(ctx, unit, domainbooking.ID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	wasPending := b.HasStatus(domainbooking.StatusPending)
	if err := b.Accept(cmd.Actor, h.Now.now()); err != nil {
		return nil, err
	}
	if !wasPending {
		out := dto.MapBooking(b)
		return &out, nil
	}

	checker := availability.Checker{Bookings: unit.Bookings()}
	if err := checker.Require(ctx, b.PropertyID, b.Range, b.ID, availability.ScopeCommitted); err != nil {
		if h.Logger != nil {
			h.Logger.Info("booking accept refused", "booking_id", b.ID, "property_id", b.PropertyID, "error", err)
		}
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, h.Encoder, b.PullEvents()); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("booking accepted", "booking_id", b.ID, "property_id", b.PropertyID, "actor_id", cmd.Actor.ID)
	}
	out := dto.MapBooking(b)
	return &out, nil
}

type RejectBookingHandler struct {
	Encoder outbox.EventEncoder
	Now     Clock
	Logger  *slog.Logger
}

func (h *RejectBookingHandler) Handle(ctx context.Context, cmd RejectBookingCommand) (*dto.Booking, error) {
	unit, err := unitFrom(ctx)
	if err != nil {
		return nil, err
	}
	b, _, err := lockBooking(ctx, unit, domainbooking.ID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	changed := !b.HasStatus(domainbooking.StatusRejected)
	if err := b.Reject(cmd.Actor, cmd.Reason, h.Now.now()); err != nil {
		return nil, err
	}
	if changed {
		if err := saveAndRecord(ctx, unit.Bookings(), h.Encoder, b); err != nil {
			return nil, err
		}
		if h.Logger != nil {
			h.Logger.Info("booking rejected", "booking_id", b.ID, "property_id", b.PropertyID, "actor_id", cmd.Actor.ID, "reason", b.Reason)
		}
	}
	out := dto.MapBooking(b)
	return &out, nil
}

func saveAndRecord(ctx context.Context, repo domainbooking.Repository, enc outbox.EventEncoder, b *domainbooking.Booking) error {
	if err := repo.Save(ctx, b); err != nil {
		return err
	}
	return outbox.RecordDomainEvents(ctx, enc, b.PullEvents())
}

var _ commands.Handler[AcceptBookingCommand, *dto.Booking] = (*AcceptBookingHandler)(nil)
var _ commands.Handler[RejectBookingCommand, *dto.Booking] = (*RejectBookingHandler)(nil)
