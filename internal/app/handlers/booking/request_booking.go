package booking

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"bookingengine/internal/app/commands"
	"bookingengine/internal/app/dto"
	"bookingengine/internal/app/middleware"
	"bookingengine/internal/app/outbox"
	"bookingengine/internal/domain/availability"
	domainbooking "bookingengine/internal/domain/booking"
	domainproperty "bookingengine/internal/domain/property"
	"bookingengine/internal/domain/shared/daterange"
)

const requestBookingKey = "booking.request"

type RequestBookingCommand struct {
	BookingID       string
	PropertyID      string `validate:"required"`
	Actor           domainbooking.Actor
	CheckIn         string `validate:"required"`
	CheckOut        string `validate:"required"`
	Guests          int
	SpecialRequests string `validate:"max=2000"`
	IdempotencyKeyV string
}

func (c RequestBookingCommand) Key() string { return requestBookingKey }

func (c RequestBookingCommand) ActingAs() domainbooking.Actor { return c.Actor }

func (c RequestBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c RequestBookingCommand) ResultPrototype() any { return &dto.BookingCreated{} }

type RequestBookingHandler struct {
	Encoder outbox.EventEncoder
	Now     Clock
	Logger  *slog.Logger
}

func (h *RequestBookingHandler) Handle(ctx context.Context, cmd RequestBookingCommand) (*dto.BookingCreated, error) {
	dr, err := daterange.Parse(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, err
	}
	now := h.Now.now()
	if dr.CheckIn.Before(daterange.Day(now)) {
		return nil, domainbooking.ErrCheckInInPast
	}
	if cmd.Guests <= 0 {
		return nil, domainbooking.ErrInvalidGuests
	}
	unit, err := unitFrom(ctx)
	if err != nil {
		return nil, err
	}

	prop, err := unit.Properties().LockForUpdate(ctx, domainproperty.ID(cmd.PropertyID))
	if err != nil {
		return nil, err
	}
	id := cmd.BookingID
	if id == "" {
		id = uuid.NewString()
	}
	b, err := domainbooking.Request(domainbooking.RequestParams{
		ID:              domainbooking.ID(id),
		Property:        prop,
		TravelerID:      cmd.Actor.ID,
		Range:           dr,
		Guests:          cmd.Guests,
		SpecialRequests: cmd.SpecialRequests,
		Now:             now,
	})
	if err != nil {
		return nil, err
	}

	checker := availability.Checker{Bookings: unit.Bookings()}
	if err := checker.Require(ctx, prop.ID, dr, "", availability.ScopeActive); err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, h.Encoder, b.PullEvents()); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking requested", "booking_id", b.ID, "property_id", b.PropertyID, "traveler_id", b.TravelerID, "range", dr.String())
	}
	return &dto.BookingCreated{BookingID: string(b.ID), Status: string(b.Status), TotalPrice: b.TotalPrice.Int64()}, nil
}

var _ commands.Handler[RequestBookingCommand, *dto.BookingCreated] = (*RequestBookingHandler)(nil)
var _ middleware.IdempotentCommand = RequestBookingCommand{}
