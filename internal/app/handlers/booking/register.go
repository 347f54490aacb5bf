package booking

import (
	"log/slog"

	"bookingengine/internal/app/commands"
	"bookingengine/internal/app/dto"
	"bookingengine/internal/app/outbox"
	"bookingengine/internal/app/queries"
	"bookingengine/internal/app/timeline"
	"bookingengine/internal/app/uow"
	domainbooking "bookingengine/internal/domain/booking"
)

type Deps struct {
	UoWFactory uow.UoWFactory
	Properties PropertyReader
	Cache      PropertyInvalidator
	Timeline   timeline.Reader
	Policy     domainbooking.CancellationPolicy
	Encoder    outbox.EventEncoder
	Now        Clock
	Logger     *slog.Logger
}

// Register wires every booking command and query handler onto the buses.
func Register(cmdBus *commands.InMemoryBus, queryBus *queries.InMemoryBus, deps Deps) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "booking-handlers")
	if deps.Policy == (domainbooking.CancellationPolicy{}) {
		deps.Policy = domainbooking.DefaultCancellationPolicy()
	}

	commands.RegisterHandler(cmdBus, &RequestBookingHandler{Encoder: deps.Encoder, Now: deps.Now, Logger: logger})
	commands.RegisterHandler(cmdBus, &AcceptBookingHandler{Encoder: deps.Encoder, Now: deps.Now, Logger: logger})
	commands.RegisterHandler(cmdBus, &RejectBookingHandler{Encoder: deps.Encoder, Now: deps.Now, Logger: logger})
	commands.RegisterHandler(cmdBus, &CancelBookingHandler{Policy: deps.Policy, Encoder: deps.Encoder, Now: deps.Now, Logger: logger})
	commands.RegisterHandler(cmdBus, &MarkCompletedHandler{Encoder: deps.Encoder, Now: deps.Now, Logger: logger})
	commands.RegisterHandler(cmdBus, &UpdateAvailabilityWindowHandler{Cache: deps.Cache, Now: deps.Now, Logger: logger})

	lists := &ListBookingsHandler{UoWFactory: deps.UoWFactory}
	queries.RegisterHandler(queryBus, &GetBookingHandler{UoWFactory: deps.UoWFactory})
	queries.RegisterHandler(queryBus, queries.HandlerFunc[ListTravelerBookingsQuery, dto.BookingCollection](lists.traveler))
	queries.RegisterHandler(queryBus, queries.HandlerFunc[ListOwnerBookingsQuery, dto.BookingCollection](lists.owner))
	queries.RegisterHandler(queryBus, &CheckAvailabilityHandler{UoWFactory: deps.UoWFactory, Properties: deps.Properties})
	queries.RegisterHandler(queryBus, &ProbeAcceptHandler{UoWFactory: deps.UoWFactory})
	queries.RegisterHandler(queryBus, &GetTimelineHandler{UoWFactory: deps.UoWFactory, Timeline: deps.Timeline})
}
