// Package reservation is the booking façade: it assembles the command and
// query buses with their middleware and exposes one typed method per operation.
package reservation

import (
	"context"
	"log/slog"
	"time"

	"bookingengine/internal/app/commands"
	"bookingengine/internal/app/dto"
	handlers "bookingengine/internal/app/handlers/booking"
	"bookingengine/internal/app/middleware"
	"bookingengine/internal/app/pipeline"
	"bookingengine/internal/app/queries"
	"bookingengine/internal/app/timeline"
	"bookingengine/internal/app/uow"
	domainbooking "bookingengine/internal/domain/booking"
)

type Options struct {
	UoWFactory uow.UoWFactory
	// Publisher receives committed events. Nil disables publishing.
	Publisher pipeline.Publisher
	Topics    pipeline.Topics
	Source    string

	Idempotency  middleware.IdempotencyStore
	RetryBackoff []time.Duration
	LockTimeout  time.Duration

	Properties handlers.PropertyReader
	Cache      handlers.PropertyInvalidator
	Timeline   timeline.Reader
	Policy     domainbooking.CancellationPolicy
	Now        func() time.Time
	Logger     *slog.Logger
}

type Service struct {
	commands commands.Bus
	queries  queries.Bus
	keys     []string
}

// New registers the booking handlers and wraps the buses, outermost first:
// validation, authorization, publish, idempotency, retry, transaction.
func New(opts Options) *Service {
	if opts.UoWFactory == nil {
		panic("reservation: uow factory required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cmdBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	handlers.Register(cmdBus, queryBus, handlers.Deps{
		UoWFactory: opts.UoWFactory,
		Properties: opts.Properties,
		Cache:      opts.Cache,
		Timeline:   opts.Timeline,
		Policy:     opts.Policy,
		Now:        opts.Now,
		Logger:     logger,
	})

	validator := middleware.NewStructValidator()
	authorizer := middleware.RequireActor{}

	var publish middleware.CommandMiddleware
	if opts.Publisher != nil {
		publish = middleware.Publish(opts.Publisher, pipeline.Encoder{Topics: opts.Topics, Source: opts.Source}, logger)
	}
	var idempotency middleware.CommandMiddleware
	if opts.Idempotency != nil {
		idempotency = middleware.Idempotency(opts.Idempotency, nil)
	}
	lockTimeout := opts.LockTimeout
	txOptions := func(commands.Command) uow.TxOptions {
		return uow.TxOptions{LockTimeout: lockTimeout}
	}

	return &Service{
		commands: middleware.ChainCommands(cmdBus,
			middleware.Validation(validator),
			middleware.Authorization(authorizer),
			publish,
			idempotency,
			middleware.Retry(opts.RetryBackoff, logger),
			middleware.Transaction(opts.UoWFactory, txOptions),
		),
		queries: middleware.ChainQueries(queryBus,
			middleware.QueryValidation(validator),
			middleware.QueryAuthorization(authorizer),
		),
		keys: cmdBus.Keys(),
	}
}

// Commands lists the registered command keys.
func (s *Service) Commands() []string { return s.keys }

func (s *Service) RequestBooking(ctx context.Context, cmd handlers.RequestBookingCommand) (*dto.BookingCreated, error) {
	return commands.Dispatch[handlers.RequestBookingCommand, *dto.BookingCreated](ctx, s.commands, cmd)
}

func (s *Service) AcceptBooking(ctx context.Context, bookingID string, actor domainbooking.Actor) (*dto.Booking, error) {
	return commands.Dispatch[handlers.AcceptBookingCommand, *dto.Booking](ctx, s.commands, handlers.AcceptBookingCommand{BookingID: bookingID, Actor: actor})
}

func (s *Service) RejectBooking(ctx context.Context, bookingID string, actor domainbooking.Actor, reason string) (*dto.Booking, error) {
	return commands.Dispatch[handlers.RejectBookingCommand, *dto.Booking](ctx, s.commands, handlers.RejectBookingCommand{BookingID: bookingID, Actor: actor, Reason: reason})
}

func (s *Service) CancelBooking(ctx context.Context, bookingID string, actor domainbooking.Actor, reason string) (*dto.Booking, error) {
	return commands.Dispatch[handlers.CancelBookingCommand, *dto.Booking](ctx, s.commands, handlers.CancelBookingCommand{BookingID: bookingID, Actor: actor, Reason: reason})
}

// MarkCompleted is called by the scheduler once check-out has passed.
func (s *Service) MarkCompleted(ctx context.Context, bookingID string) (*dto.Booking, error) {
	return commands.Dispatch[handlers.MarkCompletedCommand, *dto.Booking](ctx, s.commands, handlers.MarkCompletedCommand{BookingID: bookingID, Actor: domainbooking.SystemActor()})
}

func (s *Service) UpdateAvailabilityWindow(ctx context.Context, cmd handlers.UpdateAvailabilityWindowCommand) (*dto.Property, error) {
	return commands.Dispatch[handlers.UpdateAvailabilityWindowCommand, *dto.Property](ctx, s.commands, cmd)
}

func (s *Service) GetBooking(ctx context.Context, bookingID string, actor domainbooking.Actor) (dto.Booking, error) {
	return queries.Ask[handlers.GetBookingQuery, dto.Booking](ctx, s.queries, handlers.GetBookingQuery{BookingID: bookingID, Actor: actor})
}

func (s *Service) ListTravelerBookings(ctx context.Context, q handlers.ListTravelerBookingsQuery) (dto.BookingCollection, error) {
	return queries.Ask[handlers.ListTravelerBookingsQuery, dto.BookingCollection](ctx, s.queries, q)
}

func (s *Service) ListOwnerBookings(ctx context.Context, q handlers.ListOwnerBookingsQuery) (dto.BookingCollection, error) {
	return queries.Ask[handlers.ListOwnerBookingsQuery, dto.BookingCollection](ctx, s.queries, q)
}

func (s *Service) CheckAvailability(ctx context.Context, q handlers.CheckAvailabilityQuery) (dto.Availability, error) {
	return queries.Ask[handlers.CheckAvailabilityQuery, dto.Availability](ctx, s.queries, q)
}

// ProbeAccept reports whether accepting a booking would pass the accept-time check right now.
func (s *Service) ProbeAccept(ctx context.Context, bookingID string, actor domainbooking.Actor) (dto.AcceptProbe, error) {
	return queries.Ask[handlers.ProbeAcceptQuery, dto.AcceptProbe](ctx, s.queries, handlers.ProbeAcceptQuery{BookingID: bookingID, Actor: actor})
}

func (s *Service) GetTimeline(ctx context.Context, bookingID string, actor domainbooking.Actor) (dto.Timeline, error) {
	return queries.Ask[handlers.GetTimelineQuery, dto.Timeline](ctx, s.queries, handlers.GetTimelineQuery{BookingID: bookingID, Actor: actor})
}
