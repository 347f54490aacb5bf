package booking

import (
	"context"

	"bookingengine/internal/app/dto"
	"bookingengine/internal/app/queries"
	"bookingengine/internal/app/timeline"
	"bookingengine/internal/app/uow"
	"bookingengine/internal/domain/availability"
	domainbooking "bookingengine/internal/domain/booking"
	domainproperty "bookingengine/internal/domain/property"
	"bookingengine/internal/domain/shared/daterange"
)

const (
	getBookingKey        = "booking.get"
	listTravelerKey      = "booking.list.traveler"
	listOwnerKey         = "booking.list.owner"
	checkAvailabilityKey = "availability.check"
	probeAcceptKey       = "booking.accept.probe"
	getTimelineKey       = "booking.timeline"
)

type GetBookingQuery struct {
	BookingID string `validate:"required"`
	Actor     domainbooking.Actor
}

func (q GetBookingQuery) Key() string                  { return getBookingKey }
func (q GetBookingQuery) ActingAs() domainbooking.Actor { return q.Actor }

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
	unit, ctx, done, err := uow.BeginReadOnly(ctx, h.UoWFactory)
	defer done()
	if err != nil {
		return dto.Booking{}, err
	}
	b, err := unit.Bookings().ByID(ctx, domainbooking.ID(q.BookingID))
	if err != nil {
		return dto.Booking{}, err
	}
	if err := b.VisibleTo(q.Actor); err != nil {
		return dto.Booking{}, err
	}
	return dto.MapBooking(b), nil
}

// ListTravelerBookingsQuery lists the caller's own bookings.
type ListTravelerBookingsQuery struct {
	Actor  domainbooking.Actor
	Status string `validate:"omitempty,oneof=pending accepted rejected cancelled completed"`
	Page   int    `validate:"gte=0"`
	Limit  int    `validate:"gte=0,lte=100"`
}

func (q ListTravelerBookingsQuery) Key() string                  { return listTravelerKey }
func (q ListTravelerBookingsQuery) ActingAs() domainbooking.Actor { return q.Actor }

// ListOwnerBookingsQuery lists bookings across every property the caller owns.
type ListOwnerBookingsQuery struct {
	Actor  domainbooking.Actor
	Status string `validate:"omitempty,oneof=pending accepted rejected cancelled completed"`
	Page   int    `validate:"gte=0"`
	Limit  int    `validate:"gte=0,lte=100"`
}

func (q ListOwnerBookingsQuery) Key() string                  { return listOwnerKey }
func (q ListOwnerBookingsQuery) ActingAs() domainbooking.Actor { return q.Actor }

type ListBookingsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListBookingsHandler) traveler(ctx context.Context, q ListTravelerBookingsQuery) (dto.BookingCollection, error) {
	return h.list(ctx, q.Status, q.Page, q.Limit, func(ctx context.Context, repo domainbooking.Repository, f domainbooking.ListFilter) (domainbooking.Page, error) {
		return repo.ListByTraveler(ctx, q.Actor.ID, f)
	})
}

func (h *ListBookingsHandler) owner(ctx context.Context, q ListOwnerBookingsQuery) (dto.BookingCollection, error) {
	return h.list(ctx, q.Status, q.Page, q.Limit, func(ctx context.Context, repo domainbooking.Repository, f domainbooking.ListFilter) (domainbooking.Page, error) {
		return repo.ListByOwner(ctx, q.Actor.ID, f)
	})
}

func (h *ListBookingsHandler) list(ctx context.Context, status string, page, limit int, fetch func(context.Context, domainbooking.Repository, domainbooking.ListFilter) (domainbooking.Page, error)) (dto.BookingCollection, error) {
	filter := domainbooking.ListFilter{Page: page, Limit: limit}
	if status != "" {
		s, err := domainbooking.ParseStatus(status)
		if err != nil {
			return dto.BookingCollection{}, err
		}
		filter.Status = s
	}
	filter = filter.Normalized()

	unit, ctx, done, err := uow.BeginReadOnly(ctx, h.UoWFactory)
	defer done()
	if err != nil {
		return dto.BookingCollection{}, err
	}
	res, err := fetch(ctx, unit.Bookings(), filter)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	return dto.MapBookingPage(res, filter), nil
}

// PropertyReader serves property lookups for read paths. A cache may sit in front of the store.
type PropertyReader interface {
	Property(ctx context.Context, id domainproperty.ID) (*domainproperty.Property, error)
}

// CheckAvailabilityQuery previews whether a stay could be requested right now.
type CheckAvailabilityQuery struct {
	PropertyID string `validate:"required"`
	CheckIn    string `validate:"required"`
	CheckOut   string `validate:"required"`
	Guests     int    `validate:"gte=0"`
}

func (q CheckAvailabilityQuery) Key() string { return checkAvailabilityKey }

type CheckAvailabilityHandler struct {
	UoWFactory uow.UoWFactory
	Properties PropertyReader
}

func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (dto.Availability, error) {
	dr, err := daterange.Parse(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.Availability{}, err
	}
	unit, ctx, done, err := uow.BeginReadOnly(ctx, h.UoWFactory)
	defer done()
	if err != nil {
		return dto.Availability{}, err
	}

	var p *domainproperty.Property
	if h.Properties != nil {
		p, err = h.Properties.Property(ctx, domainproperty.ID(q.PropertyID))
	} else {
		p, err = unit.Properties().ByID(ctx, domainproperty.ID(q.PropertyID))
	}
	if err != nil {
		return dto.Availability{}, err
	}

	out := dto.Availability{
		PropertyID: string(p.ID),
		CheckIn:    q.CheckIn,
		CheckOut:   q.CheckOut,
		Nights:     dr.Nights(),
		TotalPrice: p.Quote(dr).Int64(),
	}
	guests := q.Guests
	if guests == 0 {
		guests = 1
	}
	if err := p.Admit(dr, guests); err != nil {
		return out, nil
	}
	checker := availability.Checker{Bookings: unit.Bookings()}
	ok, err := checker.IsAvailable(ctx, p.ID, dr, "", availability.ScopeActive)
	if err != nil {
		return dto.Availability{}, err
	}
	out.Available = ok
	return out, nil
}

// ProbeAcceptQuery tells an owner deciding manually whether accepting would succeed.
type ProbeAcceptQuery struct {
	BookingID string `validate:"required"`
	Actor     domainbooking.Actor
}

func (q ProbeAcceptQuery) Key() string                  { return probeAcceptKey }
func (q ProbeAcceptQuery) ActingAs() domainbooking.Actor { return q.Actor }

type ProbeAcceptHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ProbeAcceptHandler) Handle(ctx context.Context, q ProbeAcceptQuery) (dto.AcceptProbe, error) {
	unit, ctx, done, err := uow.BeginReadOnly(ctx, h.UoWFactory)
	defer done()
	if err != nil {
		return dto.AcceptProbe{}, err
	}
	b, err := unit.Bookings().ByID(ctx, domainbooking.ID(q.BookingID))
	if err != nil {
		return dto.AcceptProbe{}, err
	}
	if err := b.VisibleTo(q.Actor); err != nil {
		return dto.AcceptProbe{}, err
	}
	out := dto.AcceptProbe{BookingID: string(b.ID), Status: string(b.Status)}
	switch b.Status {
	case domainbooking.StatusAccepted:
		out.Available = true
	case domainbooking.StatusPending:
		checker := availability.Checker{Bookings: unit.Bookings()}
		out.Available, err = checker.IsAvailable(ctx, b.PropertyID, b.Range, b.ID, availability.ScopeCommitted)
		if err != nil {
			return dto.AcceptProbe{}, err
		}
	}
	return out, nil
}

type GetTimelineQuery struct {
	BookingID string `validate:"required"`
	Actor     domainbooking.Actor
}

func (q GetTimelineQuery) Key() string                  { return getTimelineKey }
func (q GetTimelineQuery) ActingAs() domainbooking.Actor { return q.Actor }

type GetTimelineHandler struct {
	UoWFactory uow.UoWFactory
	Timeline   timeline.Reader
}

func (h *GetTimelineHandler) Handle(ctx context.Context, q GetTimelineQuery) (dto.Timeline, error) {
	unit, ctx, done, err := uow.BeginReadOnly(ctx, h.UoWFactory)
	defer done()
	if err != nil {
		return dto.Timeline{}, err
	}
	b, err := unit.Bookings().ByID(ctx, domainbooking.ID(q.BookingID))
	if err != nil {
		return dto.Timeline{}, err
	}
	if err := b.VisibleTo(q.Actor); err != nil {
		return dto.Timeline{}, err
	}
	out := dto.Timeline{BookingID: string(b.ID), Entries: []dto.TimelineEntry{}}
	if h.Timeline == nil {
		return out, nil
	}
	entries, err := h.Timeline.List(ctx, string(b.ID))
	if err != nil {
		return dto.Timeline{}, err
	}
	for _, e := range entries {
		out.Entries = append(out.Entries, dto.TimelineEntry{EventID: e.EventID, Event: e.Event, Status: e.Status, Reason: e.Reason, At: e.At})
	}
	return out, nil
}

var (
	_ queries.Handler[GetBookingQuery, dto.Booking]             = (*GetBookingHandler)(nil)
	_ queries.Handler[CheckAvailabilityQuery, dto.Availability] = (*CheckAvailabilityHandler)(nil)
	_ queries.Handler[ProbeAcceptQuery, dto.AcceptProbe]        = (*ProbeAcceptHandler)(nil)
	_ queries.Handler[GetTimelineQuery, dto.Timeline]           = (*GetTimelineHandler)(nil)
)
