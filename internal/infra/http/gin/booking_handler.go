package ginserver

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"bookingengine/internal/app/dto"
	bookingapp "bookingengine/internal/app/handlers/booking"
	domainbooking "bookingengine/internal/domain/booking"
)

// Reservations is the façade the HTTP layer drives.
type Reservations interface {
	RequestBooking(ctx context.Context, cmd bookingapp.RequestBookingCommand) (*dto.BookingCreated, error)
	AcceptBooking(ctx context.Context, bookingID string, actor domainbooking.Actor) (*dto.Booking, error)
	RejectBooking(ctx context.Context, bookingID string, actor domainbooking.Actor, reason string) (*dto.Booking, error)
	CancelBooking(ctx context.Context, bookingID string, actor domainbooking.Actor, reason string) (*dto.Booking, error)
	MarkCompleted(ctx context.Context, bookingID string) (*dto.Booking, error)
	UpdateAvailabilityWindow(ctx context.Context, cmd bookingapp.UpdateAvailabilityWindowCommand) (*dto.Property, error)
	GetBooking(ctx context.Context, bookingID string, actor domainbooking.Actor) (dto.Booking, error)
	ListTravelerBookings(ctx context.Context, q bookingapp.ListTravelerBookingsQuery) (dto.BookingCollection, error)
	ListOwnerBookings(ctx context.Context, q bookingapp.ListOwnerBookingsQuery) (dto.BookingCollection, error)
	CheckAvailability(ctx context.Context, q bookingapp.CheckAvailabilityQuery) (dto.Availability, error)
	GetTimeline(ctx context.Context, bookingID string, actor domainbooking.Actor) (dto.Timeline, error)
}

type BookingHTTP interface {
	Create(c *gin.Context)
	Accept(c *gin.Context)
	Reject(c *gin.Context)
	Cancel(c *gin.Context)
	Get(c *gin.Context)
	Timeline(c *gin.Context)
	ListMine(c *gin.Context)
	ListHosted(c *gin.Context)
	Complete(c *gin.Context)
}

type BookingHandler struct {
	Service Reservations
	Logger  *slog.Logger
}

type createBookingRequest struct {
	PropertyID      string `json:"property_id" binding:"required"`
	CheckIn         string `json:"check_in" binding:"required"`
	CheckOut        string `json:"check_out" binding:"required"`
	Guests          int    `json:"guests"`
	SpecialRequests string `json:"special_requests"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h BookingHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c, domainbooking.RoleTraveler)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := h.Service.RequestBooking(c.Request.Context(), bookingapp.RequestBookingCommand{
		PropertyID:      req.PropertyID,
		Actor:           actor,
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		Guests:          req.Guests,
		SpecialRequests: req.SpecialRequests,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Accept(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	result, err := h.Service.AcceptBooking(c.Request.Context(), c.Param("id"), actor)
	h.respond(c, result, err)
}

func (h BookingHandler) Reject(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	req, ok := bindReason(c)
	if !ok {
		return
	}
	result, err := h.Service.RejectBooking(c.Request.Context(), c.Param("id"), actor, req.Reason)
	h.respond(c, result, err)
}

func (h BookingHandler) Cancel(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	req, ok := bindReason(c)
	if !ok {
		return
	}
	result, err := h.Service.CancelBooking(c.Request.Context(), c.Param("id"), actor, req.Reason)
	h.respond(c, result, err)
}

// Complete is called by the scheduler, never by end users.
func (h BookingHandler) Complete(c *gin.Context) {
	if _, ok := requireActor(c, domainbooking.RoleSystem); !ok {
		return
	}
	result, err := h.Service.MarkCompleted(c.Request.Context(), c.Param("id"))
	h.respond(c, result, err)
}

func (h BookingHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	result, err := h.Service.GetBooking(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Timeline(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	result, err := h.Service.GetTimeline(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListMine(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	page, limit, ok := pagination(c)
	if !ok {
		return
	}
	result, err := h.Service.ListTravelerBookings(c.Request.Context(), bookingapp.ListTravelerBookingsQuery{
		Actor:  actor,
		Status: c.Query("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListHosted(c *gin.Context) {
	actor, ok := requireActor(c, domainbooking.RoleOwner)
	if !ok {
		return
	}
	page, limit, ok := pagination(c)
	if !ok {
		return
	}
	result, err := h.Service.ListOwnerBookings(c.Request.Context(), bookingapp.ListOwnerBookingsQuery{
		Actor:  actor,
		Status: c.Query("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) respond(c *gin.Context, result *dto.Booking, err error) {
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func bindReason(c *gin.Context) (reasonRequest, bool) {
	var req reasonRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return req, false
	}
	return req, true
}

func pagination(c *gin.Context) (int, int, bool) {
	page, err := queryInt(c, "page")
	if err != nil {
		badRequest(c, err)
		return 0, 0, false
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		badRequest(c, err)
		return 0, 0, false
	}
	return page, limit, true
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

var _ BookingHTTP = BookingHandler{}
