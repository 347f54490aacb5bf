package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	bookingapp "bookingengine/internal/app/handlers/booking"
	domainbooking "bookingengine/internal/domain/booking"
)

type PropertyHTTP interface {
	Availability(c *gin.Context)
	UpdateWindow(c *gin.Context)
}

type PropertyHandler struct {
	Service Reservations
	Logger  *slog.Logger
}

type updateWindowRequest struct {
	AvailableFrom  string `json:"available_from"`
	AvailableUntil string `json:"available_until"`
}

// Availability is a read-only preview; it does not reserve anything.
func (h PropertyHandler) Availability(c *gin.Context) {
	guests, err := queryInt(c, "guests")
	if err != nil {
		badRequest(c, err)
		return
	}
	result, err := h.Service.CheckAvailability(c.Request.Context(), bookingapp.CheckAvailabilityQuery{
		PropertyID: c.Param("id"),
		CheckIn:    c.Query("check_in"),
		CheckOut:   c.Query("check_out"),
		Guests:     guests,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h PropertyHandler) UpdateWindow(c *gin.Context) {
	actor, ok := requireActor(c, domainbooking.RoleOwner, domainbooking.RoleAdmin)
	if !ok {
		return
	}
	var req updateWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := h.Service.UpdateAvailabilityWindow(c.Request.Context(), bookingapp.UpdateAvailabilityWindowCommand{
		PropertyID: c.Param("id"),
		Actor:      actor,
		From:       req.AvailableFrom,
		Until:      req.AvailableUntil,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ PropertyHTTP = PropertyHandler{}
