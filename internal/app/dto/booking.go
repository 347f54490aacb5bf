package dto

import (
	"time"

	domainbooking "bookingengine/internal/domain/booking"
	domainproperty "bookingengine/internal/domain/property"
	"bookingengine/internal/domain/shared/daterange"
)

type Booking struct {
	ID              string    `json:"id"`
	PropertyID      string    `json:"property_id"`
	TravelerID      string    `json:"traveler_id"`
	OwnerID         string    `json:"owner_id"`
	CheckIn         string    `json:"check_in"`
	CheckOut        string    `json:"check_out"`
	Nights          int       `json:"nights"`
	Guests          int       `json:"guests"`
	SpecialRequests string    `json:"special_requests,omitempty"`
	TotalPrice      int64     `json:"total_price"`
	Status          string    `json:"status"`
	Reason          string    `json:"reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type BookingCreated struct {
	BookingID  string `json:"booking_id"`
	Status     string `json:"status"`
	TotalPrice int64  `json:"total_price"`
}

type BookingCollection struct {
	Items []Booking `json:"items"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
	Total int       `json:"total"`
}

type Availability struct {
	PropertyID string `json:"property_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Available  bool   `json:"available"`
	Nights     int    `json:"nights"`
	TotalPrice int64  `json:"total_price"`
}

// AcceptProbe answers whether a pending booking could still be accepted.
type AcceptProbe struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
	Available bool   `json:"available"`
}

type Property struct {
	ID             string  `json:"id"`
	OwnerID        string  `json:"owner_id"`
	NightlyRate    int64   `json:"nightly_rate"`
	MaxGuests      int     `json:"max_guests"`
	AvailableFrom  *string `json:"available_from"`
	AvailableUntil *string `json:"available_until"`
	Active         bool    `json:"active"`
}

type TimelineEntry struct {
	EventID string    `json:"event_id"`
	Event   string    `json:"event"`
	Status  string    `json:"status"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

type Timeline struct {
	BookingID string          `json:"booking_id"`
	Entries   []TimelineEntry `json:"entries"`
}

func MapBooking(b *domainbooking.Booking) Booking {
	return Booking{
		ID:              string(b.ID),
		PropertyID:      string(b.PropertyID),
		TravelerID:      b.TravelerID,
		OwnerID:         b.OwnerID,
		CheckIn:         b.Range.CheckIn.Format(daterange.Layout),
		CheckOut:        b.Range.CheckOut.Format(daterange.Layout),
		Nights:          b.Range.Nights(),
		Guests:          b.Guests,
		SpecialRequests: b.SpecialRequests,
		TotalPrice:      b.TotalPrice.Int64(),
		Status:          string(b.Status),
		Reason:          b.Reason,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func MapBookingPage(page domainbooking.Page, filter domainbooking.ListFilter) BookingCollection {
	items := make([]Booking, 0, len(page.Items))
	for _, b := range page.Items {
		items = append(items, MapBooking(b))
	}
	return BookingCollection{Items: items, Page: filter.Page, Limit: filter.Limit, Total: page.Total}
}

func MapProperty(p *domainproperty.Property) Property {
	out := Property{
		ID:          string(p.ID),
		OwnerID:     p.OwnerID,
		NightlyRate: p.NightlyRate.Int64(),
		MaxGuests:   p.MaxGuests,
		Active:      p.Active,
	}
	if !p.Window.From.IsZero() {
		s := p.Window.From.Format(daterange.Layout)
		out.AvailableFrom = &s
	}
	if !p.Window.Until.IsZero() {
		s := p.Window.Until.Format(daterange.Layout)
		out.AvailableUntil = &s
	}
	return out
}
