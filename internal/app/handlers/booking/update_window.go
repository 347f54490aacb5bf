package booking

import (
	"context"
	"log/slog"
	"time"

	"bookingengine/internal/app/commands"
	"bookingengine/internal/app/dto"
	"bookingengine/internal/app/uow"
	domainbooking "bookingengine/internal/domain/booking"
	domainproperty "bookingengine/internal/domain/property"
	"bookingengine/internal/domain/shared/daterange"
)

const updateWindowKey = "property.window.update"

// UpdateAvailabilityWindowCommand moves a property's bookable window.
// Empty bounds leave that side open.
type UpdateAvailabilityWindowCommand struct {
	PropertyID string `validate:"required"`
	Actor      domainbooking.Actor
	From       string `validate:"omitempty,datetime=2006-01-02"`
	Until      string `validate:"omitempty,datetime=2006-01-02"`
}

func (c UpdateAvailabilityWindowCommand) Key() string { return updateWindowKey }

func (c UpdateAvailabilityWindowCommand) ActingAs() domainbooking.Actor { return c.Actor }

// PropertyInvalidator drops cached copies of a property after it changes.
type PropertyInvalidator interface {
	Invalidate(id domainproperty.ID)
}

type UpdateAvailabilityWindowHandler struct {
	Cache  PropertyInvalidator
	Now    Clock
	Logger *slog.Logger
}

func (h *UpdateAvailabilityWindowHandler) Handle(ctx context.Context, cmd UpdateAvailabilityWindowCommand) (*dto.Property, error) {
	window, err := parseWindow(cmd.From, cmd.Until)
	if err != nil {
		return nil, err
	}
	unit, err := unitFrom(ctx)
	if err != nil {
		return nil, err
	}
	p, err := unit.Properties().LockForUpdate(ctx, domainproperty.ID(cmd.PropertyID))
	if err != nil {
		return nil, err
	}
	if !cmd.Actor.Elevated() && !p.OwnedBy(cmd.Actor.ID) {
		return nil, domainproperty.ErrNotOwner
	}
	active, err := unit.Bookings().ActiveByProperty(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	held := make([]daterange.DateRange, 0, len(active))
	for _, b := range active {
		held = append(held, b.Range)
	}
	if err := p.UpdateWindow(window, held, h.Now.now()); err != nil {
		return nil, err
	}
	if err := unit.Properties().Save(ctx, p); err != nil {
		return nil, err
	}
	if h.Cache != nil {
		id := p.ID
		uow.AfterCommit(ctx, func() { h.Cache.Invalidate(id) })
	}
	if h.Logger != nil {
		h.Logger.Info("availability window updated", "property_id", p.ID, "from", cmd.From, "until", cmd.Until)
	}
	out := dto.MapProperty(p)
	return &out, nil
}

func parseWindow(from, until string) (domainproperty.Window, error) {
	var f, u time.Time
	var err error
	if from != "" {
		if f, err = time.Parse(daterange.Layout, from); err != nil {
			return domainproperty.Window{}, domainproperty.ErrInvalidWindow
		}
	}
	if until != "" {
		if u, err = time.Parse(daterange.Layout, until); err != nil {
			return domainproperty.Window{}, domainproperty.ErrInvalidWindow
		}
	}
	return domainproperty.NewWindow(f, u)
}

var _ commands.Handler[UpdateAvailabilityWindowCommand, *dto.Property] = (*UpdateAvailabilityWindowHandler)(nil)
