package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bookingengine/internal/app/dto"
	"bookingengine/internal/app/pipeline"
	domainbooking "bookingengine/internal/domain/booking"
	"bookingengine/internal/domain/shared/fault"
)

// ReasonDatesUnavailable is recorded when a request loses to an accepted booking.
const ReasonDatesUnavailable = "dates no longer available"

type DecisionMode string

const (
	// DecisionAuto accepts every request that still fits and rejects the rest.
	DecisionAuto DecisionMode = "auto"
	// DecisionManual leaves requests for the owner and only rejects the ones that can no longer fit.
	DecisionManual DecisionMode = "manual"
)

func ParseDecisionMode(raw string) (DecisionMode, error) {
	switch DecisionMode(raw) {
	case "", DecisionAuto:
		return DecisionAuto, nil
	case DecisionManual:
		return DecisionManual, nil
	default:
		return "", fmt.Errorf("%w: unknown decision mode %q", fault.ErrInvalidInput, raw)
	}
}

// Decider is the slice of the reservation service the decision worker drives.
type Decider interface {
	AcceptBooking(ctx context.Context, bookingID string, actor domainbooking.Actor) (*dto.Booking, error)
	RejectBooking(ctx context.Context, bookingID string, actor domainbooking.Actor, reason string) (*dto.Booking, error)
	ProbeAccept(ctx context.Context, bookingID string, actor domainbooking.Actor) (dto.AcceptProbe, error)
}

// DecisionWorker consumes booking.requested events and decides them as the system actor.
// Redelivery is safe: deciding an already decided booking is a no-op or an invalid_state error, both ignored.
type DecisionWorker struct {
	Bookings Decider
	Mode     DecisionMode
	Logger   *slog.Logger
}

func (w *DecisionWorker) Handle(ctx context.Context, msg pipeline.Message) error {
	var ev domainbooking.Event
	if _, err := pipeline.Decode(msg, &ev); err != nil {
		return err
	}
	if ev.Name != domainbooking.EventRequested {
		return nil
	}
	logger := w.log().With("booking_id", ev.BookingID, "property_id", ev.PropertyID, "event_id", msg.ID)

	switch w.Mode {
	case DecisionManual:
		return w.screen(ctx, ev.BookingID, logger)
	default:
		return w.decide(ctx, ev.BookingID, logger)
	}
}

func (w *DecisionWorker) decide(ctx context.Context, bookingID string, logger *slog.Logger) error {
	system := domainbooking.SystemActor()
	_, err := w.Bookings.AcceptBooking(ctx, bookingID, system)
	switch {
	case err == nil:
		logger.Info("booking auto-accepted")
		return nil
	case errors.Is(err, fault.ErrConflict):
		return w.reject(ctx, bookingID, logger)
	case errors.Is(err, fault.ErrInvalidState):
		logger.Debug("booking already decided", "error", err)
		return nil
	default:
		return err
	}
}

func (w *DecisionWorker) screen(ctx context.Context, bookingID string, logger *slog.Logger) error {
	probe, err := w.Bookings.ProbeAccept(ctx, bookingID, domainbooking.SystemActor())
	if err != nil {
		return err
	}
	if probe.Status != string(domainbooking.StatusPending) || probe.Available {
		logger.Debug("booking left for owner", "status", probe.Status)
		return nil
	}
	return w.reject(ctx, bookingID, logger)
}

func (w *DecisionWorker) reject(ctx context.Context, bookingID string, logger *slog.Logger) error {
	_, err := w.Bookings.RejectBooking(ctx, bookingID, domainbooking.SystemActor(), ReasonDatesUnavailable)
	if err != nil {
		if errors.Is(err, fault.ErrInvalidState) {
			logger.Debug("booking decided before rejection", "error", err)
			return nil
		}
		return err
	}
	logger.Info("booking rejected", "reason", ReasonDatesUnavailable)
	return nil
}

func (w *DecisionWorker) log() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

var _ pipeline.Handler = (*DecisionWorker)(nil)
