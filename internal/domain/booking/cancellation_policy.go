package booking

import (
	"fmt"
	"time"

	"bookingengine/internal/domain/shared/fault"
)

const DefaultCancellationLeadTime = 24 * time.Hour

var ErrInsideLeadTime = fmt.Errorf("%w: accepted booking can no longer be cancelled this close to check-in", fault.ErrInvalidState)

// CancellationPolicy protects owners from last-minute cancellation of accepted stays.
type CancellationPolicy struct {
	LeadTime time.Duration
}

func DefaultCancellationPolicy() CancellationPolicy {
	return CancellationPolicy{LeadTime: DefaultCancellationLeadTime}
}

// Check only restricts accepted bookings; pending requests may always be withdrawn.
func (c CancellationPolicy) Check(b *Booking, now time.Time) error {
	if b.Status != StatusAccepted || c.LeadTime <= 0 {
		return nil
	}
	if b.Range.CheckIn.Sub(now.UTC()) < c.LeadTime {
		return fmt.Errorf("%w (lead time %s)", ErrInsideLeadTime, c.LeadTime)
	}
	return nil
}
