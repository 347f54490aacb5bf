package availability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookingengine/internal/domain/booking"
	"bookingengine/internal/domain/property"
	"bookingengine/internal/domain/shared/daterange"
	"bookingengine/internal/domain/shared/fault"
)

func stay(t *testing.T, id string, status booking.Status, in, out string) *booking.Booking {
	t.Helper()
	dr, err := daterange.Parse(in, out)
	require.NoError(t, err)
	return &booking.Booking{ID: booking.ID(id), PropertyID: "prop-1", Range: dr, Status: status}
}

func rng(t *testing.T, in, out string) daterange.DateRange {
	t.Helper()
	dr, err := daterange.Parse(in, out)
	require.NoError(t, err)
	return dr
}

func TestIsAvailableTouchingBoundary(t *testing.T) {
	existing := []*booking.Booking{stay(t, "a", booking.StatusAccepted, "2024-02-01", "2024-02-05")}
	assert.True(t, IsAvailable(existing, rng(t, "2024-02-05", "2024-02-08"), "", ScopeActive))
}

func TestIsAvailableOverlap(t *testing.T) {
	existing := []*booking.Booking{stay(t, "a", booking.StatusAccepted, "2024-02-01", "2024-02-05")}
	assert.False(t, IsAvailable(existing, rng(t, "2024-02-03", "2024-02-06"), "", ScopeActive))
}

func TestInactiveBookingsNeverBlock(t *testing.T) {
	existing := []*booking.Booking{
		stay(t, "r", booking.StatusRejected, "2024-02-01", "2024-02-05"),
		stay(t, "c", booking.StatusCancelled, "2024-02-01", "2024-02-05"),
		stay(t, "d", booking.StatusCompleted, "2024-02-01", "2024-02-05"),
	}
	assert.True(t, IsAvailable(existing, rng(t, "2024-02-02", "2024-02-03"), "", ScopeActive))
}

func TestExcludeAndScope(t *testing.T) {
	self := stay(t, "self", booking.StatusPending, "2024-02-01", "2024-02-05")
	rival := stay(t, "rival", booking.StatusPending, "2024-02-03", "2024-02-06")
	existing := []*booking.Booking{self, rival}

	assert.False(t, IsAvailable(existing, self.Range, "self", ScopeActive), "pending rival blocks admission")
	assert.True(t, IsAvailable(existing, self.Range, "self", ScopeCommitted), "pending rival does not block acceptance")

	rival.Status = booking.StatusAccepted
	conflicts := Conflicts(existing, self.Range, "self", ScopeCommitted)
	require.Len(t, conflicts, 1)
	assert.Equal(t, booking.ID("rival"), conflicts[0].ID)
}

type sourceFunc func(ctx context.Context, id property.ID) ([]*booking.Booking, error)

func (f sourceFunc) ActiveByProperty(ctx context.Context, id property.ID) ([]*booking.Booking, error) {
	return f(ctx, id)
}

func TestCheckerRequire(t *testing.T) {
	existing := []*booking.Booking{stay(t, "a", booking.StatusAccepted, "2024-02-01", "2024-02-05")}
	checker := Checker{Bookings: sourceFunc(func(ctx context.Context, id property.ID) ([]*booking.Booking, error) {
		assert.Equal(t, property.ID("prop-1"), id)
		return existing, nil
	})}

	err := checker.Require(context.Background(), "prop-1", rng(t, "2024-02-03", "2024-02-06"), "", ScopeActive)
	require.ErrorIs(t, err, ErrDatesUnavailable)
	assert.Equal(t, fault.KindConflict, fault.KindOf(err))

	ok, err := checker.IsAvailable(context.Background(), "prop-1", rng(t, "2024-02-05", "2024-02-06"), "", ScopeActive)
	require.NoError(t, err)
	assert.True(t, ok)
}
