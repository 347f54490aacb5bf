package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookingengine/internal/domain/property"
	"bookingengine/internal/domain/shared/daterange"
	"bookingengine/internal/domain/shared/fault"
)

var now = time.Date(2024, 2, 20, 10, 0, 0, 0, time.UTC)

var (
	traveler = Actor{ID: "trav-1", Role: RoleTraveler}
	owner    = Actor{ID: "owner-1", Role: RoleOwner}
	stranger = Actor{ID: "trav-2", Role: RoleTraveler}
	admin    = Actor{ID: "admin-1", Role: RoleAdmin}
)

func testProperty(t *testing.T) *property.Property {
	t.Helper()
	p, err := property.New(property.Params{ID: "prop-1", OwnerID: owner.ID, NightlyRate: 100, MaxGuests: 4, Active: true, Now: now})
	require.NoError(t, err)
	return p
}

func newPending(t *testing.T, in, out string) *Booking {
	t.Helper()
	dr, err := daterange.Parse(in, out)
	require.NoError(t, err)
	b, err := Request(RequestParams{ID: "bk-1", Property: testProperty(t), TravelerID: traveler.ID, Range: dr, Guests: 2, Now: now})
	require.NoError(t, err)
	return b
}

func TestRequestComputesPriceAndRecordsEvent(t *testing.T) {
	b := newPending(t, "2024-03-01", "2024-03-04")

	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, int64(300), b.TotalPrice.Int64())
	assert.Equal(t, owner.ID, b.OwnerID)

	evs := b.PullEvents()
	require.Len(t, evs, 1)
	ev := evs[0].(Event)
	assert.Equal(t, EventRequested, ev.EventName())
	assert.Equal(t, "prop-1", ev.PartitionKey())
	assert.Equal(t, "2024-03-01", ev.CheckIn)
}

func TestRequestValidation(t *testing.T) {
	p := testProperty(t)
	dr, _ := daterange.Parse("2024-03-01", "2024-03-04")
	past, _ := daterange.Parse("2024-02-19", "2024-02-22")
	today, _ := daterange.Parse("2024-02-20", "2024-02-22")

	cases := []struct {
		name   string
		params RequestParams
		want   error
	}{
		{"too many guests", RequestParams{Property: p, TravelerID: "t", Range: dr, Guests: 5, Now: now}, property.ErrTooManyGuests},
		{"zero guests", RequestParams{Property: p, TravelerID: "t", Range: dr, Guests: 0, Now: now}, ErrInvalidGuests},
		{"past check-in", RequestParams{Property: p, TravelerID: "t", Range: past, Guests: 1, Now: now}, ErrCheckInInPast},
		{"no traveler", RequestParams{Property: p, Range: dr, Guests: 1, Now: now}, ErrTravelerRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Request(tc.params)
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, fault.KindInvalidInput, fault.KindOf(err))
		})
	}

	_, err := Request(RequestParams{Property: p, TravelerID: "t", Range: today, Guests: 1, Now: now})
	require.NoError(t, err, "same-day check-in is allowed")
}

func TestRequestRespectsPropertyWindowAndActiveFlag(t *testing.T) {
	p := testProperty(t)
	p.Window = property.Window{From: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Until: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)}

	inside, _ := daterange.Parse("2024-03-05", "2024-03-10")
	outside, _ := daterange.Parse("2024-03-08", "2024-03-11")

	_, err := Request(RequestParams{Property: p, TravelerID: "t", Range: inside, Guests: 1, Now: now})
	require.NoError(t, err)
	_, err = Request(RequestParams{Property: p, TravelerID: "t", Range: outside, Guests: 1, Now: now})
	require.ErrorIs(t, err, property.ErrOutsideWindow)

	p.Active = false
	_, err = Request(RequestParams{Property: p, TravelerID: "t", Range: inside, Guests: 1, Now: now})
	require.ErrorIs(t, err, property.ErrInactive)
}

func TestTransitions(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
		ok   bool
	}{
		{StatusPending, StatusAccepted, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusAccepted, StatusCancelled, true},
		{StatusAccepted, StatusCompleted, true},
		{StatusAccepted, StatusRejected, false},
		{StatusRejected, StatusAccepted, false},
		{StatusCancelled, StatusAccepted, false},
		{StatusCompleted, StatusCancelled, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
	assert.True(t, StatusRejected.IsTerminal())
	assert.False(t, StatusAccepted.IsTerminal())
}

func TestAcceptIsIdempotent(t *testing.T) {
	b := newPending(t, "2024-03-01", "2024-03-04")
	b.ClearEvents()

	require.NoError(t, b.Accept(owner, now))
	require.NoError(t, b.Accept(owner, now.Add(time.Minute)))

	assert.Equal(t, StatusAccepted, b.Status)
	assert.Len(t, b.PendingEvents(), 1, "re-accepting records nothing")
	assert.Equal(t, int64(2), b.Version)
}

func TestDecisionAuthorization(t *testing.T) {
	b := newPending(t, "2024-03-01", "2024-03-04")

	require.ErrorIs(t, b.Accept(traveler, now), fault.ErrForbidden)
	require.ErrorIs(t, b.Reject(admin, "no", now), fault.ErrForbidden)
	require.NoError(t, b.Accept(SystemActor(), now))
}

func TestRejectOnlyFromPending(t *testing.T) {
	b := newPending(t, "2024-03-01", "2024-03-04")
	require.NoError(t, b.Accept(owner, now))

	err := b.Reject(owner, "changed my mind", now)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, fault.KindInvalidState, fault.KindOf(err))
}

func TestCancelLeadTime(t *testing.T) {
	policy := DefaultCancellationPolicy()
	checkInSoon := now.Add(12 * time.Hour).Format(daterange.Layout)

	t.Run("pending ignores lead time", func(t *testing.T) {
		b := newPending(t, checkInSoon, "2024-02-25")
		require.NoError(t, b.Cancel(traveler, "plans changed", policy, now))
		assert.Equal(t, StatusCancelled, b.Status)
	})

	t.Run("accepted inside lead time fails", func(t *testing.T) {
		b := newPending(t, checkInSoon, "2024-02-25")
		require.NoError(t, b.Accept(owner, now))
		err := b.Cancel(traveler, "plans changed", policy, now)
		require.ErrorIs(t, err, ErrInsideLeadTime)
		assert.Equal(t, StatusAccepted, b.Status)
	})

	t.Run("accepted outside lead time succeeds", func(t *testing.T) {
		b := newPending(t, "2024-03-01", "2024-03-04")
		require.NoError(t, b.Accept(owner, now))
		require.NoError(t, b.Cancel(owner, "maintenance", policy, now))
		assert.Equal(t, "maintenance", b.Reason)
	})

	t.Run("strangers cannot cancel", func(t *testing.T) {
		b := newPending(t, "2024-03-01", "2024-03-04")
		require.ErrorIs(t, b.Cancel(stranger, "", policy, now), fault.ErrForbidden)
		require.NoError(t, b.Cancel(admin, "fraud", policy, now))
	})
}

func TestCompleteRequiresSystemAndFinishedStay(t *testing.T) {
	b := newPending(t, "2024-03-01", "2024-03-04")
	require.NoError(t, b.Accept(owner, now))

	require.ErrorIs(t, b.Complete(owner, now), fault.ErrForbidden)
	require.ErrorIs(t, b.Complete(SystemActor(), now), ErrStayNotFinished)

	after := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	require.NoError(t, b.Complete(SystemActor(), after))
	require.NoError(t, b.Complete(SystemActor(), after))
	assert.Equal(t, StatusCompleted, b.Status)

	require.ErrorIs(t, b.Cancel(traveler, "", DefaultCancellationPolicy(), after), ErrInvalidTransition)
}

func TestVisibility(t *testing.T) {
	b := newPending(t, "2024-03-01", "2024-03-04")
	require.NoError(t, b.VisibleTo(traveler))
	require.NoError(t, b.VisibleTo(owner))
	require.NoError(t, b.VisibleTo(admin))
	require.ErrorIs(t, b.VisibleTo(stranger), fault.ErrForbidden)
	require.ErrorIs(t, b.VisibleTo(Actor{}), fault.ErrForbidden)
}
