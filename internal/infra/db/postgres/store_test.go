package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	handlers "bookingengine/internal/app/handlers/booking"
	"bookingengine/internal/app/reservation"
	"bookingengine/internal/app/uow"
	domainbooking "bookingengine/internal/domain/booking"
	domainproperty "bookingengine/internal/domain/property"
	"bookingengine/internal/domain/shared/daterange"
	"bookingengine/internal/domain/shared/fault"
	"bookingengine/internal/infra/obs"
	"bookingengine/internal/testutil"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		code string
		kind fault.Kind
	}{
		{pgerrcode.LockNotAvailable, fault.KindBusy},
		{pgerrcode.SerializationFailure, fault.KindTransient},
		{pgerrcode.DeadlockDetected, fault.KindTransient},
		{pgerrcode.UniqueViolation, fault.KindConflict},
		{pgerrcode.CheckViolation, fault.KindInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			err := classify("op", &pgconn.PgError{Code: tc.code})
			assert.Equal(t, tc.kind, fault.KindOf(err))
		})
	}
	assert.NoError(t, classify("op", nil))
	assert.Equal(t, fault.KindInternal, fault.KindOf(classify("op", errors.New("boom"))))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := testutil.PostgresDSN(t)
	ctx := context.Background()
	s, err := Open(ctx, dsn, 100*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	_, err = s.Pool().Exec(ctx, `TRUNCATE bookings, properties`)
	require.NoError(t, err)
	return s
}

func TestStoreRoundTripAndLocking(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 2, 20, 10, 0, 0, 0, time.UTC)

	prop, err := domainproperty.New(domainproperty.Params{ID: "prop-1", OwnerID: "owner-1", NightlyRate: 100, MaxGuests: 4, Active: true, Now: now})
	require.NoError(t, err)
	require.NoError(t, s.SeedProperties(ctx, prop))

	dr, err := daterange.Parse("2024-03-01", "2024-03-04")
	require.NoError(t, err)
	b, err := domainbooking.Request(domainbooking.RequestParams{ID: "bk-1", Property: prop, TravelerID: "trav-1", Range: dr, Guests: 2, Now: now})
	require.NoError(t, err)

	holder, err := s.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	_, err = holder.Properties().LockForUpdate(ctx, "prop-1")
	require.NoError(t, err)
	require.NoError(t, holder.Bookings().Save(ctx, b))

	waiter, err := s.Begin(ctx, uow.TxOptions{LockTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	_, err = waiter.Properties().LockForUpdate(ctx, "prop-1")
	assert.Equal(t, fault.KindBusy, fault.KindOf(err))
	require.NoError(t, waiter.Rollback(ctx))

	require.NoError(t, holder.Commit(ctx))

	reader, err := s.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer reader.Rollback(ctx)

	got, err := reader.Bookings().ByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusPending, got.Status)
	assert.Equal(t, int64(300), got.TotalPrice.Int64())
	assert.True(t, got.Range.CheckIn.Equal(dr.CheckIn))

	active, err := reader.Bookings().ActiveByProperty(ctx, "prop-1")
	require.NoError(t, err)
	assert.Len(t, active, 1)

	page, err := reader.Bookings().ListByOwner(ctx, "owner-1", domainbooking.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	_, err = reader.Bookings().ByID(ctx, "missing")
	assert.ErrorIs(t, err, domainbooking.ErrNotFound)
}

func TestConcurrentOverlappingRequestsAdmitOne(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 2, 20, 10, 0, 0, 0, time.UTC)
	prop, err := domainproperty.New(domainproperty.Params{ID: "prop-1", OwnerID: "owner-1", NightlyRate: 100, MaxGuests: 4, Active: true, Now: now})
	require.NoError(t, err)
	require.NoError(t, s.SeedProperties(ctx, prop))

	svc := reservation.New(reservation.Options{
		UoWFactory:   s,
		RetryBackoff: []time.Duration{10 * time.Millisecond, 50 * time.Millisecond},
		LockTimeout:  2 * time.Second,
		Properties:   s,
		Policy:       domainbooking.DefaultCancellationPolicy(),
		Now:          func() time.Time { return now },
		Logger:       obs.Discard(),
	})

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.RequestBooking(ctx, handlers.RequestBookingCommand{
				PropertyID: "prop-1",
				Actor:      domainbooking.Actor{ID: fmt.Sprintf("trav-%d", i), Role: domainbooking.RoleTraveler},
				CheckIn:    fmt.Sprintf("2024-03-%02d", 1+i%3),
				CheckOut:   "2024-03-06",
				Guests:     1,
			})
		}()
	}
	wg.Wait()

	admitted := 0
	for _, err := range errs {
		if err == nil {
			admitted++
			continue
		}
		kind := fault.KindOf(err)
		assert.True(t, kind == fault.KindConflict || kind == fault.KindBusy, "unexpected error: %v", err)
	}
	assert.Equal(t, 1, admitted)

	reader, err := s.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer reader.Rollback(ctx)
	active, err := reader.Bookings().ActiveByProperty(ctx, "prop-1")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}
