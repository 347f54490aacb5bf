package property

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookingengine/internal/domain/shared/daterange"
	"bookingengine/internal/domain/shared/fault"
)

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func TestNewValidates(t *testing.T) {
	_, err := New(Params{ID: "p", OwnerID: "o", MaxGuests: 0, NightlyRate: 10})
	require.ErrorIs(t, err, fault.ErrInvalidInput)

	_, err = New(Params{ID: "p", OwnerID: "o", MaxGuests: 2, NightlyRate: -1})
	require.ErrorIs(t, err, fault.ErrInvalidInput)

	_, err = New(Params{ID: "p", OwnerID: "o", MaxGuests: 2, Window: Window{From: date(2024, 3, 2), Until: date(2024, 3, 1)}})
	require.ErrorIs(t, err, ErrInvalidWindow)
}

func TestWindowAllowsHalfOpen(t *testing.T) {
	w, err := NewWindow(date(2024, 3, 1), date(2024, 3, 10))
	require.NoError(t, err)

	inside, _ := daterange.Parse("2024-03-01", "2024-03-10")
	assert.True(t, w.Allows(inside))
	late, _ := daterange.Parse("2024-03-09", "2024-03-11")
	assert.False(t, w.Allows(late))

	openEnded := Window{From: date(2024, 3, 1)}
	assert.True(t, openEnded.Allows(late))
	assert.True(t, Window{}.IsOpen())
}

func TestUpdateWindowRefusesToStrandCommitments(t *testing.T) {
	p, err := New(Params{ID: "p", OwnerID: "o", MaxGuests: 2, NightlyRate: 80, Active: true})
	require.NoError(t, err)

	held, _ := daterange.Parse("2024-04-01", "2024-04-05")
	err = p.UpdateWindow(Window{From: date(2024, 4, 3)}, []daterange.DateRange{held}, time.Now())
	require.ErrorIs(t, err, ErrWindowExcludes)
	assert.Equal(t, fault.KindConflict, fault.KindOf(err))
	assert.True(t, p.Window.IsOpen(), "window unchanged on refusal")

	require.NoError(t, p.UpdateWindow(Window{From: date(2024, 4, 1), Until: date(2024, 5, 1)}, []daterange.DateRange{held}, time.Now()))
	assert.Equal(t, date(2024, 5, 1), p.Window.Until)
}

func TestQuote(t *testing.T) {
	p, err := New(Params{ID: "p", OwnerID: "o", MaxGuests: 2, NightlyRate: 100, Active: true})
	require.NoError(t, err)
	dr, _ := daterange.Parse("2024-03-01", "2024-03-04")
	assert.Equal(t, int64(300), p.Quote(dr).Int64())
}
