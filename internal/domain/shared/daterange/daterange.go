package daterange

import (
	"fmt"
	"time"

	"bookingengine/internal/domain/shared/fault"
)

const (
	day = 24 * time.Hour

	// Layout is the calendar-date wire format.
	Layout = "2006-01-02"
)

var (
	ErrInvalidRange = fmt.Errorf("%w: check_out must be after check_in", fault.ErrInvalidInput)
)

// DateRange represents a half-open interval of calendar dates [CheckIn, CheckOut).
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// New truncates both ends to UTC calendar dates and validates the interval.
func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Parse builds a range from two YYYY-MM-DD strings.
func Parse(checkIn, checkOut string) (DateRange, error) {
	in, err := time.Parse(Layout, checkIn)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: check_in %q is not a date", fault.ErrInvalidInput, checkIn)
	}
	out, err := time.Parse(Layout, checkOut)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: check_out %q is not a date", fault.ErrInvalidInput, checkOut)
	}
	return New(in, out)
}

// Day returns the UTC calendar date containing t.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

// Nights counts the nights in the stay; the check-out date is not a night.
func (dr DateRange) Nights() int {
	return int(Day(dr.CheckOut).Sub(Day(dr.CheckIn)) / day)
}

// Overlaps reports whether the ranges share at least one night.
// Ranges that only touch (one ends where the other starts) do not overlap.
func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

// Contains reports whether other lies entirely within dr.
func (dr DateRange) Contains(other DateRange) bool {
	return !other.CheckIn.Before(dr.CheckIn) && !other.CheckOut.After(dr.CheckOut)
}

func (dr DateRange) String() string {
	return fmt.Sprintf("[%s, %s)", dr.CheckIn.Format(Layout), dr.CheckOut.Format(Layout))
}
