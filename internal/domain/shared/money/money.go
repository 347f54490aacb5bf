package money

import (
	"fmt"

	"bookingengine/internal/domain/shared/fault"
)

var ErrNegativeAmount = fmt.Errorf("%w: amount must not be negative", fault.ErrInvalidInput)

// Money keeps amounts in integer minor units of the marketplace currency.
type Money int64

// New validates that amount is not negative.
func New(amount int64) (Money, error) {
	if amount < 0 {
		return 0, ErrNegativeAmount
	}
	return Money(amount), nil
}

// Multiply multiplies the amount by the provided factor.
func (m Money) Multiply(times int64) Money {
	return Money(int64(m) * times)
}

func (m Money) Int64() int64 { return int64(m) }

func (m Money) IsZero() bool { return m == 0 }
