// Package core holds the planner's domain model and the pure recurrence
// calculations everything else is built on.
package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a monetary amount in integer cents. All arithmetic in the
// engine happens on cents; decimal conversion exists only at the parse
// and display boundaries.
type Money struct {
	Cents int64 `json:"cents"`
}

var centFactor = decimal.NewFromInt(100)

// ParseAmount converts a decimal string ("1234.56", comma separator
// accepted) to Money, rounding half-up beyond two decimals.
func ParseAmount(s string) (Money, error) {
	normalized := ""
	for _, r := range s {
		switch r {
		case ',':
			normalized += "."
		case ' ':
		default:
			normalized += string(r)
		}
	}
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	cents := d.Mul(centFactor).Round(0)
	if !cents.IsInteger() || cents.BigInt().BitLen() > 62 {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{Cents: cents.IntPart()}, nil
}

// FromCents wraps raw cents.
func FromCents(cents int64) Money {
	return Money{Cents: cents}
}

func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

func (m Money) Sub(other Money) Money {
	return Money{Cents: m.Cents - other.Cents}
}

func (m Money) Neg() Money {
	return Money{Cents: -m.Cents}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

func (m Money) IsNegative() bool {
	return m.Cents < 0
}

// GreaterOrEqual reports m >= other.
func (m Money) GreaterOrEqual(other Money) bool {
	return m.Cents >= other.Cents
}

// Decimal returns the amount in currency units for display.
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(m.Cents).Div(centFactor)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Validate rejects non-positive amounts; definitions and payments always
// carry positive magnitudes, direction is modeled separately.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
