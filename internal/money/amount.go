// Package money represents currency amounts as integer minor units.
//
// Every calculation in the ledger works on Amount. Decimal strings only appear at
// the edges (request parsing, JSON, display), where shopspring/decimal handles
// the conversion so no binary floating point is ever involved.
package money

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MinorDigits is the number of fractional digits an Amount carries.
const MinorDigits = 2

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrOverflow      = errors.New("amount out of range")
)

var (
	maxAmount = decimal.NewFromInt(math.MaxInt64)
	minAmount = decimal.NewFromInt(math.MinInt64)
	hundred   = decimal.NewFromInt(100)
)

// Amount is a signed quantity of minor currency units (cents).
type Amount int64

// Parse converts a decimal string such as "12.34" into an Amount.
// Digits beyond the second fractional place are rounded half away from zero.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// MustParse is Parse for constants and tests. It panics on malformed input.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromDecimal converts a major-unit decimal into minor units.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	units := d.Shift(MinorDigits).Round(0)
	if units.GreaterThan(maxAmount) || units.LessThan(minAmount) {
		return 0, fmt.Errorf("%w: %s", ErrOverflow, d.String())
	}
	return Amount(units.IntPart()), nil
}

// FromMinor wraps a raw minor-unit count.
func FromMinor(units int64) Amount {
	return Amount(units)
}

// Minor returns the raw minor-unit count.
func (a Amount) Minor() int64 {
	return int64(a)
}

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -MinorDigits)
}

// String renders the amount with exactly two fractional digits.
func (a Amount) String() string {
	return a.Decimal().StringFixed(MinorDigits)
}

// Abs returns the absolute value.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

func (a Amount) IsZero() bool     { return a == 0 }
func (a Amount) IsPositive() bool { return a > 0 }
func (a Amount) IsNegative() bool { return a < 0 }

// MarshalJSON encodes the amount as a quoted decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts either a quoted decimal string or a bare JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(data))
	}
	v, err := FromDecimal(d)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Sum adds amounts together.
func Sum(amounts ...Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}

// MulDivRound computes a × num / den in minor units, rounding half away from zero.
// den must not be zero.
func MulDivRound(a Amount, num, den int64) Amount {
	q := decimal.NewFromInt(int64(a)).
		Mul(decimal.NewFromInt(num)).
		DivRound(decimal.NewFromInt(den), 0)
	return Amount(q.IntPart())
}

// Percent computes pct percent of a, rounding half away from zero.
func Percent(a Amount, pct decimal.Decimal) Amount {
	q := decimal.NewFromInt(int64(a)).Mul(pct).DivRound(hundred, 0)
	return Amount(q.IntPart())
}
