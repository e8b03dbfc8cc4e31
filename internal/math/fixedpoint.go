// internal/math/fixedpoint.go
package math

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAccuracy bounds the decimal places an asset may declare.
const MaxAccuracy = 18

var (
	ErrMalformedAmount = errors.New("malformed decimal amount")
	ErrAmountOverflow  = errors.New("amount overflows fixed-point representation")
	ErrInvalidAccuracy = errors.New("invalid asset accuracy")
)

// Invariant format: optional sign, digits, optional fraction. No thousands
// separators, no exponent.
var amountPattern = regexp.MustCompile(`^[+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)$`)

// ParseAmount parses an exact decimal string. Surrounding whitespace is
// tolerated; anything culture-specific is rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if !amountPattern.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrMalformedAmount, s, err)
	}
	return d, nil
}

// Truncate drops every digit beyond accuracy decimal places, rounding
// toward zero. 12.34567 at accuracy 2 is 12.34, never 12.35.
func Truncate(d decimal.Decimal, accuracy int) (decimal.Decimal, error) {
	if accuracy < 0 || accuracy > MaxAccuracy {
		return decimal.Zero, fmt.Errorf("%w: %d", ErrInvalidAccuracy, accuracy)
	}
	return d.Truncate(int32(accuracy)), nil
}

// ToFixedPoint converts d to integer units of 10^-accuracy, truncating
// toward zero first.
func ToFixedPoint(d decimal.Decimal, accuracy int) (int64, error) {
	t, err := Truncate(d, accuracy)
	if err != nil {
		return 0, err
	}
	units := t.Shift(int32(accuracy)).BigInt()
	if !units.IsInt64() {
		return 0, fmt.Errorf("%w: %s at accuracy %d", ErrAmountOverflow, d, accuracy)
	}
	return units.Int64(), nil
}

// FromFixedPoint is the inverse of ToFixedPoint.
func FromFixedPoint(units int64, accuracy int) decimal.Decimal {
	return decimal.New(units, -int32(accuracy))
}
