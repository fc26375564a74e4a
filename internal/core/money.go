// Package core holds the budgeting domain: money, cards, statements, budget
// items and the pure algorithms that operate on them.
//
// This file contains the fixed-point Money type. Amounts are kept as int64
// cents; shopspring/decimal is only used at the text boundary (parsing,
// formatting, ratio comparisons) so no value ever passes through float64.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits every amount carries.
const MoneyScale = 2

var (
	hundred = decimal.NewFromInt(100)
	// maxMoney bounds parsed values so cents always fit in an int64.
	maxMoney = decimal.New(1, 15)
)

// Money is an exact amount with two fractional digits.
type Money struct {
	Cents int64
}

// NewMoney builds a Money from a cents value.
func NewMoney(cents int64) Money {
	return Money{Cents: cents}
}

// MoneyFromDecimal converts d to Money rounding half away from zero to two
// places.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Round(MoneyScale).Mul(hundred).IntPart()}
}

// ParseMoney parses user input such as "12.34", "12,34" or "1200".
//
// Values with more than two fractional digits are rounded half-up on the
// third decimal, which matches how amounts are typed in forms:
//
//	ParseMoney("12.345") -> 12.35
//	ParseMoney("12.344") -> 12.34
func ParseMoney(s string) (Money, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return Money{}, err
	}
	return MoneyFromDecimal(d), nil
}

// ParseMoneyExact parses s and rejects values that need more than two
// fractional digits instead of rounding them.
func ParseMoneyExact(s string) (Money, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return Money{}, err
	}
	if !d.Equal(d.Truncate(MoneyScale)) {
		return Money{}, &ValidationError{Field: "amount", Reason: fmt.Sprintf("%q has more than %d decimal places", s, MoneyScale)}
	}
	return MoneyFromDecimal(d), nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "empty value"}
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: fmt.Sprintf("%q is not a decimal number", s)}
	}
	if d.Abs().GreaterThanOrEqual(maxMoney) {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: fmt.Sprintf("%q is out of range", s)}
	}
	return d, nil
}

// Decimal returns the amount as a decimal with two places.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -MoneyScale)
}

// String formats the amount with exactly two decimals, e.g. "450.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(MoneyScale)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }

// Cmp returns -1, 0 or +1 comparing m with o.
func (m Money) Cmp(o Money) int {
	switch {
	case m.Cents < o.Cents:
		return -1
	case m.Cents > o.Cents:
		return 1
	default:
		return 0
	}
}

func (m Money) IsZero() bool     { return m.Cents == 0 }
func (m Money) IsPositive() bool { return m.Cents > 0 }
func (m Money) IsNegative() bool { return m.Cents < 0 }

// ClampZero returns m, or zero when m is negative.
func (m Money) ClampZero() Money {
	if m.Cents < 0 {
		return Money{}
	}
	return m
}

// MaxMoney returns the larger of a and b.
func MaxMoney(a, b Money) Money {
	if a.Cents >= b.Cents {
		return a
	}
	return b
}

// MinMoney returns the smaller of a and b.
func MinMoney(a, b Money) Money {
	if a.Cents <= b.Cents {
		return a
	}
	return b
}

// SumMoney adds all amounts.
func SumMoney(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Validate checks that the amount is strictly positive.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	return nil
}

// MarshalJSON encodes the amount as a two-decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts "12.34" or 12.34 and rejects sub-cent precision.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Money{}
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	parsed, err := ParseMoneyExact(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
