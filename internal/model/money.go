package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	ErrMoneyPrecision = errors.New("amount has more than two decimal places")
	ErrMoneyRange     = errors.New("amount is out of range")
)

// Money is an amount in minor units (cents). It is persisted as BIGINT so
// increments and sums stay exact in SQL.
type Money int64

// MaxMoney is the largest amount a BIGINT column holds.
const MaxMoney = Money(math.MaxInt64)

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// MoneyFromDecimal converts a decimal amount to minor units. Amounts finer
// than a cent or beyond the int64 range of cents are rejected rather than
// rounded or wrapped.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if !d.Round(2).Equal(d) {
		return 0, fmt.Errorf("%w: %s", ErrMoneyPrecision, d.String())
	}
	cents := d.Shift(2)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return 0, fmt.Errorf("%w: %s", ErrMoneyRange, d.String())
	}
	return Money(cents.IntPart()), nil
}

// MustMoney parses s and panics on failure. Intended for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	m, err := MoneyFromDecimal(d)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	v, err := MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
