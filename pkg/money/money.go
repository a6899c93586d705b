// Package money is the fixed-point amount type used for every ledger value.
// Amounts are integer minor units (kobo, cents) tagged with a currency.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketledger-backend/pkg/enums"
)

var (
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrNegativeAmount   = errors.New("amount must not be negative")
)

var hundred = decimal.NewFromInt(100)

type Money struct {
	Amount   int64          `json:"amount"`
	Currency enums.Currency `json:"currency"`
}

func New(minor int64, currency enums.Currency) Money {
	return Money{Amount: minor, Currency: currency}
}

func Zero(currency enums.Currency) Money {
	return Money{Currency: currency}
}

// FromMajor converts a major-unit decimal string ("45.00") into minor units.
// Values with more precision than the currency allows are rejected.
func FromMajor(value string, currency enums.Currency) (Money, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", value, err)
	}
	minor := d.Shift(currency.MinorUnitExponent())
	if !minor.Equal(minor.Truncate(0)) {
		return Money{}, fmt.Errorf("amount %q exceeds %s precision", value, currency)
	}
	return Money{Amount: minor.IntPart(), Currency: currency}, nil
}

func (m Money) IsZero() bool     { return m.Amount == 0 }
func (m Money) IsNegative() bool { return m.Amount < 0 }
func (m Money) IsPositive() bool { return m.Amount > 0 }

func (m Money) Neg() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + o.Amount, Currency: m.Currency}, nil
}

func (m Money) Sub(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - o.Amount, Currency: m.Currency}, nil
}

// Cmp returns -1, 0 or 1.
func (m Money) Cmp(o Money) (int, error) {
	if err := m.sameCurrency(o); err != nil {
		return 0, err
	}
	switch {
	case m.Amount < o.Amount:
		return -1, nil
	case m.Amount > o.Amount:
		return 1, nil
	}
	return 0, nil
}

func (m Money) GreaterThan(o Money) bool {
	c, err := m.Cmp(o)
	return err == nil && c > 0
}

func (m Money) LessThan(o Money) bool {
	c, err := m.Cmp(o)
	return err == nil && c < 0
}

// Min returns the smaller of two same-currency amounts.
func Min(a, b Money) (Money, error) {
	c, err := a.Cmp(b)
	if err != nil {
		return Money{}, err
	}
	if c <= 0 {
		return a, nil
	}
	return b, nil
}

// PercentCeil is ceil(m × rate / 100). It is the platform's side of a split:
// the platform never collects less than the exact share, and at most one minor
// unit more.
func (m Money) PercentCeil(rate decimal.Decimal) Money {
	share := decimal.NewFromInt(m.Amount).Mul(rate).Div(hundred)
	return Money{Amount: share.Ceil().IntPart(), Currency: m.Currency}
}

// PercentFloor is floor(m × rate / 100); used for customer-facing discounts.
func (m Money) PercentFloor(rate decimal.Decimal) Money {
	share := decimal.NewFromInt(m.Amount).Mul(rate).Div(hundred)
	return Money{Amount: share.Floor().IntPart(), Currency: m.Currency}
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -m.Currency.MinorUnitExponent())
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Decimal().StringFixed(m.Currency.MinorUnitExponent()), m.Currency)
}

func (m Money) sameCurrency(o Money) error {
	if m.Currency != o.Currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, o.Currency)
	}
	return nil
}
