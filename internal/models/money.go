package models

import (
	"github.com/shopspring/decimal"
)

// Money is a USD amount. Values produced by NewMoney are rounded to cents and
// always marshal as a fixed two-decimal JSON number (2.10, not "2.1").
type Money struct {
	decimal.Decimal
}

// Zero is the zero amount
var Zero = Money{decimal.Zero}

// NewMoney rounds d to cents
func NewMoney(d decimal.Decimal) Money {
	return Money{d.Round(2)}
}

// MustMoney parses a decimal string and panics on malformed input. Meant for
// constants and tests.
func MustMoney(s string) Money {
	return NewMoney(decimal.RequireFromString(s))
}

// ParseMoney parses a decimal string such as "5.99"
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, err
	}
	return NewMoney(d), nil
}

// Add returns m + o
func (m Money) Add(o Money) Money {
	return NewMoney(m.Decimal.Add(o.Decimal))
}

// Times returns m scaled by an integer quantity
func (m Money) Times(qty int) Money {
	return NewMoney(m.Decimal.Mul(decimal.NewFromInt(int64(qty))))
}

// String renders the amount with exactly two decimals
func (m Money) String() string {
	return m.Decimal.StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.StringFixed(2)), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*m = NewMoney(d)
	return nil
}
