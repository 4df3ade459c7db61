package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type Money struct {
	Amount   decimal.Decimal
	Currency currency.Unit
}

// Mul scales the amount by a quantity, keeping the currency.
func (m Money) Mul(q decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(q), Currency: m.Currency}
}

func (m Money) Add(other Money) Money {
	unit := m.Currency
	if unit == (currency.Unit{}) {
		unit = other.Currency
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: unit}
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// String representation (for logging)
func (m Money) String() string {
	if m.Currency == (currency.Unit{}) {
		return m.Amount.String()
	}
	return fmt.Sprintf("%s %s", m.Amount.String(), m.Currency)
}
