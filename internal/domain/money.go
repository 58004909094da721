package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor currency units (centimes for DZD).
// It is persisted as an integer and exposed over JSON in major units.
type Money int64

// DefaultCurrency is the only currency the panel trades in.
const DefaultCurrency = "DZD"

const minorExponent = 2

// unitsPerPrice is the number of units a catalog price is quoted for.
const unitsPerPrice = 1000

// MoneyFromMajor converts a whole number of major units.
func MoneyFromMajor(major int64) Money {
	return Money(major * 100)
}

// MoneyFromDecimal converts a decimal major-unit amount. Amounts with more
// precision than one centime are rejected.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	shifted := d.Shift(minorExponent)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", d.String(), minorExponent)
	}
	return Money(shifted.IntPart()), nil
}

// ParseMoney parses a major-unit string such as "750" or "12.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return MoneyFromDecimal(d)
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -minorExponent)
}

// Minor returns the raw minor-unit value, as the gateway expects it.
func (m Money) Minor() int64 {
	return int64(m)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(minorExponent)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimals.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	v, err := MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// OrderTotal prices quantity units of a service quoted per 1000 units,
// rounding half away from zero to the nearest centime.
func OrderTotal(pricePer1000 Money, quantity int64) Money {
	total := decimal.NewFromInt(int64(pricePer1000)).
		Mul(decimal.NewFromInt(quantity)).
		Div(decimal.NewFromInt(unitsPerPrice)).
		Round(0)
	return Money(total.IntPart())
}

// Share returns total × part / whole rounded to the nearest centime.
func Share(total Money, part, whole int64) Money {
	if whole <= 0 || part <= 0 {
		return 0
	}
	if part >= whole {
		return total
	}
	share := decimal.NewFromInt(int64(total)).
		Mul(decimal.NewFromInt(part)).
		Div(decimal.NewFromInt(whole)).
		Round(0)
	return Money(share.IntPart())
}
