package enums

import (
	"fmt"
	"strings"
)

// Currency is the ISO-4217 tag carried by every monetary amount.
type Currency string

const (
	CurrencyNGN Currency = "NGN"
	CurrencyUSD Currency = "USD"
	CurrencyGHS Currency = "GHS"
	CurrencyKES Currency = "KES"
	CurrencyJPY Currency = "JPY"
)

var currencyExponents = map[Currency]int32{
	CurrencyNGN: 2,
	CurrencyUSD: 2,
	CurrencyGHS: 2,
	CurrencyKES: 2,
	CurrencyJPY: 0,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	_, ok := currencyExponents[c]
	return ok
}

// MinorUnitExponent is the number of decimal places in one major unit.
func (c Currency) MinorUnitExponent() int32 {
	if exp, ok := currencyExponents[c]; ok {
		return exp
	}
	return 2
}

// ParseCurrency converts a raw string into a Currency.
func ParseCurrency(value string) (Currency, error) {
	candidate := Currency(strings.ToUpper(strings.TrimSpace(value)))
	if candidate.IsValid() {
		return candidate, nil
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
