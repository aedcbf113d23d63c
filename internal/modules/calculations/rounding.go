// Package calculations holds the pure valuation math shared by the stock modules.
package calculations

import (
	"fmt"
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const defaultFraction = 2

// Fraction returns the number of minor-unit digits for a currency code.
// Unknown or empty codes use two digits.
func Fraction(currency string) int32 {
	if currency == "" {
		return defaultFraction
	}
	c := money.GetCurrency(strings.ToUpper(currency))
	if c == nil {
		return defaultFraction
	}
	return int32(c.Fraction)
}

// Round rounds amount to the precision of currency. Non-finite input yields 0.
func Round(amount float64, currency string) float64 {
	if !IsFinite(amount) {
		return 0
	}
	return decimal.NewFromFloat(amount).Round(Fraction(currency)).InexactFloat64()
}

// RoundPercent rounds a percentage to two decimals.
func RoundPercent(pct float64) float64 {
	if !IsFinite(pct) {
		return 0
	}
	return decimal.NewFromFloat(pct).Round(2).InexactFloat64()
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// OrZero returns v when finite, otherwise 0.
func OrZero(v float64) float64 {
	if IsFinite(v) {
		return v
	}
	return 0
}

// NonNegative returns v when finite and positive, otherwise 0.
func NonNegative(v float64) float64 {
	if v = OrZero(v); v > 0 {
		return v
	}
	return 0
}

// Format renders amount with the currency's symbol and precision, e.g. "$1,234.50".
// Unknown codes fall back to "1234.50 XYZ".
func Format(amount float64, currency string) string {
	code := strings.ToUpper(currency)
	amount = Round(amount, code)
	if code == "" || money.GetCurrency(code) == nil {
		return strings.TrimSpace(fmt.Sprintf("%.2f %s", amount, code))
	}
	return money.NewFromFloat(amount, code).Display()
}
