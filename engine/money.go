package engine

import "github.com/shopspring/decimal"

// =============================================================================
// MONEY - Monetary scalars (always decimal, primary currency by default)
// =============================================================================

// Monetary amounts use decimal.Decimal throughout. Line items are stored
// rounded to currency precision; intermediate rule math is not rounded.

// CurrencyPlaces is the precision of the primary currency (USD, 2 dp).
const CurrencyPlaces = 2

// Round2 rounds to currency precision, half away from zero.
// Line amounts are rounded per line; totals are sums of rounded lines.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}

// MustDecimal parses a decimal literal and returns zero on failure.
// Intended for constants and tests, not user input.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func FromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// WithinTolerance reports |a-b| <= tol.
func WithinTolerance(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}
