// Package money bounds decimal inputs to what the NUMERIC columns hold.
package money

import "github.com/shopspring/decimal"

var (
	// MaxAmount fits NUMERIC(12,2).
	MaxAmount = decimal.RequireFromString("9999999999.99")
	// MaxHours fits NUMERIC(8,2).
	MaxHours = decimal.RequireFromString("999999.99")
	// MaxBreakHours fits NUMERIC(6,2).
	MaxBreakHours = decimal.RequireFromString("9999.99")
)

// maxScale bounds the exponent either way. Outside it, rounding to cents
// or comparing means building a power of ten as large as the exponent.
const maxScale = 12

// Within reports whether |v| <= limit. It decides on exponent and digit
// count before any rescaling, so values like 1e900000000 are refused
// without arithmetic.
func Within(v, limit decimal.Decimal) bool {
	exp := int64(v.Exponent())
	if exp > maxScale || exp < -maxScale {
		return false
	}
	if v.IsZero() {
		return true
	}
	if int64(v.NumDigits())+exp > int64(limit.NumDigits())+int64(limit.Exponent()) {
		return false
	}
	return v.Abs().Cmp(limit) <= 0
}
