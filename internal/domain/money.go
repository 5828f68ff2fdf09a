package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrencySymbol is the Bangladeshi taka sign.
const DefaultCurrencySymbol = "৳"

// FormatMoney renders d with two decimals, thousands separators and the given
// currency symbol in front. Rounding only ever happens here.
func FormatMoney(d decimal.Decimal, symbol string) string {
	r := d.Round(2)
	neg := r.IsNegative()
	s := r.Abs().StringFixed(2)

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(symbol)
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// FormatAmount renders d with two decimals and no symbol or separators.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ClampZero returns d, or zero when d is negative.
func ClampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
