// Package currency provides pure helpers for amount conversion and
// locale-aware display formatting.
package currency

import (
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// symbols maps the currency codes vibemeter renders natively. Anything else
// falls back to the code itself.
var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "¥",
	"AUD": "A$",
	"CAD": "C$",
	"CHF": "CHF",
	"SEK": "kr",
	"NZD": "NZ$",
	"INR": "₹",
	"KRW": "₩",
}

// Convert multiplies amount by rate. A nil, non-positive, NaN, or infinite
// rate is a guard condition, not an error: the amount is returned unchanged.
func Convert(amount float64, rate *float64) float64 {
	if rate == nil {
		return amount
	}
	r := *rate
	if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return amount
	}
	return amount * r
}

// FormatAmount renders an amount with the given currency symbol, using the
// locale's grouping and decimal separators. Values are rounded half-up to two
// decimals and trailing zero decimals are trimmed ("$100", "$42.5").
// Non-finite amounts still produce a symbol-prefixed string.
func FormatAmount(amount float64, symbol, locale string) string {
	if math.IsNaN(amount) {
		return symbol + "NaN"
	}
	if math.IsInf(amount, 1) {
		return symbol + "∞"
	}
	if math.IsInf(amount, -1) {
		return symbol + "-∞"
	}

	// Round half away from zero to 2 decimals before trimming.
	rounded := math.Round(amount*100) / 100

	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		tag = language.English
	}
	p := message.NewPrinter(tag)
	formatted := p.Sprint(number.Decimal(rounded,
		number.MaxFractionDigits(2),
		number.MinFractionDigits(0),
	))
	return symbol + formatted
}

// Symbol returns the display symbol for a currency code, or the code itself
// when unrecognized.
func Symbol(code string) string {
	if s, ok := symbols[strings.ToUpper(code)]; ok {
		return s
	}
	return code
}

// MonthlyLimit derives a monthly spending limit from a yearly one. The split
// is a flat twelfth regardless of calendar.
func MonthlyLimit(yearlyLimit float64) float64 {
	return yearlyLimit / 12
}
