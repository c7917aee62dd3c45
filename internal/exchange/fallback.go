package exchange

// fallbackRates is the hardcoded table served when no fetch has ever
// succeeded and the cache is unusable. Values are approximate USD-based
// rates; display falls back rather than failing.
var fallbackRates = map[string]float64{
	"USD": 1.0,
	"EUR": 0.92,
	"GBP": 0.79,
	"JPY": 149.50,
	"AUD": 1.52,
	"CAD": 1.36,
	"CHF": 0.88,
	"CNY": 7.24,
	"SEK": 10.45,
	"NZD": 1.64,
}

// FallbackRates returns a copy of the hardcoded rate table.
func FallbackRates() map[string]float64 {
	out := make(map[string]float64, len(fallbackRates))
	for k, v := range fallbackRates {
		out[k] = v
	}
	return out
}
