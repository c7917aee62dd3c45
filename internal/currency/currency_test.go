package currency

import (
	"math"
	"testing"
)

func TestConvertAppliesRate(t *testing.T) {
	rate := 0.92
	got := Convert(100, &rate)
	if math.Abs(got-92) > 1e-9 {
		t.Fatalf("Convert(100, 0.92) = %v, want 92", got)
	}
}

func TestConvertGuardsDegenerateRates(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)
	zero := 0.0
	negative := -1.5

	cases := []struct {
		name string
		rate *float64
	}{
		{"nil", nil},
		{"zero", &zero},
		{"negative", &negative},
		{"nan", &nan},
		{"inf", &inf},
	}

	for _, tc := range cases {
		if got := Convert(42.5, tc.rate); got != 42.5 {
			t.Fatalf("Convert(42.5, %s rate) = %v, want 42.5 unchanged", tc.name, got)
		}
	}
}

func TestFormatAmountTrimsTrailingZeros(t *testing.T) {
	if got := FormatAmount(100.0, "€", "en_US"); got != "€100" {
		t.Fatalf("FormatAmount(100.0) = %q, want €100", got)
	}
	if got := FormatAmount(42.5, "£", "en_US"); got != "£42.5" {
		t.Fatalf("FormatAmount(42.5) = %q, want £42.5", got)
	}
}

func TestFormatAmountGroupsByLocale(t *testing.T) {
	if got := FormatAmount(1234567.89, "$", "en_US"); got != "$1,234,567.89" {
		t.Fatalf("FormatAmount(1234567.89, en_US) = %q, want $1,234,567.89", got)
	}
}

func TestFormatAmountRoundsToCents(t *testing.T) {
	if got := FormatAmount(1.004, "$", "en_US"); got != "$1" {
		t.Fatalf("FormatAmount(1.004) = %q, want $1", got)
	}
	if got := FormatAmount(1.006, "$", "en_US"); got != "$1.01" {
		t.Fatalf("FormatAmount(1.006) = %q, want $1.01", got)
	}
	if got := FormatAmount(19.999, "$", "en_US"); got != "$20" {
		t.Fatalf("FormatAmount(19.999) = %q, want $20", got)
	}
}

func TestFormatAmountNonFinite(t *testing.T) {
	if got := FormatAmount(math.Inf(1), "$", "en_US"); got != "$∞" {
		t.Fatalf("FormatAmount(+Inf) = %q, want $∞", got)
	}
	if got := FormatAmount(math.Inf(-1), "$", "en_US"); got != "$-∞" {
		t.Fatalf("FormatAmount(-Inf) = %q, want $-∞", got)
	}
	if got := FormatAmount(math.NaN(), "$", "en_US"); got == "" || got[0] != '$' {
		t.Fatalf("FormatAmount(NaN) = %q, want non-empty symbol-prefixed string", got)
	}
}

func TestFormatAmountUnknownLocaleFallsBack(t *testing.T) {
	if got := FormatAmount(100, "$", "not-a-locale!!"); got != "$100" {
		t.Fatalf("FormatAmount with bad locale = %q, want $100", got)
	}
}

func TestSymbol(t *testing.T) {
	if got := Symbol("USD"); got != "$" {
		t.Fatalf("Symbol(USD) = %q, want $", got)
	}
	if got := Symbol("eur"); got != "€" {
		t.Fatalf("Symbol(eur) = %q, want €", got)
	}
	if got := Symbol("XYZ"); got != "XYZ" {
		t.Fatalf("Symbol(XYZ) = %q, want code echoed back", got)
	}
}

func TestMonthlyLimit(t *testing.T) {
	if got := MonthlyLimit(1200); got != 100 {
		t.Fatalf("MonthlyLimit(1200) = %v, want 100", got)
	}
	if got := MonthlyLimit(0); got != 0 {
		t.Fatalf("MonthlyLimit(0) = %v, want 0", got)
	}
}
