package spending

import (
	"math"
	"testing"
	"time"

	"github.com/vibemeter/vibemeter/internal/connection"
	"github.com/vibemeter/vibemeter/internal/provider"
)

func invoiceCents(p provider.Provider, cents ...int) provider.MonthlyInvoice {
	items := make([]provider.InvoiceItem, 0, len(cents))
	for _, c := range cents {
		items = append(items, provider.InvoiceItem{Cents: c, Description: "usage", Provider: p})
	}
	return provider.MonthlyInvoice{Items: items, Provider: p, Month: 2, Year: 2026}
}

func TestUpdateSpendingDerivesUSDFromInvoice(t *testing.T) {
	s := NewStore()
	inv := invoiceCents(provider.Cursor, 5000, 3000)

	s.UpdateSpending(provider.Cursor, inv, map[string]float64{"USD": 1.0}, "USD")

	d := s.SpendingData(provider.Cursor)
	if d == nil {
		t.Fatal("no row after UpdateSpending")
	}
	if d.CurrentSpendingUSD == nil || *d.CurrentSpendingUSD != 80.0 {
		t.Fatalf("CurrentSpendingUSD = %v, want 80.0", d.CurrentSpendingUSD)
	}
	if d.DisplaySpending == nil || *d.DisplaySpending != 80.0 {
		t.Fatalf("DisplaySpending = %v, want 80.0", d.DisplaySpending)
	}
	if d.RatesUnavailable {
		t.Fatal("RatesUnavailable set despite valid rate")
	}
}

func TestUpdateSpendingConvertsToDisplayCurrency(t *testing.T) {
	s := NewStore()
	inv := invoiceCents(provider.Cursor, 5000, 3000)

	s.UpdateSpending(provider.Cursor, inv, map[string]float64{"EUR": 0.9}, "EUR")

	d := s.SpendingData(provider.Cursor)
	if d.DisplaySpending == nil || math.Abs(*d.DisplaySpending-72.0) > 1e-9 {
		t.Fatalf("DisplaySpending = %v, want 72.0", d.DisplaySpending)
	}
	if *d.CurrentSpendingUSD != 80.0 {
		t.Fatalf("CurrentSpendingUSD = %v, want 80.0 regardless of display currency", *d.CurrentSpendingUSD)
	}
}

func TestUpdateSpendingFallsBackWhenRateMissing(t *testing.T) {
	s := NewStore()
	inv := invoiceCents(provider.Claude, 12345)

	s.UpdateSpending(provider.Claude, inv, map[string]float64{}, "EUR")

	d := s.SpendingData(provider.Claude)
	if d.DisplaySpending == nil || *d.DisplaySpending != 123.45 {
		t.Fatalf("DisplaySpending = %v, want USD fallback 123.45", d.DisplaySpending)
	}
	if !d.RatesUnavailable {
		t.Fatal("RatesUnavailable not set after conversion failure")
	}
}

func TestUpdateSpendingEmptyInvoiceIsZero(t *testing.T) {
	s := NewStore()
	s.UpdateSpending(provider.Cursor, invoiceCents(provider.Cursor), nil, "USD")

	d := s.SpendingData(provider.Cursor)
	if d.CurrentSpendingUSD == nil || *d.CurrentSpendingUSD != 0 {
		t.Fatalf("CurrentSpendingUSD = %v, want 0 for empty invoice", d.CurrentSpendingUSD)
	}
}

func TestUpdateLimitsIndependentFallback(t *testing.T) {
	s := NewStore()
	s.UpdateLimits(provider.Cursor, 200, 1000, map[string]float64{"EUR": 0.9}, "EUR")

	d := s.SpendingData(provider.Cursor)
	if d.WarningLimitConverted == nil || math.Abs(*d.WarningLimitConverted-180) > 1e-9 {
		t.Fatalf("WarningLimitConverted = %v, want 180", d.WarningLimitConverted)
	}
	if d.UpperLimitConverted == nil || math.Abs(*d.UpperLimitConverted-900) > 1e-9 {
		t.Fatalf("UpperLimitConverted = %v, want 900", d.UpperLimitConverted)
	}

	s.UpdateLimits(provider.Cursor, 200, 1000, nil, "EUR")
	d = s.SpendingData(provider.Cursor)
	if *d.WarningLimitConverted != 200 || *d.UpperLimitConverted != 1000 {
		t.Fatalf("limits = (%v, %v), want USD fallback (200, 1000)", *d.WarningLimitConverted, *d.UpperLimitConverted)
	}
	if !d.RatesUnavailable {
		t.Fatal("RatesUnavailable not set after limit conversion failure")
	}
}

func TestClearRemovesOnlyThatProvider(t *testing.T) {
	s := NewStore()
	s.UpdateSpending(provider.Cursor, invoiceCents(provider.Cursor, 100), nil, "USD")
	s.UpdateSpending(provider.Claude, invoiceCents(provider.Claude, 200), nil, "USD")

	s.Clear(provider.Cursor)

	if s.SpendingData(provider.Cursor) != nil {
		t.Fatal("cursor row survived Clear")
	}
	if s.SpendingData(provider.Claude) == nil {
		t.Fatal("claude row removed by Clear(cursor)")
	}
}

func TestClearAll(t *testing.T) {
	s := NewStore()
	s.UpdateSpending(provider.Cursor, invoiceCents(provider.Cursor, 100), nil, "USD")
	s.UpdateSpending(provider.Claude, invoiceCents(provider.Claude, 200), nil, "USD")

	s.ClearAll()

	if got := s.ProvidersWithData(); len(got) != 0 {
		t.Fatalf("ProvidersWithData after ClearAll = %v, want empty", got)
	}
	if s.TotalSpendingUSD() != 0 {
		t.Fatalf("TotalSpendingUSD after ClearAll = %v, want 0", s.TotalSpendingUSD())
	}
}

func TestProvidersWithDataSorted(t *testing.T) {
	s := NewStore()
	s.UpdateConnectionStatus(provider.Cursor, connection.Connecting())
	s.UpdateConnectionStatus(provider.Claude, connection.Connecting())

	got := s.ProvidersWithData()
	if len(got) != 2 || got[0] != provider.Claude || got[1] != provider.Cursor {
		t.Fatalf("ProvidersWithData = %v, want [claude cursor]", got)
	}
}

func TestTotalsAcrossProviders(t *testing.T) {
	s := NewStore()
	s.UpdateSpending(provider.Cursor, invoiceCents(provider.Cursor, 5000), nil, "USD")
	s.UpdateSpending(provider.Claude, invoiceCents(provider.Claude, 2500), nil, "USD")
	s.UpdateConnectionStatus(provider.Cursor, connection.Connected())

	if got := s.TotalSpendingUSD(); got != 75.0 {
		t.Fatalf("TotalSpendingUSD = %v, want 75.0", got)
	}

	got := s.TotalSpendingConverted("EUR", map[string]float64{"EUR": 0.9})
	if math.Abs(got-67.5) > 1e-9 {
		t.Fatalf("TotalSpendingConverted = %v, want 67.5", got)
	}

	// No rate: fall back to the USD sum.
	if got := s.TotalSpendingConverted("EUR", nil); got != 75.0 {
		t.Fatalf("TotalSpendingConverted without rates = %v, want 75.0", got)
	}
}

func TestSpendingDataReturnsCopy(t *testing.T) {
	s := NewStore()
	s.UpdateSpending(provider.Cursor, invoiceCents(provider.Cursor, 100), nil, "USD")

	d := s.SpendingData(provider.Cursor)
	d.ConnectionStatus = connection.Error("mutated")

	if got := s.SpendingData(provider.Cursor).ConnectionStatus; got.State == connection.StateError {
		t.Fatal("mutating returned copy leaked into store")
	}
}

func TestMarkRefreshed(t *testing.T) {
	s := NewStore()
	at := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	s.MarkRefreshed(provider.Cursor, at)

	d := s.SpendingData(provider.Cursor)
	if d.LastSuccessfulRefresh == nil || !d.LastSuccessfulRefresh.Equal(at) {
		t.Fatalf("LastSuccessfulRefresh = %v, want %v", d.LastSuccessfulRefresh, at)
	}
}
