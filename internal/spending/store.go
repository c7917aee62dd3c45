// Package spending holds the in-memory per-provider spending aggregate and
// the cross-provider totals, converting stored USD figures into the selected
// display currency on demand.
package spending

import (
	"sort"
	"sync"
	"time"

	"github.com/vibemeter/vibemeter/internal/connection"
	"github.com/vibemeter/vibemeter/internal/exchange"
	"github.com/vibemeter/vibemeter/internal/provider"
)

// Data is one provider's aggregate row. CurrentSpendingUSD is always derived
// from the latest invoice's total cents; DisplaySpending is that figure in
// the selected display currency, or unchanged USD when no rate is available
// (RatesUnavailable is set so the UI layer can surface an advisory).
type Data struct {
	Provider              provider.Provider
	CurrentSpendingUSD    *float64
	DisplaySpending       *float64
	WarningLimitConverted *float64
	UpperLimitConverted   *float64
	LatestInvoice         *provider.MonthlyInvoice
	Usage                 *provider.UsageData
	ConnectionStatus      connection.Status
	LastSuccessfulRefresh *time.Time
	RatesUnavailable      bool
}

// Store maps providers to their spending rows. A provider key exists iff at
// least one update call has been made for it since the last Clear.
type Store struct {
	mu   sync.RWMutex
	rows map[provider.Provider]*Data
}

// NewStore creates an empty spending store.
func NewStore() *Store {
	return &Store{rows: make(map[provider.Provider]*Data)}
}

func (s *Store) row(p provider.Provider) *Data {
	d, ok := s.rows[p]
	if !ok {
		d = &Data{Provider: p, ConnectionStatus: connection.Disconnected()}
		s.rows[p] = d
	}
	return d
}

// UpdateSpending ingests a new invoice for a provider, deriving the USD
// figure from the invoice total and the display figure via rate conversion.
// Conversion failure silently falls back to the USD value and flags
// RatesUnavailable.
func (s *Store) UpdateSpending(p provider.Provider, invoice provider.MonthlyInvoice, rates map[string]float64, targetCurrency string) {
	usd := float64(invoice.TotalSpendingCents()) / 100

	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.row(p)
	d.LatestInvoice = &invoice
	d.CurrentSpendingUSD = &usd

	display, ok := exchange.ConvertAmount(usd, "USD", targetCurrency, rates)
	if !ok {
		display = usd
	}
	d.DisplaySpending = &display
	d.RatesUnavailable = !ok
}

// UpdateLimits converts the USD warning and upper limits to the display
// currency, each falling back to its USD value independently.
func (s *Store) UpdateLimits(p provider.Provider, warningUSD, upperUSD float64, rates map[string]float64, targetCurrency string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.row(p)

	warning, warnOK := exchange.ConvertAmount(warningUSD, "USD", targetCurrency, rates)
	if !warnOK {
		warning = warningUSD
	}
	upper, upperOK := exchange.ConvertAmount(upperUSD, "USD", targetCurrency, rates)
	if !upperOK {
		upper = upperUSD
	}

	d.WarningLimitConverted = &warning
	d.UpperLimitConverted = &upper
	if !warnOK || !upperOK {
		d.RatesUnavailable = true
	}
}

// UpdateUsage replaces the provider's usage record wholesale.
func (s *Store) UpdateUsage(p provider.Provider, usage provider.UsageData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.row(p).Usage = &usage
}

// UpdateConnectionStatus replaces the provider's connection status, creating
// the row if absent.
func (s *Store) UpdateConnectionStatus(p provider.Provider, status connection.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.row(p).ConnectionStatus = status
}

// MarkRefreshed records the time of a fully successful refresh.
func (s *Store) MarkRefreshed(p provider.Provider, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.row(p).LastSuccessfulRefresh = &at
}

// Clear removes the provider's row entirely.
func (s *Store) Clear(p provider.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, p)
}

// ClearAll removes every row (full logout).
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make(map[provider.Provider]*Data)
}

// SpendingData returns a copy of the provider's row, or nil when absent.
func (s *Store) SpendingData(p provider.Provider) *Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.rows[p]
	if !ok {
		return nil
	}
	copied := *d
	return &copied
}

// ProvidersWithData returns providers that currently have a row, sorted by
// identifier for deterministic iteration.
func (s *Store) ProvidersWithData() []provider.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ps := make([]provider.Provider, 0, len(s.rows))
	for p := range s.rows {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
	return ps
}

// TotalSpendingUSD sums every provider's USD spending. Providers with no
// spending contribute zero.
func (s *Store) TotalSpendingUSD() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0.0
	for _, d := range s.rows {
		if d.CurrentSpendingUSD != nil {
			total += *d.CurrentSpendingUSD
		}
	}
	return total
}

// TotalSpendingConverted sums USD spending across providers and converts the
// sum to the target currency, falling back to the USD sum when no rate is
// available.
func (s *Store) TotalSpendingConverted(targetCurrency string, rates map[string]float64) float64 {
	total := s.TotalSpendingUSD()
	converted, ok := exchange.ConvertAmount(total, "USD", targetCurrency, rates)
	if !ok {
		return total
	}
	return converted
}
