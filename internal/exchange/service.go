// Package exchange fetches and caches USD-based exchange rates and performs
// cross-currency conversion through the USD pivot.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://api.frankfurter.app"
	requestTimeout = 30 * time.Second
	maxBodySize    = 1 << 20 // 1 MB
	cacheValidity  = 24 * time.Hour
)

// CacheStore persists the rate cache between runs. The settings package
// provides the SQLite-backed production implementation.
type CacheStore interface {
	SaveRates(rates map[string]float64, fetchedAt time.Time) error
	LoadRates() (rates map[string]float64, fetchedAt time.Time, ok bool)
}

// ratesResponse is the wire shape of the rate API.
type ratesResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// Service serves USD-based exchange rates, preferring a fresh cache, then the
// network, then the hardcoded fallback table. Rates never raises an error;
// absence of data is represented by fallback rates.
type Service struct {
	baseURL string
	http    *http.Client
	cache   CacheStore
	log     zerolog.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithBaseURL overrides the rate API endpoint.
func WithBaseURL(url string) Option {
	return func(s *Service) {
		if url != "" {
			s.baseURL = url
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.http = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an exchange rate service backed by the given cache store.
// A nil cache disables persistence; every miss goes to the network.
func NewService(cache CacheStore, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		baseURL: defaultBaseURL,
		http:    &http.Client{},
		cache:   cache,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rates returns the current USD-based rate map. Cache entries younger than
// 24h are served as-is; otherwise a fetch is attempted and, failing that, the
// hardcoded fallback table is returned. Concurrent callers during a cache-miss
// window may each trigger a fetch; the last write wins.
func (s *Service) Rates(ctx context.Context) map[string]float64 {
	if cached, ok := s.cachedRates(); ok {
		return cached
	}

	rates, err := s.fetch(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("rate fetch failed, using fallback table")
		return FallbackRates()
	}

	rates["USD"] = 1.0
	if s.cache != nil {
		if err := s.cache.SaveRates(rates, s.now()); err != nil {
			s.log.Warn().Err(err).Msg("persisting rate cache failed")
		}
	}
	return rates
}

func (s *Service) cachedRates() (map[string]float64, bool) {
	if s.cache == nil {
		return nil, false
	}
	rates, fetchedAt, ok := s.cache.LoadRates()
	if !ok || len(rates) == 0 {
		return nil, false
	}
	if s.now().Sub(fetchedAt) >= cacheValidity {
		return nil, false
	}
	return rates, true
}

func (s *Service) fetch(ctx context.Context) (map[string]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := s.baseURL + "/latest?from=USD"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("exchange: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("exchange: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("exchange: reading response: %w", err)
	}

	var parsed ratesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("exchange: parsing rates: %w", err)
	}

	// A decoded response with a nil rates field is structural garbage; an
	// empty-but-present map is a legitimate zero-entry answer.
	if parsed.Rates == nil {
		return nil, fmt.Errorf("exchange: response missing rates field")
	}

	out := make(map[string]float64, len(parsed.Rates)+1)
	for code, rate := range parsed.Rates {
		out[code] = rate
	}
	return out, nil
}

// ConvertAmount converts amount between two currencies using USD as the
// pivot. Same-currency conversion is the identity regardless of the rate map.
// USD is implicitly 1.0 even when absent. Returns ok=false for zero,
// negative, or missing rates on either side; callers treat that as
// "conversion unavailable" and fall back to the USD figure.
func ConvertAmount(amount float64, from, to string, rates map[string]float64) (float64, bool) {
	if from == to {
		return amount, true
	}

	fromRate, ok := lookupRate(from, rates)
	if !ok || fromRate <= 0 {
		return 0, false
	}
	toRate, ok := lookupRate(to, rates)
	if !ok || toRate <= 0 {
		return 0, false
	}

	usd := amount / fromRate
	return usd * toRate, true
}

func lookupRate(code string, rates map[string]float64) (float64, bool) {
	if r, ok := rates[code]; ok {
		return r, true
	}
	if code == "USD" {
		return 1.0, true
	}
	return 0, false
}
