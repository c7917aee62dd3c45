package daemon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibemeter/vibemeter/internal/connection"
	"github.com/vibemeter/vibemeter/internal/exchange"
	"github.com/vibemeter/vibemeter/internal/notify"
	"github.com/vibemeter/vibemeter/internal/provider"
)

// memTokens is an in-memory settings.TokenStore.
type memTokens map[provider.Provider]string

func (m memTokens) SaveToken(p provider.Provider, token string) bool {
	m[p] = token
	return true
}

func (m memTokens) Token(p provider.Provider) (string, bool) {
	t, ok := m[p]
	return t, ok
}

func (m memTokens) DeleteToken(p provider.Provider) bool {
	delete(m, p)
	return true
}

func (m memTokens) HasToken(p provider.Provider) bool {
	_, ok := m[p]
	return ok
}

// memRateCache pins the exchange service to a fresh cache so polls never
// touch the network.
type memRateCache struct {
	rates map[string]float64
}

func (c *memRateCache) SaveRates(rates map[string]float64, _ time.Time) error {
	c.rates = rates
	return nil
}

func (c *memRateCache) LoadRates() (map[string]float64, time.Time, bool) {
	return c.rates, time.Now(), true
}

// stubClient answers every fetch from canned values.
type stubClient struct {
	user    provider.UserInfo
	userErr error
	invoice provider.MonthlyInvoice
	usage   provider.UsageData
}

func (c *stubClient) FetchUserInfo(ctx context.Context, token string) (provider.UserInfo, error) {
	return c.user, c.userErr
}

func (c *stubClient) FetchTeamInfo(ctx context.Context, token string) (provider.TeamInfo, error) {
	if c.userErr != nil {
		return provider.TeamInfo{}, c.userErr
	}
	return provider.TeamInfo{ID: 1, Name: "Team"}, nil
}

func (c *stubClient) FetchMonthlyInvoice(ctx context.Context, token string, month, year int, teamID *int) (provider.MonthlyInvoice, error) {
	if c.userErr != nil {
		return provider.MonthlyInvoice{}, c.userErr
	}
	return c.invoice, nil
}

func (c *stubClient) FetchUsageData(ctx context.Context, token string) (provider.UsageData, error) {
	if c.userErr != nil {
		return provider.UsageData{}, c.userErr
	}
	return c.usage, nil
}

func (c *stubClient) ValidateToken(ctx context.Context, token string) bool {
	return c.userErr == nil
}

type recordingSink struct {
	shown []string
}

func (r *recordingSink) Show(title, _, _ string, _ notify.Severity) {
	r.shown = append(r.shown, title)
}

func newTestService(t *testing.T, cfg Config, clients map[provider.Provider]provider.Client, sink notify.Sink) *Service {
	t.Helper()

	rates := exchange.NewService(
		&memRateCache{rates: map[string]float64{"USD": 1.0, "EUR": 0.9}},
		zerolog.Nop(),
	)

	tokens := memTokens{}
	for p := range clients {
		tokens[p] = "tok-" + p.String()
	}

	var notif *notify.Manager
	if sink != nil {
		notif = notify.NewManager(sink, zerolog.Nop())
	}

	return New(cfg, clients, tokens, rates, notif, zerolog.Nop())
}

func TestPollNowBuildsSnapshot(t *testing.T) {
	client := &stubClient{
		user: provider.UserInfo{Email: "dev@example.com"},
		invoice: provider.MonthlyInvoice{
			Items:    []provider.InvoiceItem{{Cents: 5000}, {Cents: 3000}},
			Provider: provider.Cursor,
		},
		usage: provider.UsageData{CurrentRequests: 10, MaxRequests: 500},
	}

	svc := newTestService(t,
		Config{DisplayCurrency: "EUR", WarningLimitUSD: 200, UpperLimitUSD: 1000},
		map[provider.Provider]provider.Client{provider.Cursor: client},
		nil)

	snap := svc.PollNow(context.Background())
	if snap.TotalUSD != 80.0 {
		t.Fatalf("TotalUSD = %v, want 80.0", snap.TotalUSD)
	}
	if snap.TotalDisplay != 72.0 {
		t.Fatalf("TotalDisplay = %v, want 72.0 at EUR 0.9", snap.TotalDisplay)
	}
	if snap.Currency != "EUR" {
		t.Fatalf("Currency = %q", snap.Currency)
	}
	if snap.RatesUnavailable {
		t.Fatal("RatesUnavailable set despite cached rates")
	}
	if len(snap.Providers) != 1 {
		t.Fatalf("providers = %+v", snap.Providers)
	}
	row := snap.Providers[0]
	if row.Status != "connected" {
		t.Fatalf("status = %q, want connected", row.Status)
	}
	if row.SpendingUSD == nil || *row.SpendingUSD != 80.0 {
		t.Fatalf("SpendingUSD = %v", row.SpendingUSD)
	}
	if row.LastRefresh == nil {
		t.Fatal("LastRefresh not set after successful poll")
	}
}

func TestPollNowSkipsProvidersWithoutTokens(t *testing.T) {
	client := &stubClient{user: provider.UserInfo{Email: "dev@example.com"}}
	svc := newTestService(t, Config{},
		map[provider.Provider]provider.Client{provider.Cursor: client}, nil)
	svc.tokens = memTokens{} // no tokens stored

	snap := svc.PollNow(context.Background())
	if snap.TotalUSD != 0 {
		t.Fatalf("TotalUSD = %v, want 0 when skipped", snap.TotalUSD)
	}
	if got := svc.Tracker().Get(provider.Cursor); got.State != connection.StateDisconnected {
		t.Fatalf("state = %v, want disconnected without token", got.State)
	}
}

func TestPollNowMapsRefreshErrors(t *testing.T) {
	client := &stubClient{userErr: provider.ErrUnauthorized}
	svc := newTestService(t, Config{},
		map[provider.Provider]provider.Client{provider.Claude: client}, nil)

	snap := svc.PollNow(context.Background())
	if len(snap.Providers) != 1 {
		t.Fatalf("providers = %+v", snap.Providers)
	}
	row := snap.Providers[0]
	if row.Status != "error" || row.StatusMessage != "Authentication failed" {
		t.Fatalf("row = %+v, want auth-failed error status", row)
	}
}

func TestStatusForError(t *testing.T) {
	until := time.Now().Add(time.Minute)
	rateErr := &provider.RateLimitError{Provider: provider.Cursor, Until: &until}
	if got := statusForError(rateErr); got.State != connection.StateRateLimited || got.RetryAfter == nil {
		t.Fatalf("statusForError(rate limit) = %+v", got)
	}

	if got := statusForError(provider.ErrUnauthorized); got.Message != "Authentication failed" {
		t.Fatalf("statusForError(unauthorized) = %+v", got)
	}

	plain := errors.New("boom")
	if got := statusForError(plain); got.State != connection.StateError || got.Message != "boom" {
		t.Fatalf("statusForError(other) = %+v", got)
	}
}

func TestNotificationsFireOncePerBreach(t *testing.T) {
	client := &stubClient{
		user: provider.UserInfo{Email: "dev@example.com"},
		invoice: provider.MonthlyInvoice{
			Items: []provider.InvoiceItem{{Cents: 25_000}}, // $250, over warning
		},
	}
	sink := &recordingSink{}
	svc := newTestService(t,
		Config{WarningLimitUSD: 200, UpperLimitUSD: 1000},
		map[provider.Provider]provider.Client{provider.Cursor: client},
		sink)

	svc.PollNow(context.Background())
	svc.PollNow(context.Background())

	if len(sink.shown) != 1 {
		t.Fatalf("notifications shown = %v, want one warning across repeated polls", sink.shown)
	}
}

func TestUpperLimitTakesPrecedenceOverWarning(t *testing.T) {
	client := &stubClient{
		user: provider.UserInfo{Email: "dev@example.com"},
		invoice: provider.MonthlyInvoice{
			Items: []provider.InvoiceItem{{Cents: 120_000}}, // $1200, over both
		},
	}
	sink := &recordingSink{}
	svc := newTestService(t,
		Config{WarningLimitUSD: 200, UpperLimitUSD: 1000},
		map[provider.Provider]provider.Client{provider.Cursor: client},
		sink)

	svc.PollNow(context.Background())

	if len(sink.shown) != 1 || sink.shown[0] != "Spending limit reached" {
		t.Fatalf("notifications = %v, want single upper-limit notification", sink.shown)
	}
}

func TestNetworkLossFlipsAllProviders(t *testing.T) {
	healthy := &stubClient{
		user:    provider.UserInfo{Email: "dev@example.com"},
		invoice: provider.MonthlyInvoice{Items: []provider.InvoiceItem{{Cents: 100}}},
	}
	svc := newTestService(t, Config{},
		map[provider.Provider]provider.Client{provider.Cursor: healthy, provider.Claude: healthy},
		nil)

	svc.PollNow(context.Background())
	for _, p := range provider.All() {
		if got := svc.Tracker().Get(p); got.State != connection.StateConnected {
			t.Fatalf("%s = %v before outage, want connected", p, got.State)
		}
	}

	// Every provider now fails at the transport level.
	transport := &provider.NetworkError{Message: "dial tcp: connection refused"}
	healthy.userErr = transport

	svc.PollNow(context.Background())
	for _, p := range provider.All() {
		got := svc.Tracker().Get(p)
		if got.State != connection.StateError {
			t.Fatalf("%s = %v during outage, want error", p, got.State)
		}
	}

	// Recovery clears the down flag and schedules a refresh.
	healthy.userErr = nil
	svc.PollNow(context.Background())

	svc.mu.RLock()
	down := svc.netDown
	svc.mu.RUnlock()
	if down {
		t.Fatal("netDown still set after a successful poll")
	}
}

func TestPublishEventRingBuffer(t *testing.T) {
	svc := newTestService(t, Config{EventsBuffer: 3}, nil, nil)

	for i := 1; i <= 5; i++ {
		svc.publishEvent(Event{ID: int64(i), Type: "snapshot", Timestamp: time.Now()})
	}

	svc.mu.RLock()
	defer svc.mu.RUnlock()
	if len(svc.events) != 3 {
		t.Fatalf("buffer length = %d, want 3", len(svc.events))
	}
	if svc.events[0].ID != 3 || svc.events[2].ID != 5 {
		t.Fatalf("buffer ids = %d..%d, want oldest dropped", svc.events[0].ID, svc.events[2].ID)
	}
}

func TestSnapshotsEqualIgnoresTimestamp(t *testing.T) {
	a := Snapshot{At: time.Now(), Currency: "USD", TotalUSD: 10}
	b := Snapshot{At: time.Now().Add(time.Hour), Currency: "USD", TotalUSD: 10}
	if !snapshotsEqual(a, b) {
		t.Fatal("snapshots differing only in At reported unequal")
	}

	b.TotalUSD = 11
	if snapshotsEqual(a, b) {
		t.Fatal("snapshots with different totals reported equal")
	}
}

func TestRepeatedIdenticalPollsPublishOnce(t *testing.T) {
	client := &stubClient{
		user:    provider.UserInfo{Email: "dev@example.com"},
		invoice: provider.MonthlyInvoice{Items: []provider.InvoiceItem{{Cents: 100}}},
	}
	svc := newTestService(t, Config{},
		map[provider.Provider]provider.Client{provider.Cursor: client}, nil)

	svc.PollNow(context.Background())
	svc.PollNow(context.Background())

	svc.mu.RLock()
	defer svc.mu.RUnlock()
	// LastRefresh advances between polls, so at most two events; the point is
	// the second unchanged render does not duplicate the first.
	if len(svc.events) == 0 {
		t.Fatal("no events published")
	}
	for i := 1; i < len(svc.events); i++ {
		if snapshotsEqual(svc.events[i-1].Snapshot, svc.events[i].Snapshot) {
			t.Fatal("identical consecutive snapshots both published")
		}
	}
}

func TestRequestRefreshDoesNotBlock(t *testing.T) {
	svc := newTestService(t, Config{}, nil, nil)
	// Channel capacity is one; further requests must coalesce, not block.
	svc.RequestRefresh()
	svc.RequestRefresh()
	svc.RequestRefresh()
}
