// Package daemon provides the long-running background refresh service and
// its local HTTP/SSE API.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibemeter/vibemeter/internal/connection"
	"github.com/vibemeter/vibemeter/internal/exchange"
	"github.com/vibemeter/vibemeter/internal/notify"
	"github.com/vibemeter/vibemeter/internal/processor"
	"github.com/vibemeter/vibemeter/internal/provider"
	"github.com/vibemeter/vibemeter/internal/settings"
	"github.com/vibemeter/vibemeter/internal/spending"
)

// Config controls the daemon runtime behavior.
type Config struct {
	Addr               string
	Interval           time.Duration
	StalenessThreshold time.Duration
	DisplayCurrency    string
	WarningLimitUSD    float64
	UpperLimitUSD      float64
	EventsBuffer       int
}

// ProviderSnapshot is one provider's row in a status snapshot.
type ProviderSnapshot struct {
	Provider        provider.Provider `json:"provider"`
	SpendingUSD     *float64          `json:"spending_usd"`
	DisplaySpending *float64          `json:"display_spending"`
	Status          string            `json:"status"`
	StatusMessage   string            `json:"status_message,omitempty"`
	LastRefresh     *time.Time        `json:"last_refresh,omitempty"`
}

// Snapshot is the aggregate usage state served at /v1/status and embedded in
// events.
type Snapshot struct {
	At               time.Time          `json:"at"`
	Currency         string             `json:"currency"`
	TotalUSD         float64            `json:"total_usd"`
	TotalDisplay     float64            `json:"total_display"`
	RatesUnavailable bool               `json:"rates_unavailable"`
	Providers        []ProviderSnapshot `json:"providers"`
}

// Event is emitted whenever the aggregate snapshot changes.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  Snapshot  `json:"snapshot"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	LastPollAt      time.Time `json:"last_poll_at"`
	PollIntervalSec int       `json:"poll_interval_sec"`
	PollCount       int64     `json:"poll_count"`
	Summary         Snapshot  `json:"summary"`
	LastError       string    `json:"last_error,omitempty"`
	EventCount      int       `json:"event_count"`
	SubscriberCount int       `json:"subscriber_count"`
}

// Service runs the refresh loop and HTTP API.
type Service struct {
	cfg     Config
	log     zerolog.Logger
	clients map[provider.Provider]provider.Client
	tokens  settings.TokenStore
	rates   *exchange.Service
	store   *spending.Store
	tracker *connection.Tracker
	proc    *processor.Processor
	notif   *notify.Manager

	refreshKick chan struct{}

	mu          sync.RWMutex
	startedAt   time.Time
	lastPollAt  time.Time
	pollCount   int64
	lastError   string
	hasSnapshot bool
	snapshot    Snapshot
	netDown     bool
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// New wires a daemon service from its collaborators.
func New(
	cfg Config,
	clients map[provider.Provider]provider.Client,
	tokens settings.TokenStore,
	rates *exchange.Service,
	notif *notify.Manager,
	log zerolog.Logger,
) *Service {
	if cfg.Interval < 30*time.Second {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.StalenessThreshold <= 0 {
		cfg.StalenessThreshold = 30 * time.Minute
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8793"
	}
	if cfg.DisplayCurrency == "" {
		cfg.DisplayCurrency = "USD"
	}

	s := &Service{
		cfg:         cfg,
		log:         log,
		clients:     clients,
		tokens:      tokens,
		rates:       rates,
		store:       spending.NewStore(),
		tracker:     connection.NewTracker(),
		proc:        processor.New(log),
		notif:       notif,
		refreshKick: make(chan struct{}, 1),
		startedAt:   time.Now(),
		subs:        make(map[int]chan Event),
	}

	// Mirror every status transition into the spending store so snapshots
	// read one source.
	s.tracker.SetOnChange(func(p provider.Provider, status connection.Status) {
		s.store.UpdateConnectionStatus(p, status)
	})

	return s
}

// Store exposes the spending store for the status command and tests.
func (s *Service) Store() *spending.Store { return s.store }

// Tracker exposes the connection tracker for tests.
func (s *Service) Tracker() *connection.Tracker { return s.tracker }

// Run starts HTTP endpoints and the refresh loop until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/stream", s.handleStream)

	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Seed an initial poll so status is useful immediately.
	s.pollOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	staleTicker := time.NewTicker(time.Minute)
	defer staleTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.pollOnce(ctx)
		case <-s.refreshKick:
			s.pollOnce(ctx)
		case <-staleTicker.C:
			s.tracker.CheckStaleness(s.cfg.StalenessThreshold)
			s.publishIfChanged()
		case err := <-errCh:
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

// PollNow refreshes every provider synchronously and returns the resulting
// snapshot. Used by the one-shot status command and the watch view, which
// run the service without its HTTP loop.
func (s *Service) PollNow(ctx context.Context) Snapshot {
	s.pollOnce(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// RequestRefresh schedules an immediate poll without waiting for the ticker.
func (s *Service) RequestRefresh() {
	select {
	case s.refreshKick <- struct{}{}:
	default:
	}
}

// pollOnce refreshes every enabled provider. Providers run in independent
// goroutines so a slow provider cannot delay the others.
func (s *Service) pollOnce(ctx context.Context) {
	rates := s.rates.Rates(ctx)

	var wg sync.WaitGroup
	outcomes := make([]refreshOutcome, 0, len(s.clients))
	var outcomeMu sync.Mutex

	for p, client := range s.clients {
		wg.Add(1)
		go func(p provider.Provider, client provider.Client) {
			defer wg.Done()
			outcome := s.refreshProvider(ctx, p, client, rates)
			outcomeMu.Lock()
			outcomes = append(outcomes, outcome)
			outcomeMu.Unlock()
		}(p, client)
	}
	wg.Wait()

	s.trackConnectivity(outcomes)
	s.evaluateNotifications()

	now := time.Now()
	s.mu.Lock()
	s.lastPollAt = now
	s.pollCount++
	s.lastError = firstError(outcomes)
	s.mu.Unlock()

	s.publishIfChanged()
}

type refreshOutcome struct {
	provider   provider.Provider
	err        error
	networkErr bool
	skipped    bool
}

func (s *Service) refreshProvider(ctx context.Context, p provider.Provider, client provider.Client, rates map[string]float64) refreshOutcome {
	token, ok := s.tokens.Token(p)
	if !ok {
		s.tracker.Set(p, connection.Disconnected())
		return refreshOutcome{provider: p, skipped: true}
	}

	// First connection attempt goes through connecting; refreshes are syncing.
	if s.tracker.Get(p).State == connection.StateConnected {
		s.tracker.Set(p, connection.Syncing())
	} else {
		s.tracker.Set(p, connection.Connecting())
	}

	result, err := s.proc.Refresh(ctx, p, client, token)
	if err != nil {
		s.tracker.Set(p, statusForError(err))
		s.log.Warn().Str("provider", p.String()).Err(err).Msg("refresh failed")
		var netErr *provider.NetworkError
		return refreshOutcome{provider: p, err: err, networkErr: errors.As(err, &netErr) && netErr.StatusCode == 0}
	}

	if result.Invoice != nil {
		s.store.UpdateSpending(p, *result.Invoice, rates, s.cfg.DisplayCurrency)
	}
	if result.Usage != nil {
		s.store.UpdateUsage(p, *result.Usage)
	}
	s.store.UpdateLimits(p, s.cfg.WarningLimitUSD, s.cfg.UpperLimitUSD, rates, s.cfg.DisplayCurrency)

	now := time.Now()
	s.store.MarkRefreshed(p, now)
	s.tracker.MarkRefreshed(p, now)
	s.tracker.Set(p, connection.Connected())

	return refreshOutcome{provider: p}
}

// statusForError maps a refresh failure onto the connection state machine.
func statusForError(err error) connection.Status {
	var rateErr *provider.RateLimitError
	if errors.As(err, &rateErr) {
		return connection.RateLimited(rateErr.Until)
	}
	if errors.Is(err, provider.ErrUnauthorized) {
		return connection.Error("Authentication failed")
	}
	return connection.Error(err.Error())
}

// trackConnectivity treats "every attempted provider failed at the transport
// level" as network loss, and the first recovery after that as restoration.
func (s *Service) trackConnectivity(outcomes []refreshOutcome) {
	attempted, networkFailed, succeeded := 0, 0, 0
	for _, o := range outcomes {
		if o.skipped {
			continue
		}
		attempted++
		if o.networkErr {
			networkFailed++
		}
		if o.err == nil {
			succeeded++
		}
	}
	if attempted == 0 {
		return
	}

	s.mu.Lock()
	wasDown := s.netDown
	if networkFailed == attempted {
		s.netDown = true
	} else if succeeded > 0 {
		s.netDown = false
	}
	isDown := s.netDown
	s.mu.Unlock()

	if isDown && !wasDown {
		s.tracker.HandleNetworkLost()
	}
	if !isDown && wasDown {
		s.tracker.HandleNetworkRestored(s.RequestRefresh)
	}
}

// evaluateNotifications compares total USD spend against the configured
// limits, firing each threshold at most once per breach.
func (s *Service) evaluateNotifications() {
	if s.notif == nil {
		return
	}

	total := s.store.TotalSpendingUSD()
	warning := s.cfg.WarningLimitUSD
	upper := s.cfg.UpperLimitUSD

	s.notif.ResetStateIfBelow(notify.LimitWarning, total, warning, upper)
	s.notif.ResetStateIfBelow(notify.LimitUpper, total, warning, upper)

	if upper > 0 && total >= upper {
		s.notif.ShowUpperLimit(
			"Spending limit reached",
			fmt.Sprintf("Total AI spending is $%.2f, over your $%.2f limit", total, upper),
		)
	} else if warning > 0 && total >= warning {
		s.notif.ShowWarning(
			"Spending warning",
			fmt.Sprintf("Total AI spending is $%.2f, over your $%.2f warning threshold", total, warning),
		)
	}
}

// buildSnapshot renders the store into the wire snapshot. The short-deadline
// rate lookup hits the exchange service's cache/fallback chain without
// stalling snapshot rendering on a slow network.
func (s *Service) buildSnapshot(at time.Time) Snapshot {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rates := s.rates.Rates(ctx)

	snap := Snapshot{
		At:       at,
		Currency: s.cfg.DisplayCurrency,
		TotalUSD: s.store.TotalSpendingUSD(),
	}
	snap.TotalDisplay = s.store.TotalSpendingConverted(s.cfg.DisplayCurrency, rates)

	for _, p := range s.store.ProvidersWithData() {
		d := s.store.SpendingData(p)
		if d == nil {
			continue
		}
		if d.RatesUnavailable {
			snap.RatesUnavailable = true
		}
		snap.Providers = append(snap.Providers, ProviderSnapshot{
			Provider:        p,
			SpendingUSD:     d.CurrentSpendingUSD,
			DisplaySpending: d.DisplaySpending,
			Status:          d.ConnectionStatus.State.String(),
			StatusMessage:   d.ConnectionStatus.Message,
			LastRefresh:     d.LastSuccessfulRefresh,
		})
	}
	return snap
}

func (s *Service) publishIfChanged() {
	now := time.Now()
	snap := s.buildSnapshot(now)

	var (
		ev      Event
		publish bool
	)

	s.mu.Lock()
	if !s.hasSnapshot || !snapshotsEqual(s.snapshot, snap) {
		s.hasSnapshot = true
		s.snapshot = snap
		s.nextEventID++
		ev = Event{ID: s.nextEventID, Type: "snapshot", Timestamp: now, Snapshot: snap}
		publish = true
	}
	s.mu.Unlock()

	if publish {
		s.publishEvent(ev)
	}
}

// snapshotsEqual ignores the At timestamp so unchanged polls stay quiet.
func snapshotsEqual(a, b Snapshot) bool {
	a.At, b.At = time.Time{}, time.Time{}
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return string(aj) == string(bj)
}

func firstError(outcomes []refreshOutcome) string {
	for _, o := range outcomes {
		if o.err != nil {
			return o.err.Error()
		}
	}
	return ""
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		LastPollAt:      s.lastPollAt,
		PollIntervalSec: int(s.cfg.Interval.Seconds()),
		PollCount:       s.pollCount,
		Summary:         s.snapshot,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshotStatus())
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	// Send current snapshot immediately.
	current := Event{
		Type:      "snapshot",
		Timestamp: time.Now(),
		Snapshot:  s.snapshotStatus().Summary,
	}
	writeSSE(w, current)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
