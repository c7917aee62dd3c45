package connection

import (
	"sync"
	"time"

	"github.com/vibemeter/vibemeter/internal/provider"
)

// networkLostMessage is the generic message applied on connectivity loss.
// Providers already in an error state keep their more specific message.
const networkLostMessage = "No internet connection"

// Tracker holds the connection status of every provider. All transitions go
// through Set so observers see a consistent sequence.
type Tracker struct {
	mu          sync.RWMutex
	statuses    map[provider.Provider]Status
	lastRefresh map[provider.Provider]time.Time
	onChange    func(provider.Provider, Status)
	now         func() time.Time
}

// NewTracker creates an empty tracker; unknown providers read as disconnected.
func NewTracker() *Tracker {
	return &Tracker{
		statuses:    make(map[provider.Provider]Status),
		lastRefresh: make(map[provider.Provider]time.Time),
		now:         time.Now,
	}
}

// SetOnChange registers a callback invoked after every status transition.
// The callback runs outside the tracker lock.
func (t *Tracker) SetOnChange(fn func(provider.Provider, Status)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// Set transitions a provider to the given status.
func (t *Tracker) Set(p provider.Provider, status Status) {
	t.mu.Lock()
	prev, had := t.statuses[p]
	t.statuses[p] = status
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil && (!had || prev != status) {
		fn(p, status)
	}
}

// Get returns the provider's current status, disconnected when never set.
func (t *Tracker) Get(p provider.Provider) Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.statuses[p]; ok {
		return s
	}
	return Disconnected()
}

// MarkRefreshed records a successful refresh time used by the staleness check.
func (t *Tracker) MarkRefreshed(p provider.Provider, at time.Time) {
	t.mu.Lock()
	t.lastRefresh[p] = at
	t.mu.Unlock()
}

// LastRefresh returns the time of the provider's last successful refresh.
func (t *Tracker) LastRefresh(p provider.Provider) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	at, ok := t.lastRefresh[p]
	return at, ok
}

// CheckStaleness moves connected or syncing providers to stale when their
// last successful refresh is older than threshold. Called periodically, not
// event-driven.
func (t *Tracker) CheckStaleness(threshold time.Duration) {
	t.mu.Lock()
	var flipped []provider.Provider
	for p, s := range t.statuses {
		if !s.inFlight() {
			continue
		}
		last, ok := t.lastRefresh[p]
		if !ok || t.now().Sub(last) > threshold {
			t.statuses[p] = Stale()
			flipped = append(flipped, p)
		}
	}
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil {
		for _, p := range flipped {
			fn(p, Stale())
		}
	}
}

// HandleNetworkLost moves connected and syncing providers to a generic
// connectivity error. Providers already in error keep their message.
func (t *Tracker) HandleNetworkLost() {
	t.mu.Lock()
	var flipped []provider.Provider
	for p, s := range t.statuses {
		if s.inFlight() {
			t.statuses[p] = Error(networkLostMessage)
			flipped = append(flipped, p)
		}
	}
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil {
		for _, p := range flipped {
			fn(p, Error(networkLostMessage))
		}
	}
}

// HandleNetworkRestored triggers refreshAll when any provider is in error or
// stale state. Healthy providers need nothing.
func (t *Tracker) HandleNetworkRestored(refreshAll func()) {
	t.mu.RLock()
	needsRefresh := false
	for _, s := range t.statuses {
		if s.State == StateError || s.State == StateStale {
			needsRefresh = true
			break
		}
	}
	t.mu.RUnlock()

	if needsRefresh && refreshAll != nil {
		refreshAll()
	}
}
