// Package notify raises warning and upper-limit spending notifications,
// suppressing repeats until spending drops back under the threshold or a new
// billing session starts.
package notify

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Severity classifies a notification.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// LimitType selects which threshold a reset applies to.
type LimitType int

const (
	LimitWarning LimitType = iota
	LimitUpper
)

// Sink delivers notifications to the host platform. Identifiers are unique
// per notification instance and prefixed by kind for correlation.
type Sink interface {
	Show(title, body, identifier string, severity Severity)
}

// Manager tracks per-session fired flags so each threshold notifies at most
// once per breach. State is not persisted; it is re-derived from current
// spending on the next check after a restart.
type Manager struct {
	mu            sync.Mutex
	sink          Sink
	log           zerolog.Logger
	warningShown  bool
	criticalShown bool
}

// NewManager creates a notification manager emitting to the given sink.
func NewManager(sink Sink, log zerolog.Logger) *Manager {
	return &Manager{sink: sink, log: log}
}

// ShowWarning emits the warning-threshold notification unless it already
// fired this session.
func (m *Manager) ShowWarning(title, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.warningShown {
		return
	}
	m.warningShown = true
	m.sink.Show(title, body, "warning_"+uuid.NewString(), SeverityWarning)
	m.log.Info().Str("kind", "warning").Msg("spending notification shown")
}

// ShowUpperLimit emits the upper-limit notification unless it already fired
// this session.
func (m *Manager) ShowUpperLimit(title, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.criticalShown {
		return
	}
	m.criticalShown = true
	m.sink.Show(title, body, "upper_"+uuid.NewString(), SeverityCritical)
	m.log.Info().Str("kind", "upper").Msg("spending notification shown")
}

// ResetStateIfBelow clears the fired flag for one limit, but only when
// current spending has dropped back under that limit. The other limit's flag
// is untouched.
func (m *Manager) ResetStateIfBelow(limit LimitType, currentSpendingUSD, warningLimitUSD, upperLimitUSD float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch limit {
	case LimitWarning:
		if currentSpendingUSD < warningLimitUSD {
			m.warningShown = false
		}
	case LimitUpper:
		if currentSpendingUSD < upperLimitUSD {
			m.criticalShown = false
		}
	}
}

// ResetAllForNewSession clears both flags unconditionally. Called on login,
// provider switch, or billing-period rollover.
func (m *Manager) ResetAllForNewSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warningShown = false
	m.criticalShown = false
}

// WarningShown reports whether the warning notification fired this session.
func (m *Manager) WarningShown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warningShown
}

// CriticalShown reports whether the upper-limit notification fired this
// session.
func (m *Manager) CriticalShown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.criticalShown
}
