package notify

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type recordingSink struct {
	shown []shownNotification
}

type shownNotification struct {
	title      string
	body       string
	identifier string
	severity   Severity
}

func (r *recordingSink) Show(title, body, identifier string, severity Severity) {
	r.shown = append(r.shown, shownNotification{title, body, identifier, severity})
}

func TestWarningShowsOncePerSession(t *testing.T) {
	sink := &recordingSink{}
	m := NewManager(sink, zerolog.Nop())

	m.ShowWarning("Spending alert", "over warning limit")
	m.ShowWarning("Spending alert", "over warning limit")

	if len(sink.shown) != 1 {
		t.Fatalf("warning shown %d times, want 1", len(sink.shown))
	}
	got := sink.shown[0]
	if got.severity != SeverityWarning {
		t.Fatalf("severity = %q, want warning", got.severity)
	}
	if !strings.HasPrefix(got.identifier, "warning_") {
		t.Fatalf("identifier = %q, want warning_ prefix", got.identifier)
	}
	if !m.WarningShown() {
		t.Fatal("WarningShown = false after showing")
	}
}

func TestUpperLimitShowsOncePerSession(t *testing.T) {
	sink := &recordingSink{}
	m := NewManager(sink, zerolog.Nop())

	m.ShowUpperLimit("Limit reached", "over upper limit")
	m.ShowUpperLimit("Limit reached", "over upper limit")

	if len(sink.shown) != 1 {
		t.Fatalf("upper-limit shown %d times, want 1", len(sink.shown))
	}
	got := sink.shown[0]
	if got.severity != SeverityCritical {
		t.Fatalf("severity = %q, want critical", got.severity)
	}
	if !strings.HasPrefix(got.identifier, "upper_") {
		t.Fatalf("identifier = %q, want upper_ prefix", got.identifier)
	}
}

func TestLimitsTrackedIndependently(t *testing.T) {
	sink := &recordingSink{}
	m := NewManager(sink, zerolog.Nop())

	m.ShowWarning("w", "b")
	m.ShowUpperLimit("u", "b")

	if len(sink.shown) != 2 {
		t.Fatalf("shown %d notifications, want 2 (one per limit)", len(sink.shown))
	}
}

func TestResetStateIfBelowRearmsOnlyUnderLimit(t *testing.T) {
	sink := &recordingSink{}
	m := NewManager(sink, zerolog.Nop())

	m.ShowWarning("w", "b")

	// Still at the limit: strictly-below comparison keeps the flag set.
	m.ResetStateIfBelow(LimitWarning, 200, 200, 1000)
	m.ShowWarning("w", "b")
	if len(sink.shown) != 1 {
		t.Fatalf("warning re-fired at exactly the limit, shown %d times", len(sink.shown))
	}

	// Dropped below: flag clears and the next breach notifies again.
	m.ResetStateIfBelow(LimitWarning, 150, 200, 1000)
	m.ShowWarning("w", "b")
	if len(sink.shown) != 2 {
		t.Fatalf("warning not re-armed after dropping below limit, shown %d times", len(sink.shown))
	}
}

func TestResetStateIfBelowLeavesOtherLimitAlone(t *testing.T) {
	sink := &recordingSink{}
	m := NewManager(sink, zerolog.Nop())

	m.ShowWarning("w", "b")
	m.ShowUpperLimit("u", "b")

	m.ResetStateIfBelow(LimitWarning, 50, 200, 1000)

	if m.WarningShown() {
		t.Fatal("warning flag not cleared")
	}
	if !m.CriticalShown() {
		t.Fatal("upper-limit flag cleared by a warning reset")
	}
}

func TestResetAllForNewSession(t *testing.T) {
	sink := &recordingSink{}
	m := NewManager(sink, zerolog.Nop())

	m.ShowWarning("w", "b")
	m.ShowUpperLimit("u", "b")
	m.ResetAllForNewSession()

	if m.WarningShown() || m.CriticalShown() {
		t.Fatal("flags survived ResetAllForNewSession")
	}

	m.ShowWarning("w", "b")
	m.ShowUpperLimit("u", "b")
	if len(sink.shown) != 4 {
		t.Fatalf("shown %d notifications, want 4 after session reset", len(sink.shown))
	}
}

func TestIdentifiersAreUnique(t *testing.T) {
	sink := &recordingSink{}
	m := NewManager(sink, zerolog.Nop())

	m.ShowWarning("w", "b")
	m.ResetStateIfBelow(LimitWarning, 0, 200, 1000)
	m.ShowWarning("w", "b")

	if sink.shown[0].identifier == sink.shown[1].identifier {
		t.Fatalf("identifier reused across notifications: %q", sink.shown[0].identifier)
	}
}
