// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"fmt"
	"time"

	"github.com/vibemeter/vibemeter/internal/connection"
	"github.com/vibemeter/vibemeter/internal/currency"
)

// FormatSpend renders a converted amount with its currency symbol and the
// user's locale.
func FormatSpend(amount float64, currencyCode, locale string) string {
	return currency.FormatAmount(amount, currency.Symbol(currencyCode), locale)
}

// FormatPercent formats a 0-1 float as a percentage string.
func FormatPercent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

// FormatRelativeTime renders a past timestamp as "5m ago" style text.
func FormatRelativeTime(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// StatusLabel renders a connection status for table cells.
func StatusLabel(s connection.Status) string {
	switch s.State {
	case connection.StateError:
		if s.Message != "" {
			return "error: " + s.Message
		}
		return "error"
	case connection.StateRateLimited:
		if s.RetryAfter != nil {
			return "rate limited until " + s.RetryAfter.Format("15:04")
		}
		return "rate limited"
	default:
		return s.State.String()
	}
}
