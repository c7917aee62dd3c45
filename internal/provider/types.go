package provider

import (
	"context"
	"time"
)

// Fallback team used when a provider reports no team membership. A user
// without a team is treated as an individual account, not an error.
const (
	IndividualTeamID   = 0
	IndividualTeamName = "Individual Account"
)

// InvoiceItem is a single line item on a monthly invoice.
type InvoiceItem struct {
	Cents       int
	Description string
	Provider    Provider
}

// MonthlyInvoice is one provider's invoice for a single billing month.
// Month is 0-based (January == 0). Invoices are immutable; a new fetch
// replaces the previous invoice wholesale.
type MonthlyInvoice struct {
	Items              []InvoiceItem
	PricingDescription string
	Provider           Provider
	Month              int
	Year               int
}

// TotalSpendingCents sums all line items. An empty invoice is valid and
// totals zero.
func (inv MonthlyInvoice) TotalSpendingCents() int {
	total := 0
	for _, it := range inv.Items {
		total += it.Cents
	}
	return total
}

// UsageData holds request-count usage for one provider, replaced wholesale
// on each successful fetch.
type UsageData struct {
	CurrentRequests int
	TotalRequests   int
	MaxRequests     int
	StartOfMonth    time.Time
	Provider        Provider
}

// TeamInfo identifies the team a user belongs to.
type TeamInfo struct {
	ID       int
	Name     string
	Provider Provider
}

// IndividualTeam returns the canonical fallback team for users without one.
func IndividualTeam(p Provider) TeamInfo {
	return TeamInfo{ID: IndividualTeamID, Name: IndividualTeamName, Provider: p}
}

// UserInfo identifies the authenticated user.
type UserInfo struct {
	Email    string
	TeamID   *int
	Provider Provider
}

// Client is the per-provider API surface the background processor fetches
// through. Production clients live in the provider subpackages; tests inject
// doubles satisfying the same contract.
//
// teamID semantics for FetchMonthlyInvoice: a nil or zero teamID means "no
// team" and the request is made without a team parameter.
type Client interface {
	FetchUserInfo(ctx context.Context, token string) (UserInfo, error)
	FetchTeamInfo(ctx context.Context, token string) (TeamInfo, error)
	FetchMonthlyInvoice(ctx context.Context, token string, month, year int, teamID *int) (MonthlyInvoice, error)
	FetchUsageData(ctx context.Context, token string) (UsageData, error)
	ValidateToken(ctx context.Context, token string) bool
}
