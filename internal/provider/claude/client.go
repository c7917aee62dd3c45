// Package claude provides the claude.ai API client. Claude reports raw token
// usage rather than invoice line items, so the client computes spending from
// a per-model rate table and presents the result as a canonical invoice.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vibemeter/vibemeter/internal/provider"
)

const (
	defaultBaseURL = "https://claude.ai/api"
	requestTimeout = 30 * time.Second
	maxBodySize    = 1 << 20 // 1 MB
	keyPrefix      = "sk-ant-sid"
)

// Client fetches account and usage data from the claude.ai web API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a claude.ai API client.
func NewClient() *Client {
	return &Client{baseURL: defaultBaseURL, http: &http.Client{}}
}

// NewClientWithBaseURL creates a client against a non-default endpoint.
// Used by tests with httptest servers.
func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{}}
}

// organization is the wire shape of a claude.ai organization.
type organization struct {
	ID   int    `json:"id"`
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// FetchUserInfo returns the authenticated account's email.
func (c *Client) FetchUserInfo(ctx context.Context, token string) (provider.UserInfo, error) {
	body, err := c.get(ctx, "/account", token)
	if err != nil {
		return provider.UserInfo{}, err
	}

	var raw struct {
		Email string `json:"email_address"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return provider.UserInfo{}, &provider.DecodeError{Provider: provider.Claude, What: "account", Err: err}
	}

	return provider.UserInfo{Email: raw.Email, Provider: provider.Claude}, nil
}

// FetchTeamInfo returns the first organization as the user's team. Zero
// organizations is reported as ErrNoTeamFound.
func (c *Client) FetchTeamInfo(ctx context.Context, token string) (provider.TeamInfo, error) {
	orgs, err := c.fetchOrganizations(ctx, token)
	if err != nil {
		return provider.TeamInfo{}, err
	}
	if len(orgs) == 0 {
		return provider.TeamInfo{}, provider.ErrNoTeamFound
	}

	org := orgs[0]
	return provider.TeamInfo{ID: org.ID, Name: org.Name, Provider: provider.Claude}, nil
}

// FetchMonthlyInvoice computes the month's spending from token usage events.
// Usage entries are grouped by model (untagged entries fall back to the
// baseline model rate) and each group becomes one invoice line item.
func (c *Client) FetchMonthlyInvoice(ctx context.Context, token string, month, year int, teamID *int) (provider.MonthlyInvoice, error) {
	org, err := c.resolveOrg(ctx, token, teamID)
	if err != nil {
		return provider.MonthlyInvoice{}, err
	}

	path := fmt.Sprintf("/organizations/%s/usage_events?month=%d&year=%d", org, month+1, year)
	body, err := c.get(ctx, path, token)
	if err != nil {
		return provider.MonthlyInvoice{}, err
	}

	var raw struct {
		Events []usageEntry `json:"events"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return provider.MonthlyInvoice{}, &provider.DecodeError{Provider: provider.Claude, What: "usage events", Err: err}
	}

	groups := groupByModel(raw.Events)
	items := make([]provider.InvoiceItem, 0, len(groups))
	for _, g := range groups {
		items = append(items, provider.InvoiceItem{
			Cents:       costCents(g),
			Description: fmt.Sprintf("%s: %d input, %d output tokens", g.model, g.inputTokens, g.outputTokens),
			Provider:    provider.Claude,
		})
	}

	return provider.MonthlyInvoice{
		Items:              items,
		PricingDescription: "Token-based usage pricing",
		Provider:           provider.Claude,
		Month:              month,
		Year:               year,
	}, nil
}

// FetchUsageData returns message-quota usage for the account.
func (c *Client) FetchUsageData(ctx context.Context, token string) (provider.UsageData, error) {
	org, err := c.resolveOrg(ctx, token, nil)
	if err != nil {
		return provider.UsageData{}, err
	}

	body, err := c.get(ctx, fmt.Sprintf("/organizations/%s/rate_limits", org), token)
	if err != nil {
		return provider.UsageData{}, err
	}

	var raw struct {
		UsedRequests  int    `json:"used_requests"`
		TotalRequests int    `json:"total_requests"`
		MaxRequests   int    `json:"max_requests"`
		MonthStart    string `json:"month_start"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return provider.UsageData{}, &provider.DecodeError{Provider: provider.Claude, What: "rate limits", Err: err}
	}

	startOfMonth, err := time.Parse(time.RFC3339, raw.MonthStart)
	if err != nil {
		return provider.UsageData{}, &provider.DecodeError{Provider: provider.Claude, What: "month start date", Err: err}
	}

	return provider.UsageData{
		CurrentRequests: raw.UsedRequests,
		TotalRequests:   raw.TotalRequests,
		MaxRequests:     raw.MaxRequests,
		StartOfMonth:    startOfMonth,
		Provider:        provider.Claude,
	}, nil
}

// ValidateToken checks shape locally, then verifies against the API.
func (c *Client) ValidateToken(ctx context.Context, token string) bool {
	if !strings.HasPrefix(strings.TrimSpace(token), keyPrefix) {
		return false
	}
	_, err := c.FetchUserInfo(ctx, token)
	return err == nil
}

// resolveOrg returns the organization identifier for API paths. A nil or
// zero teamID means the first organization for this session.
func (c *Client) resolveOrg(ctx context.Context, token string, teamID *int) (string, error) {
	if teamID != nil && *teamID != provider.IndividualTeamID {
		return strconv.Itoa(*teamID), nil
	}

	orgs, err := c.fetchOrganizations(ctx, token)
	if err != nil {
		return "", err
	}
	if len(orgs) == 0 {
		return "", provider.ErrNoTeamFound
	}
	return orgs[0].UUID, nil
}

func (c *Client) fetchOrganizations(ctx context.Context, token string) ([]organization, error) {
	body, err := c.get(ctx, "/organizations", token)
	if err != nil {
		return nil, err
	}

	var orgs []organization
	if err := json.Unmarshal(body, &orgs); err != nil {
		return nil, &provider.DecodeError{Provider: provider.Claude, What: "organizations", Err: err}
	}
	return orgs, nil
}

func (c *Client) get(ctx context.Context, path, token string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("claude: creating request: %w", err)
	}

	req.Header.Set("Cookie", "sessionKey="+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &provider.NetworkError{Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, provider.ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, &provider.RateLimitError{Provider: provider.Claude, Until: retryAfter(resp)}
	case http.StatusServiceUnavailable:
		return nil, provider.ErrServiceUnavailable
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &provider.NetworkError{Message: "unexpected status", StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &provider.NetworkError{Message: "reading response: " + err.Error(), StatusCode: resp.StatusCode}
	}
	return body, nil
}

func retryAfter(resp *http.Response) *time.Time {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return nil
	}
	secs, err := strconv.Atoi(header)
	if err != nil {
		return nil
	}
	t := time.Now().Add(time.Duration(secs) * time.Second)
	return &t
}
