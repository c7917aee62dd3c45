// Package cursor provides the Cursor dashboard API client and the
// normalization of its invoice and usage payloads into canonical records.
package cursor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vibemeter/vibemeter/internal/provider"
)

const (
	defaultBaseURL = "https://www.cursor.com/api"
	requestTimeout = 30 * time.Second
	maxBodySize    = 1 << 20 // 1 MB
	sessionCookie  = "WorkosCursorSessionToken"
)

// Client fetches billing data from the Cursor dashboard API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Cursor API client.
func NewClient() *Client {
	return &Client{baseURL: defaultBaseURL, http: &http.Client{}}
}

// NewClientWithBaseURL creates a client against a non-default endpoint.
// Used by tests with httptest servers.
func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{}}
}

// FetchUserInfo returns the authenticated user's email and team id.
func (c *Client) FetchUserInfo(ctx context.Context, token string) (provider.UserInfo, error) {
	body, err := c.get(ctx, "/auth/me", token)
	if err != nil {
		return provider.UserInfo{}, err
	}

	var raw struct {
		Email  string `json:"email"`
		TeamID *int   `json:"teamId"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return provider.UserInfo{}, &provider.DecodeError{Provider: provider.Cursor, What: "user info", Err: err}
	}

	return provider.UserInfo{Email: raw.Email, TeamID: raw.TeamID, Provider: provider.Cursor}, nil
}

// FetchTeamInfo returns the user's first team. Zero teams is reported as
// ErrNoTeamFound; the caller substitutes the individual-account fallback.
func (c *Client) FetchTeamInfo(ctx context.Context, token string) (provider.TeamInfo, error) {
	body, err := c.post(ctx, "/dashboard/teams", token, map[string]any{})
	if err != nil {
		return provider.TeamInfo{}, err
	}

	var raw struct {
		Teams []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"teams"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return provider.TeamInfo{}, &provider.DecodeError{Provider: provider.Cursor, What: "teams", Err: err}
	}
	if len(raw.Teams) == 0 {
		return provider.TeamInfo{}, provider.ErrNoTeamFound
	}

	t := raw.Teams[0]
	return provider.TeamInfo{ID: t.ID, Name: t.Name, Provider: provider.Cursor}, nil
}

// FetchMonthlyInvoice returns the invoice for the given 0-based month. A nil
// or zero teamID omits the team parameter from the request.
func (c *Client) FetchMonthlyInvoice(ctx context.Context, token string, month, year int, teamID *int) (provider.MonthlyInvoice, error) {
	payload := map[string]any{
		"month":              month,
		"year":               year,
		"includeUsageEvents": false,
	}
	if teamID != nil && *teamID != provider.IndividualTeamID {
		payload["teamId"] = *teamID
	}

	body, err := c.post(ctx, "/dashboard/get-monthly-invoice", token, payload)
	if err != nil {
		return provider.MonthlyInvoice{}, err
	}

	var raw struct {
		Items []struct {
			Cents       int    `json:"cents"`
			Description string `json:"description"`
		} `json:"items"`
		PricingDescription struct {
			Description string `json:"description"`
		} `json:"pricingDescription"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return provider.MonthlyInvoice{}, &provider.DecodeError{Provider: provider.Cursor, What: "monthly invoice", Err: err}
	}

	// An empty item list is a valid zero-spend invoice.
	items := make([]provider.InvoiceItem, 0, len(raw.Items))
	for _, it := range raw.Items {
		items = append(items, provider.InvoiceItem{
			Cents:       it.Cents,
			Description: it.Description,
			Provider:    provider.Cursor,
		})
	}

	return provider.MonthlyInvoice{
		Items:              items,
		PricingDescription: raw.PricingDescription.Description,
		Provider:           provider.Cursor,
		Month:              month,
		Year:               year,
	}, nil
}

// FetchUsageData returns premium-request usage for the current month.
func (c *Client) FetchUsageData(ctx context.Context, token string) (provider.UsageData, error) {
	body, err := c.get(ctx, "/usage", token)
	if err != nil {
		return provider.UsageData{}, err
	}

	var raw struct {
		Premium struct {
			NumRequests      int `json:"numRequests"`
			NumRequestsTotal int `json:"numRequestsTotal"`
			MaxRequestUsage  int `json:"maxRequestUsage"`
		} `json:"gpt-4"`
		StartOfMonth string `json:"startOfMonth"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return provider.UsageData{}, &provider.DecodeError{Provider: provider.Cursor, What: "usage", Err: err}
	}

	startOfMonth, err := time.Parse(time.RFC3339, raw.StartOfMonth)
	if err != nil {
		return provider.UsageData{}, &provider.DecodeError{Provider: provider.Cursor, What: "usage start date", Err: err}
	}

	return provider.UsageData{
		CurrentRequests: raw.Premium.NumRequests,
		TotalRequests:   raw.Premium.NumRequestsTotal,
		MaxRequests:     raw.Premium.MaxRequestUsage,
		StartOfMonth:    startOfMonth,
		Provider:        provider.Cursor,
	}, nil
}

// ValidateToken reports whether the session token still authenticates.
func (c *Client) ValidateToken(ctx context.Context, token string) bool {
	_, err := c.FetchUserInfo(ctx, token)
	return err == nil
}

func (c *Client) get(ctx context.Context, path, token string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, token, nil)
}

func (c *Client) post(ctx context.Context, path, token string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("cursor: encoding request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, token, data)
}

func (c *Client) do(ctx context.Context, method, path, token string, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("cursor: creating request: %w", err)
	}

	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &provider.NetworkError{Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, provider.ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, &provider.RateLimitError{Provider: provider.Cursor, Until: retryAfter(resp)}
	case http.StatusServiceUnavailable:
		return nil, provider.ErrServiceUnavailable
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &provider.NetworkError{
			Message:    "unexpected status",
			StatusCode: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &provider.NetworkError{Message: "reading response: " + err.Error(), StatusCode: resp.StatusCode}
	}
	return body, nil
}

// retryAfter converts a Retry-After header in seconds into an absolute time.
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
