package provider

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthorized indicates the stored token is expired or invalid.
	ErrUnauthorized = errors.New("provider: unauthorized (token expired or invalid)")
	// ErrServiceUnavailable indicates the provider API returned 503.
	ErrServiceUnavailable = errors.New("provider: service unavailable")
	// ErrNoTeamFound indicates the account has no team membership.
	ErrNoTeamFound = errors.New("provider: no team found")
	// ErrTeamIDNotSet indicates a team-scoped request was made without a team id.
	ErrTeamIDNotSet = errors.New("provider: team id not set")
)

// RateLimitError indicates the provider API returned 429. Until carries the
// Retry-After hint when the API supplied one.
type RateLimitError struct {
	Provider Provider
	Until    *time.Time
}

func (e *RateLimitError) Error() string {
	if e.Until != nil {
		return fmt.Sprintf("%s: rate limited until %s", e.Provider, e.Until.Format(time.RFC3339))
	}
	return fmt.Sprintf("%s: rate limited", e.Provider)
}

// NetworkError wraps transport-level failures and unexpected HTTP statuses so
// callers can distinguish them from decode or auth failures.
type NetworkError struct {
	Message    string
	StatusCode int // 0 when no response was received
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider: network error (status %d): %s", e.StatusCode, e.Message)
	}
	return "provider: network error: " + e.Message
}

// DecodeError indicates a response body could not be parsed into the expected
// shape. Decode failures on required records are fatal for the operation.
type DecodeError struct {
	Provider Provider
	What     string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decoding %s: %v", e.Provider, e.What, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
