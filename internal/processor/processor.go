// Package processor orchestrates the per-provider background refresh: user
// info, team info, monthly invoice, and usage data fetched concurrently, with
// partial failures merged into a best-effort result.
package processor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vibemeter/vibemeter/internal/provider"
)

// Result is the merged outcome of one provider refresh. User and Team are
// always populated on success (Team may be the individual-account fallback);
// Invoice and Usage are nil when their optional sub-fetch failed.
type Result struct {
	Provider provider.Provider
	User     provider.UserInfo
	Team     provider.TeamInfo
	Invoice  *provider.MonthlyInvoice
	Usage    *provider.UsageData

	// Non-fatal sub-fetch errors, retained for logging and status display.
	TeamErr    error
	InvoiceErr error
	UsageErr   error
}

// Processor runs refresh operations against injected provider clients.
type Processor struct {
	log zerolog.Logger
	now func() time.Time
}

// New creates a processor.
func New(log zerolog.Logger) *Processor {
	return &Processor{log: log, now: time.Now}
}

// WithClock overrides the time source used to resolve the current billing
// month. Used by tests.
func (pr *Processor) WithClock(now func() time.Time) *Processor {
	pr.now = now
	return pr
}

// Refresh fetches user info, team info, the current month's invoice, and
// usage data for one provider. All four fetches run concurrently; the invoice
// fetch waits on team resolution since the team id feeds into the request.
//
// Failure policy: user-info failure is fatal and cancels the in-flight
// siblings. Team-info failure degrades to the individual-account fallback.
// Invoice and usage failures leave their field nil without affecting each
// other.
func (pr *Processor) Refresh(ctx context.Context, p provider.Provider, client provider.Client, token string) (*Result, error) {
	result := &Result{Provider: p}

	now := pr.now()
	month := int(now.Month()) - 1 // 0-based billing month
	year := now.Year()

	g, gctx := errgroup.WithContext(ctx)

	// Invoice waits on the team result (success or fallback).
	teamReady := make(chan struct{})

	g.Go(func() error {
		user, err := client.FetchUserInfo(gctx, token)
		if err != nil {
			return err
		}
		result.User = user
		return nil
	})

	g.Go(func() error {
		defer close(teamReady)
		team, err := client.FetchTeamInfo(gctx, token)
		if err != nil {
			result.TeamErr = err
			result.Team = provider.IndividualTeam(p)
			pr.log.Debug().Str("provider", p.String()).Err(err).
				Msg("team fetch failed, using individual account")
			return nil
		}
		result.Team = team
		return nil
	})

	g.Go(func() error {
		select {
		case <-teamReady:
		case <-gctx.Done():
			return nil
		}

		var teamID *int
		if id := result.Team.ID; id != provider.IndividualTeamID {
			teamID = &id
		}

		invoice, err := client.FetchMonthlyInvoice(gctx, token, month, year, teamID)
		if err != nil {
			result.InvoiceErr = err
			pr.log.Debug().Str("provider", p.String()).Err(err).Msg("invoice fetch failed")
			return nil
		}
		result.Invoice = &invoice
		return nil
	})

	g.Go(func() error {
		usage, err := client.FetchUsageData(gctx, token)
		if err != nil {
			result.UsageErr = err
			pr.log.Debug().Str("provider", p.String()).Err(err).Msg("usage fetch failed")
			return nil
		}
		result.Usage = &usage
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
