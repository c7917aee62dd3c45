package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vibemeter/vibemeter/internal/cli"
	"github.com/vibemeter/vibemeter/internal/currency"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Fetch and show current spending across providers",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if len(a.clients) == 0 {
		return fmt.Errorf("no providers enabled; run `vibemeter setup` first")
	}

	svc := a.newService()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	snap := svc.PollNow(ctx)

	locale := a.cfg.General.Locale

	fmt.Println()
	fmt.Println(cli.RenderTitle("VibeMeter"))
	fmt.Println()

	rows := make([][]string, 0, len(snap.Providers))
	for _, ps := range snap.Providers {
		spend := "—"
		if ps.DisplaySpending != nil {
			spend = cli.FormatSpend(*ps.DisplaySpending, snap.Currency, locale)
		}
		status := ps.Status
		if ps.StatusMessage != "" {
			status += ": " + ps.StatusMessage
		}
		rows = append(rows, []string{ps.Provider.DisplayName(), spend, status})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Provider", "Spend", "Status"},
		Rows:    rows,
	}))

	total := cli.FormatSpend(snap.TotalDisplay, snap.Currency, locale)
	fmt.Printf("\n  Total: %s", total)
	if snap.Currency != "USD" {
		fmt.Printf("  (%s)", cli.FormatSpend(snap.TotalUSD, "USD", locale))
	}
	fmt.Println()

	if a.cfg.Limits.YearlyBudgetUSD != nil {
		monthly := currency.MonthlyLimit(*a.cfg.Limits.YearlyBudgetUSD)
		fmt.Printf("  Monthly budget: %s\n", cli.FormatSpend(monthly, "USD", locale))
	}

	if snap.RatesUnavailable {
		fmt.Println(cli.RenderAdvisory("Rates unavailable, showing USD"))
	}
	fmt.Println()

	return nil
}
