package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vibemeter/vibemeter/internal/cli"
	"github.com/vibemeter/vibemeter/internal/config"
	"github.com/vibemeter/vibemeter/internal/currency"
)

var currencyCmd = &cobra.Command{
	Use:   "currency",
	Short: "Show the display currency and current exchange rates",
	RunE:  runCurrency,
}

var currencySetCmd = &cobra.Command{
	Use:   "set <code>",
	Short: "Set the display currency",
	Args:  cobra.ExactArgs(1),
	RunE:  runCurrencySet,
}

func init() {
	currencyCmd.AddCommand(currencySetCmd)
	rootCmd.AddCommand(currencyCmd)
}

func runCurrency(_ *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Second)
	defer cancel()
	rates := a.rates.Rates(ctx)

	codes := make([]string, 0, len(rates))
	for code := range rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	rows := make([][]string, 0, len(codes))
	for _, code := range codes {
		rows = append(rows, []string{
			code,
			currency.Symbol(code),
			fmt.Sprintf("%.4f", rates[code]),
		})
	}

	fmt.Printf("\n  Display currency: %s\n\n", a.currency)
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "USD exchange rates",
		Headers: []string{"Code", "Symbol", "Rate"},
		Rows:    rows,
	}))
	return nil
}

func runCurrencySet(_ *cobra.Command, args []string) error {
	code := strings.ToUpper(strings.TrimSpace(args[0]))
	if len(code) != 3 {
		return fmt.Errorf("invalid currency code %q", args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.General.DisplayCurrency = code
	if err := config.Save(cfg); err != nil {
		return err
	}

	fmt.Printf("  Display currency set to %s (%s)\n", code, currency.Symbol(code))
	return nil
}
