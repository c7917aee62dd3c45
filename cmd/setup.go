package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/vibemeter/vibemeter/internal/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	displayCurrency := cfg.General.DisplayCurrency
	warning := strconv.FormatFloat(cfg.Limits.WarningUSD, 'f', -1, 64)
	upper := strconv.FormatFloat(cfg.Limits.UpperUSD, 'f', -1, 64)
	enableCursor := cfg.Providers.Cursor.Enabled
	enableClaude := cfg.Providers.Claude.Enabled

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Display currency").
				Options(
					huh.NewOption("US Dollar (USD)", "USD"),
					huh.NewOption("Euro (EUR)", "EUR"),
					huh.NewOption("British Pound (GBP)", "GBP"),
					huh.NewOption("Japanese Yen (JPY)", "JPY"),
					huh.NewOption("Australian Dollar (AUD)", "AUD"),
					huh.NewOption("Canadian Dollar (CAD)", "CAD"),
					huh.NewOption("Swiss Franc (CHF)", "CHF"),
				).
				Value(&displayCurrency),
			huh.NewInput().
				Title("Warning threshold (USD/month)").
				Value(&warning).
				Validate(validatePositiveNumber),
			huh.NewInput().
				Title("Upper spending limit (USD/month)").
				Value(&upper).
				Validate(validatePositiveNumber),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Poll Cursor?").Value(&enableCursor),
			huh.NewConfirm().Title("Poll Claude?").Value(&enableClaude),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}

	cfg.General.DisplayCurrency = displayCurrency
	cfg.Limits.WarningUSD, _ = strconv.ParseFloat(warning, 64)
	cfg.Limits.UpperUSD, _ = strconv.ParseFloat(upper, 64)
	cfg.Providers.Cursor.Enabled = enableCursor
	cfg.Providers.Claude.Enabled = enableClaude

	if err := config.Save(cfg); err != nil {
		return err
	}

	fmt.Printf("  Saved %s\n", config.ConfigPath())
	fmt.Println("  Store tokens with: vibemeter login <provider>")
	return nil
}

func validatePositiveNumber(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return fmt.Errorf("enter a non-negative number")
	}
	return nil
}
