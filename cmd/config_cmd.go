package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vibemeter/vibemeter/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the active configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if config.Exists() {
		fmt.Printf("  Config file: %s\n", config.ConfigPath())
	} else {
		fmt.Printf("  Config file: %s (not created, showing defaults)\n", config.ConfigPath())
	}

	fmt.Printf("  Display currency: %s\n", cfg.General.DisplayCurrency)
	fmt.Printf("  Locale: %s\n", cfg.General.Locale)
	fmt.Printf("  Refresh interval: %dm\n", cfg.General.RefreshIntervalMin)
	fmt.Printf("  Staleness threshold: %dm\n", cfg.General.StalenessThresholdMin)
	fmt.Printf("  Warning limit: $%.2f\n", cfg.Limits.WarningUSD)
	fmt.Printf("  Upper limit: $%.2f\n", cfg.Limits.UpperUSD)
	if cfg.Limits.YearlyBudgetUSD != nil {
		fmt.Printf("  Yearly budget: $%.2f\n", *cfg.Limits.YearlyBudgetUSD)
	}
	fmt.Printf("  Cursor enabled: %v\n", cfg.Providers.Cursor.Enabled)
	fmt.Printf("  Claude enabled: %v\n", cfg.Providers.Claude.Enabled)
	return nil
}
