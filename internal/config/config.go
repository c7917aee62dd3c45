// Package config loads and saves vibemeter configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
)

// Config holds all vibemeter configuration.
type Config struct {
	General   GeneralConfig   `toml:"general"`
	Limits    LimitsConfig    `toml:"limits"`
	Providers ProvidersConfig `toml:"providers"`
	Exchange  ExchangeConfig  `toml:"exchange"`
}

// GeneralConfig holds display and refresh preferences.
type GeneralConfig struct {
	DisplayCurrency       string `toml:"display_currency"`
	Locale                string `toml:"locale"`
	RefreshIntervalMin    int    `toml:"refresh_interval_min"`
	StalenessThresholdMin int    `toml:"staleness_threshold_min"`
}

// LimitsConfig holds spending thresholds in USD. Notifications compare
// against USD figures; display conversion happens separately.
type LimitsConfig struct {
	WarningUSD      float64  `toml:"warning_usd"`
	UpperUSD        float64  `toml:"upper_usd"`
	YearlyBudgetUSD *float64 `toml:"yearly_budget_usd,omitempty"`
}

// ProvidersConfig enables or disables polling per provider.
type ProvidersConfig struct {
	Cursor ProviderConfig `toml:"cursor"`
	Claude ProviderConfig `toml:"claude"`
}

// ProviderConfig holds one provider's settings.
type ProviderConfig struct {
	Enabled bool `toml:"enabled"`
}

// ExchangeConfig holds exchange-rate API settings.
type ExchangeConfig struct {
	BaseURL string `toml:"base_url,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			DisplayCurrency:       "USD",
			Locale:                "en_US",
			RefreshIntervalMin:    5,
			StalenessThresholdMin: 30,
		},
		Limits: LimitsConfig{
			WarningUSD: 200,
			UpperUSD:   1000,
		},
		Providers: ProvidersConfig{
			Cursor: ProviderConfig{Enabled: true},
			Claude: ProviderConfig{Enabled: true},
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "vibemeter")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DataDir returns the XDG-compliant data directory used for the settings
// database and daemon runtime files.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "vibemeter")
}

// SettingsDBPath returns the path of the SQLite settings database.
func SettingsDBPath() string {
	return filepath.Join(DataDir(), "settings.db")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}
