package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vibemeter/vibemeter/internal/config"
	"github.com/vibemeter/vibemeter/internal/daemon"
	"github.com/vibemeter/vibemeter/internal/exchange"
	"github.com/vibemeter/vibemeter/internal/notify"
	"github.com/vibemeter/vibemeter/internal/provider"
	"github.com/vibemeter/vibemeter/internal/provider/claude"
	"github.com/vibemeter/vibemeter/internal/provider/cursor"
	"github.com/vibemeter/vibemeter/internal/settings"
)

var (
	flagCurrency string
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "vibemeter",
	Short: "AI spending meter",
	Long:  "Track spending across AI coding tools (Cursor, Claude) in your currency, with threshold alerts.",
	RunE:  runStatus,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagCurrency, "currency", "c", "", "Display currency override (e.g. EUR)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
}

// app bundles the wired services shared by the commands.
type app struct {
	cfg      config.Config
	store    *settings.Store
	rates    *exchange.Service
	clients  map[provider.Provider]provider.Client
	log      zerolog.Logger
	currency string
}

// newApp is the composition root: every service is constructed here and
// passed down explicitly.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := zerolog.WarnLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()

	store, err := settings.Open(config.SettingsDBPath())
	if err != nil {
		return nil, fmt.Errorf("opening settings: %w", err)
	}

	rates := exchange.NewService(store, log, exchange.WithBaseURL(cfg.Exchange.BaseURL))

	clients := make(map[provider.Provider]provider.Client)
	if cfg.Providers.Cursor.Enabled {
		clients[provider.Cursor] = cursor.NewClient()
	}
	if cfg.Providers.Claude.Enabled {
		clients[provider.Claude] = claude.NewClient()
	}

	cur := cfg.General.DisplayCurrency
	if flagCurrency != "" {
		cur = flagCurrency
	}

	return &app{
		cfg:      cfg,
		store:    store,
		rates:    rates,
		clients:  clients,
		log:      log,
		currency: cur,
	}, nil
}

func (a *app) close() {
	_ = a.store.Close()
}

// newService builds a daemon service from the app wiring.
func (a *app) newService() *daemon.Service {
	notifier := notify.NewManager(notify.LogSink{Log: a.log}, a.log)

	return daemon.New(daemon.Config{
		Addr:               flagDaemonAddr,
		Interval:           time.Duration(a.cfg.General.RefreshIntervalMin) * time.Minute,
		StalenessThreshold: time.Duration(a.cfg.General.StalenessThresholdMin) * time.Minute,
		DisplayCurrency:    a.currency,
		WarningLimitUSD:    a.cfg.Limits.WarningUSD,
		UpperLimitUSD:      a.cfg.Limits.UpperUSD,
	}, a.clients, a.store, a.rates, notifier, a.log)
}

func parseProviderArg(arg string) (provider.Provider, error) {
	p, err := provider.Parse(arg)
	if err != nil {
		return "", fmt.Errorf("%w (expected one of: cursor, claude)", err)
	}
	return p, nil
}
