package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/vibemeter/vibemeter/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live spending view, refreshed on an interval",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(_ *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if len(a.clients) == 0 {
		return fmt.Errorf("no providers enabled; run `vibemeter setup` first")
	}

	svc := a.newService()
	interval := time.Duration(a.cfg.General.RefreshIntervalMin) * time.Minute

	model := tui.NewModel(svc, interval, a.cfg.General.Locale)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
