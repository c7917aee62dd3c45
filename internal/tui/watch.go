// Package tui provides the live watch view: per-provider spending and
// connection state, refreshed on an interval.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vibemeter/vibemeter/internal/cli"
	"github.com/vibemeter/vibemeter/internal/daemon"
)

// Poller produces a fresh snapshot. The daemon service satisfies this via
// PollNow.
type Poller interface {
	PollNow(ctx context.Context) daemon.Snapshot
}

type snapshotMsg daemon.Snapshot

type tickMsg time.Time

// Model is the bubbletea model for `vibemeter watch`.
type Model struct {
	poller   Poller
	interval time.Duration
	locale   string

	spin    spinner.Model
	polling bool
	hasData bool
	snap    daemon.Snapshot
	width   int
}

// NewModel creates the watch model.
func NewModel(poller Poller, interval time.Duration, locale string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(cli.ColorAccent)

	if interval < 10*time.Second {
		interval = 30 * time.Second
	}

	return Model{
		poller:   poller,
		interval: interval,
		locale:   locale,
		spin:     sp,
		polling:  true,
	}
}

// Init kicks off the first poll.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.pollCmd())
}

func (m Model) pollCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
		defer cancel()
		return snapshotMsg(m.poller.PollNow(ctx))
	}
}

func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles refresh ticks, poll results, and key input.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			if !m.polling {
				m.polling = true
				return m, tea.Batch(m.spin.Tick, m.pollCmd())
			}
		}
		return m, nil

	case snapshotMsg:
		m.snap = daemon.Snapshot(msg)
		m.hasData = true
		m.polling = false
		return m, m.scheduleTick()

	case tickMsg:
		m.polling = true
		return m, tea.Batch(m.spin.Tick, m.pollCmd())

	case spinner.TickMsg:
		if !m.polling {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the provider table and totals.
func (m Model) View() string {
	var out string

	out += "\n" + cli.RenderTitle("VibeMeter") + "\n\n"

	if !m.hasData {
		return out + "  " + m.spin.View() + " fetching provider data...\n"
	}

	rows := make([][]string, 0, len(m.snap.Providers))
	for _, ps := range m.snap.Providers {
		spend := "—"
		if ps.DisplaySpending != nil {
			spend = cli.FormatSpend(*ps.DisplaySpending, m.snap.Currency, m.locale)
		}
		last := "never"
		if ps.LastRefresh != nil {
			last = cli.FormatRelativeTime(*ps.LastRefresh, time.Now())
		}
		rows = append(rows, []string{
			ps.Provider.DisplayName(),
			spend,
			ps.Status,
			last,
		})
	}

	out += cli.RenderTable(cli.Table{
		Headers: []string{"Provider", "Spend", "Status", "Refreshed"},
		Rows:    rows,
	})

	total := cli.FormatSpend(m.snap.TotalDisplay, m.snap.Currency, m.locale)
	out += "\n  Total: " + total
	if m.snap.Currency != "USD" {
		out += "  (" + cli.FormatSpend(m.snap.TotalUSD, "USD", m.locale) + ")"
	}
	out += "\n"

	if m.snap.RatesUnavailable {
		out += cli.RenderAdvisory("Rates unavailable, showing USD") + "\n"
	}

	if m.polling {
		out += "\n  " + m.spin.View() + " refreshing..."
	} else {
		out += "\n  r refresh · q quit"
	}
	out += "\n"

	return out
}
