// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package root

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mera-learn/progress-core/internal/cleaner"
	"github.com/mera-learn/progress-core/internal/orchestrator"
	"github.com/mera-learn/progress-core/internal/savemanager"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Live TUI dashboard of the Save Manager and Save Cleaner",
	Long: `status starts the Save Manager poll loop and Save Cleaner sweep against
the configured sinks and renders the Save Manager's state -- webId, last
SaveOutcome, online status -- as a live-refreshing terminal dashboard. Press q to
quit; the underlying loops stop when the dashboard exits.`,
	RunE: runStatus,
}

var (
	statusHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusOKStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	statusWarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	statusBadStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type tickMsg time.Time

type statusModel struct {
	mgr     *savemanager.Manager
	cleaner *cleaner.Cleaner
	webID   string
	quit    bool
	spin    spinner.Model
}

func newStatusModel(mgr *savemanager.Manager, clean *cleaner.Cleaner, webID string) statusModel {
	s := spinner.New()
	s.Spinner = spinner.Line
	s.Style = statusOKStyle
	return statusModel{mgr: mgr, cleaner: clean, webID: webID, spin: s}
}

func (m statusModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.spin.Tick)
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quit = true
			return m, tea.Quit
		}
	case tickMsg:
		return m, tickCmd()
	}

	var cmd tea.Cmd
	m.spin, cmd = m.spin.Update(msg)
	return m, cmd
}

func (m statusModel) View() string {
	if m.quit {
		return ""
	}

	outcome := m.mgr.LastOutcome()
	online := m.mgr.GetOnlineStatus()

	outcomeStyle := statusOKStyle
	switch outcome {
	case orchestrator.OnlyLocalSucceeded:
		outcomeStyle = statusWarnStyle
	case orchestrator.BothFailed:
		outcomeStyle = statusBadStyle
	case orchestrator.OnlySolidSucceeded:
		outcomeStyle = statusWarnStyle
	}

	onlineText := statusBadStyle.Render("offline")
	if online {
		onlineText = statusOKStyle.Render("online")
	}

	body := fmt.Sprintf(
		"%s %s\n\nwebId:        %s\nlast outcome: %s\nstatus:       %s\n\n%s",
		m.spin.View(),
		statusHeaderStyle.Render("progressd status"),
		m.webID,
		outcomeStyle.Render(outcome.String()),
		onlineText,
		lipgloss.NewStyle().Faint(true).Render("q to quit"),
	)
	return statusBoxStyle.Render(body)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	s, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	o, err := newOrchestrator(s)
	if err != nil {
		return err
	}
	mgr, err := newSaveManager(s, o)
	if err != nil {
		return err
	}
	clean, err := newCleaner(s)
	if err != nil {
		return err
	}

	if err := mgr.Start(ctx); err != nil {
		return err
	}
	clean.Start(ctx)
	defer mgr.Stop()
	defer clean.Stop()

	model := newStatusModel(mgr, clean, s.cfg.Identity.WebID)
	program := tea.NewProgram(model)
	_, err = program.Run()
	return err
}
