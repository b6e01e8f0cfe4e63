package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/germanamz/gsmgate/pkg/notify"
)

// Centralized style definitions for the TUI.
var (
	// Header and tabs.
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")) // cyan
	tabActiveStyle = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("4"))
	tabStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	// Connection indicator.
	connectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // green
	connectingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // yellow
	disconnectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // red

	// Body text.
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(18)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	unreadStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	spinnerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("5")) // magenta
	callerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")).Blink(true)

	// Panels.
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
	ussdStyle = lipgloss.NewStyle().
			PaddingLeft(1).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("6"))

	// Inputs.
	focusedBorder  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("2")) // green
	disabledBorder = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8"))

	hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Faint(true)
)

// severityStyles colors the notification line.
var severityStyles = map[notify.Severity]lipgloss.Style{
	notify.Success: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	notify.Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
	notify.Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	notify.Error:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
}
