package tui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

var (
	colorGreen  = lipgloss.Color("#3FB950")
	colorRed    = lipgloss.Color("#F85149")
	colorMuted  = lipgloss.Color("#8B949E")
	colorAccent = lipgloss.Color("#58A6FF")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).MarginBottom(1)
	runningStyle = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	stoppedStyle = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorRed)
	infoStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	helpStyle    = lipgloss.NewStyle().Foreground(colorMuted).MarginTop(1)
	frameStyle   = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(colorMuted)
)

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorMuted).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#0D1117")).
		Background(colorAccent).
		Bold(false)
	return s
}
