package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorFocus     = lipgloss.Color("#FF6F61")
	colorBreak     = lipgloss.Color("#3CB371")
	colorLongBreak = lipgloss.Color("#1E90FF")
	colorGray      = lipgloss.Color("#666666")
	colorRed       = lipgloss.Color("#FF0000")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			MarginBottom(1)

	clockStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 2).
			Border(lipgloss.RoundedBorder())

	statusStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			MarginTop(1)
)
