package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	styleBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	styleAgent = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	styleAccept = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	styleRevise = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	styleFailed = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	styleDim = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	styleStatus = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))
)
