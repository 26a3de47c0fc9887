package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#8BC34A")
	muted  = lipgloss.Color("#6b7280")
	border = lipgloss.Color("#2a3850")
)

type styles struct {
	Tally     lipgloss.Style
	Panel     lipgloss.Style
	Chosen    lipgloss.Style
	NotChosen lipgloss.Style
	Feedback  lipgloss.Style
	Next      lipgloss.Style
	Title     lipgloss.Style
}

func defaultStyles() styles {
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(1, 2).
		Width(28).
		Align(lipgloss.Center)
	return styles{
		Tally:     lipgloss.NewStyle().Bold(true).MarginBottom(1),
		Panel:     panel,
		Chosen:    panel.BorderForeground(accent),
		NotChosen: panel.Foreground(muted),
		Feedback:  lipgloss.NewStyle().Bold(true).Foreground(accent),
		Next:      lipgloss.NewStyle().Bold(true).Padding(0, 2).Border(lipgloss.NormalBorder()).BorderForeground(accent),
		Title:     lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1),
	}
}
