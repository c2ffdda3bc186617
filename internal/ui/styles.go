package ui

import "github.com/charmbracelet/lipgloss"

type Styles struct {
	Title   lipgloss.Style
	Count   lipgloss.Style
	Paused  lipgloss.Style
	Cancel  lipgloss.Style
	Hint    lipgloss.Style
	Spinner lipgloss.Style
}

func defaultStyles() Styles {
	base := lipgloss.NewStyle()
	return Styles{
		Title:   base.Foreground(lipgloss.Color("#A3A3A3")),
		Count:   base.Foreground(lipgloss.Color("#D1D5DB")),
		Paused:  base.Bold(true).Foreground(lipgloss.Color("#F59E0B")),
		Cancel:  base.Bold(true).Foreground(lipgloss.Color("#EF4444")),
		Hint:    base.Faint(true),
		Spinner: base.Foreground(lipgloss.Color("#22D3EE")),
	}
}
