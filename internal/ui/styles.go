package ui

import "github.com/charmbracelet/lipgloss"

const (
	colorAccent = lipgloss.Color("#2EC4B6")
	colorSoft   = lipgloss.Color("#9BE7DF")
	colorMuted  = lipgloss.Color("#6B7280")
	colorText   = lipgloss.Color("#FFFFFF")
	colorError  = lipgloss.Color("#FF4757")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			MarginTop(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginBottom(1)

	// SelectedStyle highlights the rendered sample line in the preview.
	SelectedStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	UnselectedStyle = lipgloss.NewStyle().
			Foreground(colorText)

	// CheckedStyle marks columns that a rule rewrites.
	CheckedStyle = lipgloss.NewStyle().
			Foreground(colorSoft).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(colorSoft).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(1, 2)
)
