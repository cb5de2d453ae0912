package ui

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	colorAccent = lipgloss.Color("#7C3AED")
	colorGain   = lipgloss.Color("#10B981")
	colorLoss   = lipgloss.Color("#EF4444")
	colorBusy   = lipgloss.Color("#F59E0B")
	colorMuted  = lipgloss.Color("#6B7280")
	colorFrame  = lipgloss.Color("#374151")
)

var (
	// Frames
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorFrame).
			Padding(0, 1)

	ErrorPanelStyle = BoxStyle.
			BorderForeground(colorLoss)

	// Headings
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(colorAccent).
			Padding(0, 2)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			Padding(0, 1)

	// Margins and errors
	PositiveValue = lipgloss.NewStyle().Foreground(colorGain)
	NegativeValue = lipgloss.NewStyle().Foreground(colorLoss)
	MutedValue    = lipgloss.NewStyle().Foreground(colorMuted)

	// Activity
	StatusBusy   = lipgloss.NewStyle().Foreground(colorBusy).Bold(true)
	SpinnerStyle = lipgloss.NewStyle().Foreground(colorBusy)

	HelpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 1)
)
