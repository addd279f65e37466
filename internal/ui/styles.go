package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	Primary   = lipgloss.Color("63")  // Purple/blue
	Secondary = lipgloss.Color("86")  // Cyan
	Accent    = lipgloss.Color("205") // Pink
	Success   = lipgloss.Color("78")  // Green
	Warning   = lipgloss.Color("214") // Orange
	Error     = lipgloss.Color("196") // Red
	Subtle    = lipgloss.Color("241") // Gray
	Surface   = lipgloss.Color("236") // Dark gray
	Text      = lipgloss.Color("252") // Light gray
	TextDim   = lipgloss.Color("245") // Dimmer text

	// Picker list
	ItemStyle = lipgloss.NewStyle().
			Foreground(TextDim).
			PaddingLeft(2)

	ActiveItemStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true).
			PaddingLeft(1)

	// Key hints under the picker
	HelpStyle = lipgloss.NewStyle().
			Foreground(TextDim).
			Background(Surface).
			Padding(0, 1)

	HelpKeyStyle = lipgloss.NewStyle().
			Foreground(Text).
			Background(Surface).
			Bold(true)

	// Stage banner
	TitleStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	StageStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true).
			Width(12)

	// General
	BoldStyle    = lipgloss.NewStyle().Bold(true)
	DimStyle     = lipgloss.NewStyle().Foreground(TextDim)
	AccentStyle  = lipgloss.NewStyle().Foreground(Accent)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error).Bold(true)
)
