package ui

import "github.com/charmbracelet/lipgloss"

// Semantic color palette.
var (
	colorPrimary = lipgloss.Color("#00BFFF") // Cyan: headings
	colorAccent  = lipgloss.Color("#FFD700") // Gold: slack
	colorSuccess = lipgloss.Color("#00E676") // Green: accepted
	colorDanger  = lipgloss.Color("#FF5252") // Red: critical, errors
	colorMuted   = lipgloss.Color("#8C8C8C") // Gray: de-emphasized
)

var (
	styleHeading  = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	styleCritical = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	styleSlack    = lipgloss.NewStyle().Foreground(colorAccent)
	styleOK       = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleError    = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	styleMuted    = lipgloss.NewStyle().Foreground(colorMuted)
	styleCell     = lipgloss.NewStyle().Padding(0, 1)
	styleBorder   = lipgloss.NewStyle().Foreground(colorMuted)
)
