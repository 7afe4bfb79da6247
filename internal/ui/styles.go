// Package ui provides consistent styling and the debug view for the
// touchmapd CLI.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette - consistent across the application
var (
	ColorPrimary = lipgloss.Color("39")  // Bright blue
	ColorSuccess = lipgloss.Color("82")  // Green
	ColorWarning = lipgloss.Color("214") // Orange
	ColorError   = lipgloss.Color("196") // Red
	ColorInfo    = lipgloss.Color("86")  // Cyan

	ColorText      = lipgloss.Color("252") // Light gray
	ColorSubtle    = lipgloss.Color("241") // Medium gray
	ColorHighlight = lipgloss.Color("255") // White
)

// Base styles
var (
	TextStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	SubtleStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle)

	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorInfo)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorInfo)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorPrimary).
				BorderBottom(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(ColorSubtle)

	TableSelectedStyle = lipgloss.NewStyle().
				Foreground(ColorHighlight).
				Background(ColorSubtle)
)

// Status indicators
var (
	HealthyIndicator = lipgloss.NewStyle().
				Foreground(ColorSuccess).
				Render("●")

	UnhealthyIndicator = lipgloss.NewStyle().
				Foreground(ColorError).
				Render("○")
)

// Control help styles
var (
	ControlKeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	ControlDescStyle = lipgloss.NewStyle().
				Foreground(ColorText)
)

// FormatAppHeader renders the CLI header line with version.
func FormatAppHeader(version string) string {
	title := HeaderStyle.Render("touchmapd")
	return title + " " + SubtleStyle.Render(version) + "\n" + CreateSeparator(50, "─")
}

// FormatControl renders a "key - description" help entry.
func FormatControl(key, desc string) string {
	return ControlKeyStyle.Render(key) + " - " + ControlDescStyle.Render(desc)
}

// FormatHealth renders the health indicator followed by status text.
func FormatHealth(healthy bool, status string) string {
	indicator := UnhealthyIndicator
	if healthy {
		indicator = HealthyIndicator
	}
	return indicator + " " + status
}

// FormatField renders a labelled status field.
func FormatField(label, value string) string {
	return SubtleStyle.Render(label+":") + " " + TextStyle.Render(value)
}

// CreateSeparator creates a horizontal line separator
func CreateSeparator(width int, char string) string {
	if width <= 0 {
		width = 50
	}
	if char == "" {
		char = "─"
	}
	return lipgloss.NewStyle().
		Foreground(ColorSubtle).
		Render(strings.Repeat(char, width))
}
