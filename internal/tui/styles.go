// Package tui provides the interactive operation-log browser.
package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette - matches the CLI colors
var (
	ColorPrimary = lipgloss.Color("#7C3AED") // Purple
	ColorAccent  = lipgloss.Color("#06B6D4") // Cyan
	ColorSuccess = lipgloss.Color("#10B981") // Green
	ColorWarning = lipgloss.Color("#F59E0B") // Yellow
	ColorError   = lipgloss.Color("#EF4444") // Red
	ColorMuted   = lipgloss.Color("#6B7280") // Gray
)

// Styles contains the lipgloss styles used by the log browser.
type Styles struct {
	Header   lipgloss.Style
	Footer   lipgloss.Style
	ID       lipgloss.Style
	Command  lipgloss.Style
	Time     lipgloss.Style
	Selected lipgloss.Style
	Detail   lipgloss.Style

	StepInstall   lipgloss.Style
	StepRemove    lipgloss.Style
	StepUpgrade   lipgloss.Style
	StepDowngrade lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() *Styles {
	return &Styles{
		Header: lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Padding(0, 1),
		Footer: lipgloss.NewStyle().
			Foreground(ColorMuted).
			Padding(0, 1),
		ID:      lipgloss.NewStyle().Foreground(ColorAccent),
		Command: lipgloss.NewStyle().Bold(true),
		Time:    lipgloss.NewStyle().Foreground(ColorMuted),
		Selected: lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true),
		Detail: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1),

		StepInstall:   lipgloss.NewStyle().Foreground(ColorSuccess),
		StepRemove:    lipgloss.NewStyle().Foreground(ColorError),
		StepUpgrade:   lipgloss.NewStyle().Foreground(ColorAccent),
		StepDowngrade: lipgloss.NewStyle().Foreground(ColorWarning),
	}
}
