package ui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/crmdesk/internal/notify"
	"github.com/abelbrown/crmdesk/internal/ui/theme"
)

// HeaderBar style for the top line with the resource name.
var HeaderBar = theme.Title

// StatusBar style for the bottom status bar.
var StatusBar = theme.StatusBar

// StatusBarKey style for key hints in the status bar.
var StatusBarKey = theme.StatusKey

// StatusBarText style for descriptive text in the status bar.
var StatusBarText = lipgloss.NewStyle().
	Foreground(theme.Gray300)

// ErrorStyle for listing errors.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(theme.ErrorText).
	Bold(true).
	Padding(0, 1)

// EmptyStyle for an empty listing.
var EmptyStyle = lipgloss.NewStyle().
	Foreground(theme.Gray600).
	Padding(1, 2)

// OverlayPanel frames the search and phone overlays.
var OverlayPanel = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(theme.Primary).
	Padding(0, 1)

// DebugPanel style for the debug overlay container.
var DebugPanel = theme.Panel

// DebugHeaderStyle for section headers in the debug overlay.
var DebugHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(theme.Primary300)

// ToastStyle returns the frame for a notice of the given level.
func ToastStyle(level notify.Level) lipgloss.Style {
	color := theme.Primary400
	switch level {
	case notify.LevelSuccess:
		color = theme.Success
	case notify.LevelError:
		color = theme.Error
	case notify.LevelWarning:
		color = theme.Warning
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Foreground(color).
		Padding(0, 1)
}

// TableStyles themes the catalog table.
func TableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.Gray700).
		BorderBottom(true).
		Bold(true).
		Foreground(theme.Primary300)
	s.Selected = s.Selected.
		Foreground(theme.White).
		Background(theme.Primary).
		Bold(true)
	return s
}
