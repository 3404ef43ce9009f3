// Package theme holds the palette and shared lipgloss styles.
package theme

import "github.com/charmbracelet/lipgloss"

// Brand colors.
var (
	Primary    = lipgloss.Color("#4151BB")
	Primary100 = lipgloss.Color("#E7E9F7")
	Primary300 = lipgloss.Color("#929BD8")
	Primary400 = lipgloss.Color("#606EC6")
	Primary800 = lipgloss.Color("#1226AA")
	Primary900 = lipgloss.Color("#10239B")

	Accent = lipgloss.Color("#FFC857")

	Error     = lipgloss.Color("#F04E48")
	ErrorText = lipgloss.Color("#DD2C25")
	ErrorBg   = lipgloss.Color("#FEE3E2")

	Warning     = lipgloss.Color("#FFB822")
	WarningText = lipgloss.Color("#F59F13")

	Success = lipgloss.Color("#2BB673")
	White   = lipgloss.Color("#FFFFFF")
)

// Gray scale, light to dark.
var (
	Gray50  = lipgloss.Color("#F2F3F7")
	Gray100 = lipgloss.Color("#E8EAF3")
	Gray300 = lipgloss.Color("#D8DBE4")
	Gray500 = lipgloss.Color("#C0C4D2")
	Gray600 = lipgloss.Color("#969AAC")
	Gray700 = lipgloss.Color("#4D5163")
	Gray900 = lipgloss.Color("#1F2130")
)

// Text styles.
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(White).
		Background(Primary900).
		Padding(0, 1)

	Muted = lipgloss.NewStyle().
		Foreground(Gray600)

	Label = lipgloss.NewStyle().
		Foreground(Gray500).
		Bold(true)

	ErrorLine = lipgloss.NewStyle().
			Foreground(ErrorText)
)

// Selection styles for lists and tables.
var (
	Selected = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary800).
			Background(Primary100).
			Padding(0, 1)

	Option = lipgloss.NewStyle().
		Padding(0, 1)

	Checked = lipgloss.NewStyle().
		Foreground(Primary).
		Bold(true)
)

// Input frames.
var (
	Input = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Gray500).
		Padding(0, 1)

	InputFocused = Input.
			BorderForeground(Primary400)

	InputError = Input.
			BorderForeground(Error)
)

// StatusBar is the bottom line of the shell.
var StatusBar = lipgloss.NewStyle().
	Foreground(White).
	Background(Primary900).
	Padding(0, 1)

// StatusKey highlights key hints inside the status bar.
var StatusKey = lipgloss.NewStyle().
	Foreground(Accent).
	Bold(true)

// Panel frames overlays such as the debug panel.
var Panel = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Primary400).
	Padding(1, 2)

// StatusColor maps a record status code to its badge color.
func StatusColor(status int) lipgloss.Color {
	switch status {
	case 0:
		return Gray600
	case 2:
		return Error
	case 3:
		return Warning
	default:
		return Success
	}
}
