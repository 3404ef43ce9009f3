// Package command is the jump palette: a filtered list of resources and
// shell actions opened with ":".
package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/crmdesk/internal/filter"
	"github.com/abelbrown/crmdesk/internal/ui/theme"
)

// maxVisible is the list height before it scrolls.
const maxVisible = 8

// Command is one palette entry. Target is set for resource jumps,
// Action for shell actions.
type Command struct {
	Name        string
	Description string
	Key         string // shortcut hint, display only
	Target      string
	Action      string
}

// Palette is a command palette with accent-insensitive subsequence matching.
type Palette struct {
	input    textinput.Model
	commands []Command
	filtered []Command
	cursor   int
	width    int
	active   bool
	empty    string
}

// New creates a palette over commands. empty is shown when nothing matches.
func New(placeholder, empty string, commands []Command) Palette {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = ": "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(theme.Primary400).Bold(true)
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(theme.Primary400)
	ti.CharLimit = 48

	return Palette{
		input:    ti,
		commands: commands,
		filtered: commands,
		width:    60,
		empty:    empty,
	}
}

// Activate shows the palette
func (p *Palette) Activate() tea.Cmd {
	p.active = true
	p.input.SetValue("")
	p.filtered = p.commands
	p.cursor = 0
	return p.input.Focus()
}

// Deactivate hides the palette
func (p *Palette) Deactivate() {
	p.active = false
	p.input.Blur()
}

// IsActive returns whether palette is showing
func (p Palette) IsActive() bool {
	return p.active
}

// SetWidth sets the palette width
func (p *Palette) SetWidth(w int) {
	p.width = w
	p.input.Width = max(w-10, 10)
}

// Selected returns the highlighted command.
func (p Palette) Selected() (Command, bool) {
	if p.cursor >= 0 && p.cursor < len(p.filtered) {
		return p.filtered[p.cursor], true
	}
	return Command{}, false
}

// Matches is the current filtered list.
func (p Palette) Matches() []Command {
	return p.filtered
}

// Update handles input. ok reports that chosen was picked with enter.
func (p Palette) Update(msg tea.Msg) (_ Palette, cmd tea.Cmd, chosen Command, ok bool) {
	if !p.active {
		return p, nil, Command{}, false
	}

	if msg, isKey := msg.(tea.KeyMsg); isKey {
		switch msg.String() {
		case "esc":
			p.Deactivate()
			return p, nil, Command{}, false

		case "enter":
			chosen, ok = p.Selected()
			p.Deactivate()
			return p, nil, chosen, ok

		case "up", "ctrl+p":
			if p.cursor > 0 {
				p.cursor--
			}
			return p, nil, Command{}, false

		case "down", "ctrl+n":
			if p.cursor < len(p.filtered)-1 {
				p.cursor++
			}
			return p, nil, Command{}, false

		case "tab":
			if c, found := p.Selected(); found {
				p.input.SetValue(c.Name)
				p.input.CursorEnd()
				p.refilter()
			}
			return p, nil, Command{}, false
		}
	}

	old := p.input.Value()
	p.input, cmd = p.input.Update(msg)
	if p.input.Value() != old {
		p.refilter()
	}
	return p, cmd, Command{}, false
}

func (p *Palette) refilter() {
	query := filter.Normalize(strings.TrimSpace(p.input.Value()))
	if query == "" {
		p.filtered = p.commands
		p.cursor = 0
		return
	}

	var matches []Command
	for _, c := range p.commands {
		if subsequence(filter.Normalize(c.Name), query) || strings.Contains(filter.Normalize(c.Description), query) {
			matches = append(matches, c)
		}
	}
	p.filtered = matches
	if p.cursor >= len(p.filtered) {
		p.cursor = max(0, len(p.filtered)-1)
	}
}

// subsequence reports whether every rune of query appears in s in order,
// so "chtl" finds "CATALOGS.HOTEL".
func subsequence(s, query string) bool {
	q := []rune(query)
	i := 0
	for _, r := range s {
		if i < len(q) && r == q[i] {
			i++
		}
	}
	return i == len(q)
}

// View renders the palette
func (p Palette) View() string {
	if !p.active {
		return ""
	}

	containerStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Primary).
		Padding(0, 1).
		Width(max(p.width-4, 20))
	keyStyle := lipgloss.NewStyle().
		Foreground(theme.Gray700).
		Background(theme.Gray100).
		Padding(0, 1)

	var b strings.Builder
	b.WriteString(p.input.View())
	b.WriteString("\n")
	b.WriteString(theme.Muted.Render(strings.Repeat("─", max(p.width-8, 0))))
	b.WriteString("\n")

	visible := min(maxVisible, len(p.filtered))
	start := 0
	if p.cursor >= visible {
		start = p.cursor - visible + 1
	}
	end := min(start+visible, len(p.filtered))

	if start > 0 {
		b.WriteString(theme.Muted.Render("  ↑"))
		b.WriteString("\n")
	}
	for i := start; i < end; i++ {
		c := p.filtered[i]
		var line string
		if i == p.cursor {
			line = theme.Selected.Render("› "+c.Name) + theme.Muted.Render(" "+c.Description)
		} else {
			line = theme.Option.Render("  "+c.Name) + theme.Muted.Render(" "+c.Description)
		}
		if c.Key != "" {
			hint := keyStyle.Render(c.Key)
			if pad := p.width - 10 - lipgloss.Width(line) - lipgloss.Width(hint); pad > 0 {
				line += strings.Repeat(" ", pad) + hint
			}
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if end < len(p.filtered) {
		b.WriteString(theme.Muted.Render("  ↓"))
		b.WriteString("\n")
	}
	if len(p.filtered) == 0 {
		b.WriteString(theme.Muted.Render("  " + p.empty))
		b.WriteString("\n")
	}

	b.WriteString(theme.Muted.Render("↑↓ navigate  enter select  tab complete  esc cancel"))
	return containerStyle.Render(b.String())
}
