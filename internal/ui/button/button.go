// Package button is a focusable push button with variants, sizes, a loading
// state and a spring-driven press ripple.
package button

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/crmdesk/internal/ui/theme"
)

// Variant selects the button's colors.
type Variant string

const (
	Default        Variant = "default"
	Secondary      Variant = "secondary"
	Tertiary       Variant = "tertiary"
	Fill           Variant = "fill"
	FillGray       Variant = "fill-gray"
	FillWhite      Variant = "fill-white"
	MenuResponsive Variant = "menuResponsive"
	Flag           Variant = "flag"
	DangerFill     Variant = "danger-fill"
)

// Size selects padding.
type Size string

const (
	SizeDefault Size = "default"
	SizeSmall   Size = "sm"
	SizeLarge   Size = "lg"
	SizeIcon    Size = "icon"
)

type palette struct {
	fg, bg, ripple lipgloss.Color
	border         bool
}

var palettes = map[Variant]palette{
	Default:        {fg: theme.Primary800, bg: theme.Accent, ripple: theme.White},
	Secondary:      {fg: theme.Primary, bg: "", ripple: theme.Primary100, border: true},
	Tertiary:       {fg: theme.Primary, bg: "", ripple: theme.Primary100},
	Fill:           {fg: theme.Primary, bg: theme.Primary100, ripple: theme.Primary300},
	FillGray:       {fg: theme.Gray700, bg: theme.Gray100, ripple: theme.Gray300},
	FillWhite:      {fg: theme.Gray100, bg: "", ripple: theme.Gray300},
	MenuResponsive: {fg: theme.White, bg: theme.Primary900, ripple: theme.Primary400},
	Flag:           {fg: theme.Gray700, bg: theme.White, ripple: theme.Gray100, border: true},
	DangerFill:     {fg: theme.Error, bg: theme.ErrorBg, ripple: theme.Error},
}

func padding(s Size) int {
	switch s {
	case SizeSmall:
		return 1
	case SizeLarge:
		return 4
	case SizeIcon:
		return 0
	default:
		return 2
	}
}

var lastID atomic.Int64

// PressedMsg is sent when an enabled button is activated.
type PressedMsg struct {
	ID int
}

type frameMsg struct {
	id int
}

const fps = 60

// Model is a button.
type Model struct {
	id       int
	Label    string
	Variant  Variant
	Size     Size
	Start    string // content before the label, hidden while loading
	End      string // content after the label, hidden while loading
	disabled bool
	loading  bool
	focused  bool

	spinner spinner.Model

	spring   harmonica.Spring
	ripple   float64 // 0..1 share of the width covered by the press ripple
	velocity float64
	target   float64
}

// New creates a button.
func New(label string, variant Variant, size Size) Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	return Model{
		id:      int(lastID.Add(1)),
		Label:   label,
		Variant: variant,
		Size:    size,
		spinner: sp,
		spring:  harmonica.NewSpring(harmonica.FPS(fps), 8.0, 0.9),
	}
}

// ID identifies the button in PressedMsg.
func (m Model) ID() int { return m.id }

// Focus gives the button keyboard focus.
func (m *Model) Focus() { m.focused = true }

// Blur removes keyboard focus.
func (m *Model) Blur() { m.focused = false }

// Focused reports keyboard focus.
func (m Model) Focused() bool { return m.focused }

// SetDisabled enables or disables the button.
func (m *Model) SetDisabled(v bool) { m.disabled = v }

// Disabled reports whether presses are ignored. A loading button is disabled.
func (m Model) Disabled() bool { return m.disabled || m.loading }

// Loading reports the loading state.
func (m Model) Loading() bool { return m.loading }

// SetLoading toggles the spinner. The returned command starts it.
func (m *Model) SetLoading(v bool) tea.Cmd {
	m.loading = v
	if v {
		return m.spinner.Tick
	}
	return nil
}

// Animating reports whether the press ripple is still moving.
func (m Model) Animating() bool {
	return m.target > 0 || m.ripple > 0.01
}

// Press activates the button as if enter had been hit.
func (m Model) Press() (Model, tea.Cmd) {
	if m.Disabled() {
		return m, nil
	}
	m.ripple, m.velocity, m.target = 0, 0, 1
	id := m.id
	return m, tea.Batch(
		func() tea.Msg { return PressedMsg{ID: id} },
		m.frame(),
	)
}

func (m Model) frame() tea.Cmd {
	id := m.id
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return frameMsg{id: id} })
}

// Update handles presses, spinner ticks and animation frames.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			return m, nil
		}
		switch msg.String() {
		case "enter", " ":
			return m.Press()
		}
		return m, nil

	case frameMsg:
		if msg.id != m.id {
			return m, nil
		}
		m.ripple, m.velocity = m.spring.Update(m.ripple, m.velocity, m.target)
		if m.target > 0 && m.ripple >= 0.98 {
			// Fully expanded: fade out.
			m.target = 0
		}
		if !m.Animating() {
			m.ripple, m.velocity = 0, 0
			return m, nil
		}
		return m, m.frame()

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the button on one line.
func (m Model) View() string {
	p, ok := palettes[m.Variant]
	if !ok {
		p = palettes[Default]
	}

	var parts []string
	if m.loading {
		parts = append(parts, m.spinner.View())
	} else if m.Start != "" {
		parts = append(parts, m.Start)
	}
	if m.Label != "" {
		parts = append(parts, m.Label)
	}
	if !m.loading && m.End != "" {
		parts = append(parts, m.End)
	}
	content := strings.Join(parts, " ")

	pad := strings.Repeat(" ", padding(m.Size))
	text := []rune(pad + content + pad)

	base := lipgloss.NewStyle().Foreground(p.fg).Bold(true)
	if p.bg != "" {
		base = base.Background(p.bg)
	}
	if m.Disabled() {
		base = base.Foreground(theme.Gray600).Background(theme.Gray50)
	}
	if m.focused {
		base = base.Underline(true)
	}

	var out string
	if n := int(float64(len(text)) * min(m.ripple, 1)); n > 0 && !m.Disabled() {
		out = base.Background(p.ripple).Render(string(text[:n])) + base.Render(string(text[n:]))
	} else {
		out = base.Render(string(text))
	}
	if p.border {
		border := theme.Primary400
		if m.Disabled() {
			border = theme.Gray500
		}
		out = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true).
			BorderForeground(border).
			Render(out)
	}
	return out
}
