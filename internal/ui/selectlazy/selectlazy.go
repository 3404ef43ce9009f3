// Package selectlazy is a searchable select whose options come from a remote
// search. Keystrokes are debounced; once the window elapses with at least
// MinLength characters typed, one search is issued. Every search mints a new
// token and only the response carrying the latest token is shown. Older
// responses are dropped however late they arrive.
package selectlazy

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/crmdesk/internal/i18n"
	"github.com/abelbrown/crmdesk/internal/otel"
	"github.com/abelbrown/crmdesk/internal/ui/theme"
)

const (
	DefaultDebounce  = 800 * time.Millisecond
	DefaultMinLength = 3
	maxVisible       = 8
)

// Option is one selectable entry. A search replaces the whole list.
type Option struct {
	Value string
	Label string
	Key   string // optional auxiliary key
	Data  any
}

// SearchFunc resolves a search term to options.
type SearchFunc func(ctx context.Context, term string) ([]Option, error)

// RenderFunc draws one option line.
type RenderFunc func(o Option, selected, active bool) string

// State is the request state machine.
type State int

const (
	Idle State = iota
	Debouncing
	Fetching
)

func (s State) String() string {
	switch s {
	case Debouncing:
		return "debouncing"
	case Fetching:
		return "fetching"
	default:
		return "idle"
	}
}

// Config configures a Model. Zero values take the defaults.
type Config struct {
	Search    SearchFunc
	Debounce  time.Duration
	MinLength int
	Multi     bool
	Render    RenderFunc
	// Context bounds the search calls. Searches are never canceled per
	// keystroke; stale results are discarded by token instead.
	Context     context.Context
	Translator  i18n.Translator
	Diag        *otel.Logger
	Placeholder string
	Width       int
}

// ChangedMsg is sent when the selection changes.
type ChangedMsg struct {
	ID     int
	Values []Option
}

type debounceMsg struct {
	id   int
	seq  int
	term string
}

type resultMsg struct {
	id      int
	token   int
	term    string
	options []Option
	err     error
}

// requests is the instance-owned sequencing state. seq tags debounce timers,
// token tags searches.
type requests struct {
	seq   int
	token int
}

var lastID atomic.Int64

// Model is a debounced remote select.
type Model struct {
	id  int
	cfg Config

	input   textinput.Model
	spinner spinner.Model

	req     requests
	state   State
	options []Option
	err     error
	cursor  int

	selected []Option
	focused  bool
}

// New creates a select.
func New(cfg Config) Model {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultMinLength
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}

	ti := textinput.New()
	ti.Prompt = "⌕ "
	ti.Placeholder = cfg.Placeholder
	if ti.Placeholder == "" {
		ti.Placeholder = cfg.Translator.T("select.placeholder")
	}
	if cfg.Width > 0 {
		ti.Width = cfg.Width
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		id:      int(lastID.Add(1)),
		cfg:     cfg,
		input:   ti,
		spinner: sp,
	}
}

// ID identifies the select in ChangedMsg.
func (m Model) ID() int { return m.id }

// State returns the current request state.
func (m Model) State() State { return m.state }

// Token returns the latest minted search token.
func (m Model) Token() int { return m.req.token }

// Options returns the visible options.
func (m Model) Options() []Option { return m.options }

// Err returns the last search error for the current token.
func (m Model) Err() error { return m.err }

// Values returns the selection.
func (m Model) Values() []Option { return m.selected }

// Value returns the single selection, if any.
func (m Model) Value() (Option, bool) {
	if len(m.selected) == 0 {
		return Option{}, false
	}
	return m.selected[0], true
}

// Term returns the typed text.
func (m Model) Term() string { return m.input.Value() }

// Focused reports keyboard focus.
func (m Model) Focused() bool { return m.focused }

// Focus gives the select keyboard focus.
func (m *Model) Focus() tea.Cmd {
	m.focused = true
	return m.input.Focus()
}

// Blur removes keyboard focus.
func (m *Model) Blur() {
	m.focused = false
	m.input.Blur()
}

// SetValues replaces the selection without emitting ChangedMsg.
func (m *Model) SetValues(values ...Option) {
	m.selected = append([]Option(nil), values...)
}

// Reset clears the term, options and selection. Pending responses are
// discarded.
func (m *Model) Reset() {
	m.input.SetValue("")
	m.req.seq++
	m.req.token++
	m.state = Idle
	m.options = nil
	m.selected = nil
	m.err = nil
	m.cursor = 0
}

// Update handles keys, debounce timers, search results and spinner ticks.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			return m, nil
		}
		return m.handleKey(msg)

	case debounceMsg:
		if msg.id != m.id || msg.seq != m.req.seq {
			return m, nil
		}
		return m.search(msg.term)

	case resultMsg:
		if msg.id != m.id {
			return m, nil
		}
		if msg.token != m.req.token {
			m.cfg.Diag.Emit(otel.Event{
				Level: otel.LevelDebug,
				Kind:  otel.KindSelectDiscard,
				Comp:  "select",
				Query: msg.term,
				Count: len(msg.options),
				Msg:   fmt.Sprintf("token %d superseded by %d", msg.token, m.req.token),
			})
			return m, nil
		}
		if m.state == Fetching {
			m.state = Idle
		}
		m.options = msg.options
		m.err = msg.err
		m.cursor = 0
		return m, nil

	case spinner.TickMsg:
		if m.state != Fetching {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "up", "ctrl+p":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "ctrl+n":
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
		return m, nil
	case "enter":
		return m.choose()
	case "ctrl+u":
		if len(m.selected) == 0 {
			return m, nil
		}
		m.selected = nil
		return m, m.changed()
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() == before {
		return m, cmd
	}
	wait := m.debounce(m.input.Value())
	return m, tea.Batch(cmd, wait)
}

// debounce restarts the window for term. Only the timer tagged with the
// latest seq is honored when it fires.
func (m *Model) debounce(term string) tea.Cmd {
	m.req.seq++
	m.state = Debouncing
	id, seq := m.id, m.req.seq
	return tea.Tick(m.cfg.Debounce, func(time.Time) tea.Msg {
		return debounceMsg{id: id, seq: seq, term: term}
	})
}

// search issues a request for term, or clears the options when term is
// below the length threshold.
func (m Model) search(term string) (Model, tea.Cmd) {
	// Any response still in flight is stale from here on.
	m.req.token++
	m.options = nil
	m.err = nil
	m.cursor = 0

	if term == "" || utf8.RuneCountInString(term) < m.cfg.MinLength || m.cfg.Search == nil {
		m.state = Idle
		return m, nil
	}

	m.state = Fetching
	m.cfg.Diag.Emit(otel.Event{
		Level: otel.LevelDebug,
		Kind:  otel.KindSelectSearch,
		Comp:  "select",
		Query: term,
		Count: m.req.token,
	})

	id, token, search, ctx := m.id, m.req.token, m.cfg.Search, m.cfg.Context
	fetch := func() tea.Msg {
		opts, err := search(ctx, term)
		return resultMsg{id: id, token: token, term: term, options: opts, err: err}
	}
	return m, tea.Batch(fetch, m.spinner.Tick)
}

func (m Model) choose() (Model, tea.Cmd) {
	if m.cursor >= len(m.options) {
		return m, nil
	}
	opt := m.options[m.cursor]

	if !m.cfg.Multi {
		m.selected = []Option{opt}
		return m, m.changed()
	}

	for i, s := range m.selected {
		if s.Value == opt.Value {
			m.selected = append(m.selected[:i:i], m.selected[i+1:]...)
			return m, m.changed()
		}
	}
	m.selected = append(m.selected, opt)
	return m, m.changed()
}

func (m Model) changed() tea.Cmd {
	id := m.id
	values := append([]Option(nil), m.selected...)
	return func() tea.Msg { return ChangedMsg{ID: id, Values: values} }
}

func (m Model) isSelected(o Option) bool {
	for _, s := range m.selected {
		if s.Value == o.Value {
			return true
		}
	}
	return false
}

// View renders the input, the selection and the option list.
func (m Model) View() string {
	var b strings.Builder

	frame := theme.Input
	if m.focused {
		frame = theme.InputFocused
	}
	b.WriteString(frame.Render(m.input.View()))
	b.WriteString("\n")

	if len(m.selected) > 0 {
		labels := make([]string, len(m.selected))
		for i, s := range m.selected {
			labels[i] = s.Label
		}
		if m.cfg.Multi {
			b.WriteString(theme.Muted.Render(m.cfg.Translator.T("select.selected", len(m.selected))+": ") +
				strings.Join(labels, ", "))
		} else {
			b.WriteString(theme.Checked.Render("✓ ") + labels[0])
		}
		b.WriteString("\n")
	}

	switch {
	case m.state == Fetching:
		b.WriteString(" " + m.spinner.View())
	case len(m.options) == 0 && m.state == Idle && m.input.Value() != "" &&
		utf8.RuneCountInString(m.input.Value()) < m.cfg.MinLength:
		b.WriteString(theme.Muted.Render(m.cfg.Translator.T("select.minLength", m.cfg.MinLength)))
	case len(m.options) == 0 && m.state == Idle && m.input.Value() != "":
		b.WriteString(theme.Muted.Render(m.cfg.Translator.T("select.noResults")))
	default:
		b.WriteString(m.renderOptions())
	}
	return b.String()
}

func (m Model) renderOptions() string {
	render := m.cfg.Render
	if render == nil {
		render = defaultRender
	}

	start := 0
	if m.cursor >= maxVisible {
		start = m.cursor - maxVisible + 1
	}
	end := min(start+maxVisible, len(m.options))

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		o := m.options[i]
		lines = append(lines, render(o, m.isSelected(o), i == m.cursor))
	}
	return strings.Join(lines, "\n")
}

func defaultRender(o Option, selected, active bool) string {
	mark := "  "
	if selected {
		mark = theme.Checked.Render("✓ ")
	}
	if active {
		return theme.Selected.Render(mark + o.Label)
	}
	return theme.Option.Render(mark + o.Label)
}
