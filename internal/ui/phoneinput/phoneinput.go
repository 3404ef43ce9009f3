// Package phoneinput is a phone number field: a country picker listing
// localized names with flags and calling codes, next to a digits-only number
// input. Every edit emits the value as "+<code> <number>".
package phoneinput

import (
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/crmdesk/internal/filter"
	"github.com/abelbrown/crmdesk/internal/i18n"
	"github.com/abelbrown/crmdesk/internal/phone"
	"github.com/abelbrown/crmdesk/internal/ui/theme"
)

const listHeight = 6

// ChangedMsg carries the combined value after a country or number edit.
type ChangedMsg struct {
	ID    int
	Value string // "+52 5512345678"
}

type field int

const (
	fieldCountry field = iota
	fieldNumber
)

var lastID atomic.Int64

// Model is a phone input.
type Model struct {
	id int
	tr i18n.Translator

	country string // region, "MX"
	number  textinput.Model

	search  textinput.Model
	picking bool
	matches []phone.Country
	cursor  int

	focus       field
	focused     bool
	disabled    bool
	onlyNumbers bool
	initialized bool
}

// New creates a phone input defaulting to phone.DefaultCountry.
func New(tr i18n.Translator) Model {
	num := textinput.New()
	num.Prompt = ""
	num.CharLimit = phone.MaxLength
	num.Placeholder = tr.T("phone.number")

	search := textinput.New()
	search.Prompt = "⌕ "
	search.Placeholder = tr.T("phone.searchCountry")

	return Model{
		id:          int(lastID.Add(1)),
		tr:          tr,
		country:     phone.DefaultCountry,
		number:      num,
		search:      search,
		focus:       fieldNumber,
		onlyNumbers: true,
	}
}

// ID identifies the input in ChangedMsg.
func (m Model) ID() int { return m.id }

// SetOnlyNumbers toggles the digits-only key filter.
func (m *Model) SetOnlyNumbers(v bool) { m.onlyNumbers = v }

// SetDisabled makes the input read-only.
func (m *Model) SetDisabled(v bool) {
	m.disabled = v
	if v {
		m.picking = false
	}
}

// SetInitialValue seeds country and number from a stored value. Only the
// first non-empty value is applied.
func (m *Model) SetInitialValue(v string) {
	if v == "" || m.initialized {
		return
	}
	p := phone.ParseWithDefault(v)
	m.country = p.Country
	m.number.SetValue(p.National)
	m.initialized = true
}

// Country returns the selected region.
func (m Model) Country() string { return m.country }

// Number returns the typed national number.
func (m Model) Number() string { return m.number.Value() }

// Value returns "+<code> <number>".
func (m Model) Value() string {
	return phone.CallingCode(m.country) + " " + m.number.Value()
}

// Picking reports whether the country list is open.
func (m Model) Picking() bool { return m.picking }

// Matches returns the countries currently listed by the picker.
func (m Model) Matches() []phone.Country { return m.matches }

// Focus gives the input keyboard focus on the number field.
func (m *Model) Focus() tea.Cmd {
	m.focused = true
	m.focus = fieldNumber
	return m.number.Focus()
}

// Blur removes keyboard focus and closes the picker.
func (m *Model) Blur() {
	m.focused = false
	m.picking = false
	m.number.Blur()
	m.search.Blur()
}

// Focused reports keyboard focus.
func (m Model) Focused() bool { return m.focused }

// Update handles keys.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok || !m.focused || m.disabled {
		return m, nil
	}
	if m.picking {
		return m.updatePicker(key)
	}

	switch key.String() {
	case "shift+tab":
		if m.focus == fieldNumber {
			m.focus = fieldCountry
			m.number.Blur()
		}
		return m, nil
	case "tab":
		if m.focus == fieldCountry {
			m.focus = fieldNumber
			return m, m.number.Focus()
		}
		return m, nil
	}

	if m.focus == fieldCountry {
		if key.String() == "enter" || key.String() == " " {
			return m.openPicker()
		}
		return m, nil
	}

	if m.onlyNumbers && !phone.OnlyDigitsKey(key.String()) {
		return m, nil
	}
	before := m.number.Value()
	var cmd tea.Cmd
	m.number, cmd = m.number.Update(key)
	if m.number.Value() == before {
		return m, cmd
	}
	return m, tea.Batch(cmd, m.changed())
}

func (m Model) openPicker() (Model, tea.Cmd) {
	m.picking = true
	m.search.SetValue("")
	m.refilter()
	for i, c := range m.matches {
		if c.Region == m.country {
			m.cursor = i
		}
	}
	return m, m.search.Focus()
}

func (m Model) updatePicker(key tea.KeyMsg) (Model, tea.Cmd) {
	switch key.String() {
	case "esc":
		m.picking = false
		m.search.Blur()
		return m, nil
	case "up", "ctrl+p":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "ctrl+n":
		if m.cursor < len(m.matches)-1 {
			m.cursor++
		}
		return m, nil
	case "enter":
		if m.cursor >= len(m.matches) {
			return m, nil
		}
		m.country = m.matches[m.cursor].Region
		m.picking = false
		m.search.Blur()
		return m, m.changed()
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(key)
	if m.search.Value() != before {
		m.refilter()
		m.cursor = 0
	}
	return m, cmd
}

// refilter lists the countries whose localized name matches the search,
// ignoring case and accents.
func (m *Model) refilter() {
	all := phone.Countries(m.tr.Language())
	m.matches = filter.ByLabel(all, m.search.Value(), func(c phone.Country) string { return c.Name })
}

func (m Model) changed() tea.Cmd {
	id, value := m.id, m.Value()
	return func() tea.Msg { return ChangedMsg{ID: id, Value: value} }
}

// View renders the compact country label, the number field and, while
// picking, the country list.
func (m Model) View() string {
	label := phone.Flag(m.country) + " " + phone.CallingCode(m.country)

	countryStyle := theme.Input
	numberStyle := theme.Input
	if m.focused && m.focus == fieldCountry {
		countryStyle = theme.InputFocused
	}
	if m.focused && m.focus == fieldNumber {
		numberStyle = theme.InputFocused
	}
	if m.disabled {
		countryStyle = countryStyle.Foreground(theme.Gray600)
		numberStyle = numberStyle.Foreground(theme.Gray600)
	}

	row := lipgloss.JoinHorizontal(lipgloss.Top,
		countryStyle.Render(label),
		numberStyle.Render(m.number.View()),
	)
	if !m.picking {
		return row
	}
	return row + "\n" + m.pickerView()
}

func (m Model) pickerView() string {
	var b strings.Builder
	b.WriteString(m.search.View())

	start := 0
	if m.cursor >= listHeight {
		start = m.cursor - listHeight + 1
	}
	end := min(start+listHeight, len(m.matches))
	for i := start; i < end; i++ {
		c := m.matches[i]
		line := c.Flag + " " + c.Name + " " + theme.Muted.Render(c.CallingCode)
		b.WriteString("\n")
		if i == m.cursor {
			b.WriteString(theme.Selected.Render(line))
		} else {
			b.WriteString(theme.Option.Render(line))
		}
	}
	if len(m.matches) == 0 {
		b.WriteString("\n" + theme.Muted.Render(m.tr.T("select.noResults")))
	}
	return b.String()
}
