package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/crmdesk/internal/i18n"
	"github.com/abelbrown/crmdesk/internal/notify"
)

// View renders the shell.
func (a App) View() string {
	tr := a.cfg.Translator
	if !a.ready {
		return tr.T("ui.loading") + "..."
	}

	if a.debugVisible {
		panel := lipgloss.Place(a.width, max(a.height-1, 1), lipgloss.Center, lipgloss.Center, a.debugOverlay())
		return panel + "\n" + debugStatusBar(a.width)
	}

	var sections []string
	sections = append(sections, a.headerView())
	sections = append(sections, a.bodyView())
	sections = append(sections, a.pagerView())

	switch a.overlay {
	case overlaySearch:
		sections = append(sections, OverlayPanel.Render(tr.T("ui.search")+"\n"+a.search.View()))
	case overlayPhone:
		sections = append(sections, a.phoneView())
	case overlayCommand:
		sections = append(sections, a.palette.View())
	}

	if toasts := a.toastsView(); toasts != "" {
		sections = append(sections, toasts)
	}
	sections = append(sections, a.statusView())
	return strings.Join(sections, "\n")
}

func (a App) headerView() string {
	tr := a.cfg.Translator
	left := HeaderBar.Render(a.current().Name)
	if a.filter != "" {
		left += " " + StatusBarText.Render(a.filter)
	}

	var right []string
	if a.cfg.Languages != nil {
		right = append(right, tr.T("ui.language")+": "+string(a.cfg.Languages.Language()))
	}
	if !a.compact() {
		right = append(right, a.signedInView(tr))
	}
	r := StatusBarText.Render(strings.Join(right, "  "))

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(r)
	if gap < 1 {
		return left
	}
	return left + strings.Repeat(" ", gap) + r
}

func (a App) signedInView(tr i18n.Translator) string {
	switch {
	case a.claims.Name != "":
		return tr.T("ui.signedInAs", a.claims.Name)
	case a.claims.Email != "":
		return tr.T("ui.signedInAs", a.claims.Email)
	case a.claims.Subject != "":
		return tr.T("ui.signedInAs", a.claims.Subject)
	}
	return tr.T("ui.notSignedIn")
}

func (a App) bodyView() string {
	tr := a.cfg.Translator
	switch {
	case a.err != nil && len(a.rows) == 0:
		return ErrorStyle.Width(a.width).Render(tr.T("auth.errorQuerying") + ": " + a.err.Error())
	case len(a.rows) == 0 && a.loading:
		return EmptyStyle.Render(tr.T("ui.loading") + "...")
	case len(a.rows) == 0:
		return EmptyStyle.Render(tr.T("ui.empty"))
	}
	return a.table.View()
}

func (a App) pagerView() string {
	tr := a.cfg.Translator
	line := tr.T("ui.page", a.pager.Page+1, max(a.pager.TotalPages, 1)) +
		"  " + tr.T("ui.total", a.total)
	if a.loading {
		line += "  " + tr.T("ui.loading") + "..."
	}
	if a.saving != "" {
		line += "  [" + a.saving + "]"
	}
	return StatusBarText.Render(line)
}

func (a App) phoneView() string {
	tr := a.cfg.Translator
	var b strings.Builder
	b.WriteString(tr.T("ui.phoneDemo"))
	if row, ok := a.selected(); ok {
		b.WriteString(" " + StatusBarText.Render(row.String("name")))
	}
	b.WriteString("\n" + a.phone.View())
	if a.phoneErr != "" {
		b.WriteString("\n" + ErrorStyle.Render(a.phoneErr))
	}
	b.WriteString("\n" + a.save.View())
	return OverlayPanel.Render(b.String())
}

func (a App) toastsView() string {
	if a.cfg.Notices == nil {
		return ""
	}
	var out []string
	for _, n := range a.cfg.Notices.Active() {
		text := n.Text
		if a.compact() {
			text = truncateRunes(text, max(a.width-6, 10))
		}
		out = append(out, ToastStyle(n.Level).Render(toastLine(n, text)))
	}
	return strings.Join(out, "\n")
}

func toastLine(n notify.Notice, text string) string {
	if icon := n.Level.Icon(); icon != "" {
		return icon + " " + text
	}
	return text
}

func (a App) statusView() string {
	a.help.ShowAll = false
	hints := a.help.ShortHelpView(a.keys.short(a.compact()))
	if a.cfg.Features.Debug && !a.compact() {
		hints += "  " + StatusBarKey.Render("?") + StatusBarText.Render(" debug")
	}
	return StatusBar.Width(a.width).Render(fmt.Sprintf(" %s", hints))
}
