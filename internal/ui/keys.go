package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the shell's bindings.
type keyMap struct {
	Quit       key.Binding
	PrevPage   key.Binding
	NextPage   key.Binding
	Activate   key.Binding
	Deactivate key.Binding
	Terminate  key.Binding
	Reopen     key.Binding
	Refresh    key.Binding
	Search     key.Binding
	Clear      key.Binding
	Phone      key.Binding
	Resource   key.Binding
	Language   key.Binding
	Jump       key.Binding
	Debug      key.Binding
	Close      key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		PrevPage:   key.NewBinding(key.WithKeys("left", "h", "pgup"), key.WithHelp("←", "prev")),
		NextPage:   key.NewBinding(key.WithKeys("right", "l", "pgdown"), key.WithHelp("→", "next")),
		Activate:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "activate")),
		Deactivate: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "deactivate")),
		Terminate:  key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "terminate")),
		Reopen:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "reopen")),
		Refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Search:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Clear:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear filter")),
		Phone:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "phone")),
		Resource:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "resource")),
		Language:   key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "language")),
		Jump:       key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "jump")),
		Debug:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "debug")),
		Close:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
	}
}

// short returns the bindings shown in the status bar, most used first.
func (k keyMap) short(compact bool) []key.Binding {
	if compact {
		return []key.Binding{k.Activate, k.Deactivate, k.Search, k.Quit}
	}
	return []key.Binding{
		k.PrevPage, k.NextPage,
		k.Activate, k.Deactivate, k.Terminate, k.Reopen,
		k.Search, k.Phone, k.Resource, k.Jump, k.Language, k.Quit,
	}
}
