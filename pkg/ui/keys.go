package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the TUI bindings. Printable keys always go to the focused
// search box, so commands use control chords.
type KeyMap struct {
	Next     key.Binding
	Prev     key.Binding
	Up       key.Binding
	Down     key.Binding
	Select   key.Binding
	Clear    key.Binding
	Swap     key.Binding
	Hover    key.Binding
	Copy     key.Binding
	Export   key.Binding
	Actions  []key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Dismiss  key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	km := KeyMap{
		Next:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next slot")),
		Prev:     key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("S-tab", "prev slot")),
		Up:       key.NewBinding(key.WithKeys("up", "ctrl+p"), key.WithHelp("↑", "suggestion")),
		Down:     key.NewBinding(key.WithKeys("down", "ctrl+n"), key.WithHelp("↓", "suggestion")),
		Select:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "bind")),
		Clear:    key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("^x", "clear")),
		Swap:     key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("^s", "swap")),
		Hover:    key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("^t", "highlight")),
		Copy:     key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("^y", "copy")),
		Export:   key.NewBinding(key.WithKeys("ctrl+e"), key.WithHelp("^e", "snapshot")),
		PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll")),
		PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll")),
		Dismiss:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close/quit")),
		Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("^c", "quit")),
	}
	for _, k := range []string{"1", "2", "3", "4"} {
		km.Actions = append(km.Actions, key.NewBinding(key.WithKeys("alt+"+k), key.WithHelp("M-"+k, "quest action")))
	}
	return km
}

// ShortHelp lists the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Select, k.Clear, k.Swap, k.Hover, k.Copy, k.Export, k.Quit}
}

// FullHelp groups every binding.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.Up, k.Down, k.Select},
		{k.Clear, k.Swap, k.Hover},
		{k.Copy, k.Export, k.PageUp, k.PageDown, k.Dismiss, k.Quit},
		k.Actions,
	}
}
