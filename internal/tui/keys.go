package tui

import "github.com/charmbracelet/bubbles/key"

// #region keymap
type keyMap struct {
	Option1 key.Binding
	Option2 key.Binding
	Next    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Option1: key.NewBinding(key.WithKeys("1", "left", "h"), key.WithHelp("1/←", "left option")),
		Option2: key.NewBinding(key.WithKeys("2", "right", "l"), key.WithHelp("2/→", "right option")),
		Next:    key.NewBinding(key.WithKeys("enter", " ", "n"), key.WithHelp("enter", "next")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Option1, k.Option2, k.Next, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Option1, k.Option2}, {k.Next, k.Quit}}
}
// #endregion keymap
