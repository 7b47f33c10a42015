package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Open        key.Binding
	Back        key.Binding
	Refresh     key.Binding
	NewSpace    key.Binding
	EnterSpace  key.Binding
	DeleteSpace key.Binding
	Extend      key.Binding
	PrevSpace   key.Binding
	NextSpace   key.Binding
	Text        key.Binding
	Upload      key.Binding
	Paste       key.Binding
	Edit        key.Binding
	Delete      key.Binding
	Download    key.Binding
	Copy        key.Binding
	Markdown    key.Binding
	Logout      key.Binding
	Cancel      key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Open:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Back:        key.NewBinding(key.WithKeys("backspace", "b"), key.WithHelp("b", "home")),
		Refresh:     key.NewBinding(key.WithKeys("r", "f5"), key.WithHelp("r", "refresh")),
		NewSpace:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new space")),
		EnterSpace:  key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "enter by password")),
		DeleteSpace: key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "delete space")),
		Extend:      key.NewBinding(key.WithKeys("+"), key.WithHelp("+", "extend 24h")),
		PrevSpace:   key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev space")),
		NextSpace:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next space")),
		Text:        key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "new text")),
		Upload:      key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "upload")),
		Paste:       key.NewBinding(key.WithKeys("p", "ctrl+v"), key.WithHelp("p", "paste clipboard")),
		Edit:        key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Delete:      key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "delete")),
		Download:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "download")),
		Copy:        key.NewBinding(key.WithKeys("c", "y"), key.WithHelp("c", "copy text")),
		Markdown:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "markdown")),
		Logout:      key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "logout")),
		Cancel:      key.NewBinding(key.WithKeys("esc", "ctrl+g"), key.WithHelp("esc", "cancel")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Text, k.Upload, k.Delete, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Open, k.Back, k.Refresh, k.PrevSpace, k.NextSpace},
		{k.NewSpace, k.EnterSpace, k.DeleteSpace, k.Extend},
		{k.Text, k.Upload, k.Paste, k.Edit, k.Delete},
		{k.Download, k.Copy, k.Markdown},
		{k.Cancel, k.Logout, k.Help, k.Quit},
	}
}
