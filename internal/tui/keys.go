package tui

import "github.com/charmbracelet/bubbles/key"

// boardKeys are the dashboard bindings while the create form is not focused.
type boardKeys struct {
	Up            key.Binding
	Down          key.Binding
	Filter        key.Binding
	New           key.Binding
	NextStatus    key.Binding
	PrevStatus    key.Binding
	SetNew        key.Binding
	SetInProgress key.Binding
	SetDone       key.Binding
	Delete        key.Binding
	Reload        key.Binding
	Logout        key.Binding
	Quit          key.Binding
}

func newBoardKeys() boardKeys {
	return boardKeys{
		Up:            key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:          key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Filter:        key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter")),
		New:           key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
		NextStatus:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s/S", "cycle status")),
		PrevStatus:    key.NewBinding(key.WithKeys("S")),
		SetNew:        key.NewBinding(key.WithKeys("1"), key.WithHelp("1/2/3", "set status")),
		SetInProgress: key.NewBinding(key.WithKeys("2")),
		SetDone:       key.NewBinding(key.WithKeys("3")),
		Delete:        key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "delete")),
		Reload:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Logout:        key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "log out")),
		Quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k boardKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Filter, k.New, k.NextStatus, k.SetNew, k.Delete, k.Reload, k.Logout, k.Quit}
}

func (k boardKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Filter},
		{k.New, k.NextStatus, k.SetNew, k.Delete},
		{k.Reload, k.Logout, k.Quit},
	}
}

// formKeys are active while the create form has focus.
type formKeys struct {
	NextField key.Binding
	PrevField key.Binding
	Lower     key.Binding
	Raise     key.Binding
	Submit    key.Binding
	Cancel    key.Binding
}

func newFormKeys() formKeys {
	return formKeys{
		NextField: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		PrevField: key.NewBinding(key.WithKeys("shift+tab")),
		Lower:     key.NewBinding(key.WithKeys("left", "-"), key.WithHelp("←/→", "priority")),
		Raise:     key.NewBinding(key.WithKeys("right", "+")),
		Submit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "create")),
		Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

func (k formKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.NextField, k.Lower, k.Submit, k.Cancel}
}

func (k formKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// loginKeys are the login view bindings.
type loginKeys struct {
	Switch key.Binding
	Toggle key.Binding
	Submit key.Binding
	Quit   key.Binding
}

func newLoginKeys() loginKeys {
	return loginKeys{
		Switch: key.NewBinding(key.WithKeys("tab", "shift+tab", "up", "down"), key.WithHelp("tab", "switch field")),
		Toggle: key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "sign in / sign up")),
		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		Quit:   key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "quit")),
	}
}

func (k loginKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Switch, k.Toggle, k.Submit, k.Quit}
}

func (k loginKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
