package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	enter    key.Binding
	back     key.Binding
	refresh  key.Binding
	history  key.Binding
	link     key.Binding
	signIn   key.Binding
	signOut  key.Binding
	player   key.Binding
	reader   key.Binding
	play     key.Binding
	next     key.Binding
	prev     key.Binding
	forward  key.Binding
	rewind   key.Binding
	faster   key.Binding
	slower   key.Binding
	autoNext key.Binding
	forget   key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		back:     key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
		refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		history:  key.NewBinding(key.WithKeys("H"), key.WithHelp("H", "history")),
		link:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open link")),
		signIn:   key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "sign in")),
		signOut:  key.NewBinding(key.WithKeys("O"), key.WithHelp("O", "sign out")),
		player:   key.NewBinding(key.WithKeys("P"), key.WithHelp("P", "player")),
		reader:   key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reader")),
		play:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		next:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		prev:     key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "prev")),
		forward:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "forward")),
		rewind:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "back")),
		faster:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "faster")),
		slower:   key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "slower")),
		autoNext: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "auto-next")),
		forget:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "forget")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.enter, k.back, k.refresh, k.history, k.link},
		{k.play, k.next, k.prev, k.forward, k.rewind},
		{k.faster, k.slower, k.autoNext, k.signIn, k.signOut, k.quit},
	}
}
