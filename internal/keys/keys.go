package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Selection
	Select key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Command palette
	Command key.Binding

	// Help toggle
	Help key.Binding

	// Settings view
	Settings key.Binding

	// Notification history
	History key.Binding

	// Mailbox
	Generate key.Binding
	Delete   key.Binding
	Copy     key.Binding

	// Inbox refresh
	Refresh     key.Binding
	AutoRefresh key.Binding

	// Category filters
	FilterAll           key.Binding
	FilterOTP           key.Binding
	FilterNotifications key.Binding
	FilterUpdates       key.Binding
	FilterOther         key.Binding

	// Message actions
	ExtractOTP key.Binding
	CopyOTP    key.Binding
	Source     key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open email"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Command: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command palette"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Settings: key.NewBinding(
			key.WithKeys(","),
			key.WithHelp(",", "settings"),
		),
		History: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "notifications"),
		),
		Generate: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "new address"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete address"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy address"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		AutoRefresh: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "auto-refresh"),
		),
		FilterAll: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "all"),
		),
		FilterOTP: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "otp"),
		),
		FilterNotifications: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "notifications"),
		),
		FilterUpdates: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "updates"),
		),
		FilterOther: key.NewBinding(
			key.WithKeys("5"),
			key.WithHelp("5", "other"),
		),
		ExtractOTP: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "extract otp"),
		),
		CopyOTP: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy otp"),
		),
		Source: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "raw source"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Generate, k.Copy, k.Refresh, k.Select,
		k.Back, k.Quit, k.Help,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Back, k.Quit},
		{k.Generate, k.Delete, k.Copy, k.Command, k.Settings, k.History, k.Help},
		{k.Refresh, k.AutoRefresh, k.FilterAll, k.FilterOTP, k.FilterNotifications, k.FilterUpdates, k.FilterOther},
		{k.ExtractOTP, k.CopyOTP, k.Source},
	}
}
