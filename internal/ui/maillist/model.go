package maillist

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/meltmail/internal/classify"
	"github.com/nhle/meltmail/internal/inbox"
	"github.com/nhle/meltmail/internal/keys"
	"github.com/nhle/meltmail/internal/model"
	"github.com/nhle/meltmail/internal/theme"
)

// SelectedMessageMsg is sent when the user opens a message.
type SelectedMessageMsg struct {
	ID string
}

// FilterSelectedMsg is sent when the user picks a category filter.
type FilterSelectedMsg struct {
	Filter classify.Filter
}

// Empty-state texts.
const (
	NoSessionText  = "No email generated"
	NoMessagesText = "No emails yet"
	NoCategoryText = "No emails in this category"
	LoadFailedText = "Failed to load inbox"
	noSessionHint  = "Press g to create a temporary address."
	noMessagesHint = "Waiting for incoming mail. Press r to refresh."
	noCategoryHint = "Press 1 to show all emails."
)

// Model is the inbox list view component.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	view   inbox.View
	width  int
	height int
}

// New creates a new inbox list model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Inbox"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle
	l.SetStatusBarItemName("email", "emails")

	return Model{
		list:   l,
		keys:   k,
		view:   inbox.View{Filter: classify.FilterAll},
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// SetView replaces the listing. The cursor stays on the same message when
// it is still listed.
func (m *Model) SetView(v inbox.View) tea.Cmd {
	selected := ""
	if it, ok := m.list.SelectedItem().(MessageItem); ok {
		selected = it.Message.ID
	}

	m.view = v
	m.list.Title = m.title()

	items := make([]list.Item, len(v.Messages))
	cursor := 0
	for i, msg := range v.Messages {
		items[i] = MessageItem{Message: msg}
		if msg.ID == selected {
			cursor = i
		}
	}
	cmd := m.list.SetItems(items)
	if len(items) > 0 {
		m.list.Select(cursor)
	}
	return cmd
}

// Inbox returns the inbox view that is currently shown.
func (m Model) Inbox() inbox.View {
	return m.view
}

// Update handles messages for the inbox list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Select):
			item, ok := m.SelectedMessage()
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg {
				return SelectedMessageMsg{ID: item.ID}
			}

		case key.Matches(msg, m.keys.FilterAll):
			return m, selectFilter(classify.FilterAll)
		case key.Matches(msg, m.keys.FilterOTP):
			return m, selectFilter(classify.Filter(model.CategoryOTP))
		case key.Matches(msg, m.keys.FilterNotifications):
			return m, selectFilter(classify.Filter(model.CategoryNotifications))
		case key.Matches(msg, m.keys.FilterUpdates):
			return m, selectFilter(classify.Filter(model.CategoryUpdates))
		case key.Matches(msg, m.keys.FilterOther):
			return m, selectFilter(classify.Filter(model.CategoryOther))
		}
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func selectFilter(f classify.Filter) tea.Cmd {
	return func() tea.Msg { return FilterSelectedMsg{Filter: f} }
}

// SelectedMessage returns the message under the cursor.
func (m Model) SelectedMessage() (classify.Classified, bool) {
	item, ok := m.list.SelectedItem().(MessageItem)
	if !ok {
		return classify.Classified{}, false
	}
	return item.Message, true
}

// View renders the inbox list.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}
	return m.list.View()
}

func (m Model) title() string {
	title := "Inbox · " + m.view.Filter.Label()
	if m.view.Stale {
		title += " ⚠ stale"
	}
	return title
}

// EmptyState returns the heading and hint shown when nothing is listed.
func (m Model) EmptyState() (string, string) {
	switch {
	case !m.view.HasSession():
		return NoSessionText, noSessionHint
	case m.view.Err != nil && m.view.Total == 0:
		return LoadFailedText, m.view.Err.Error()
	case m.view.Total == 0:
		return NoMessagesText, noMessagesHint
	default:
		return NoCategoryText, noCategoryHint
	}
}

// renderEmptyState shows guidance text when no messages are listed.
func (m Model) renderEmptyState() string {
	heading, hint := m.EmptyState()

	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	return style.Render(
		lipgloss.NewStyle().Bold(true).Render(heading) + "\n\n" + hint,
	)
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
