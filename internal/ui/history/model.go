package history

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/meltmail/internal/keys"
	"github.com/nhle/meltmail/internal/model"
	"github.com/nhle/meltmail/internal/theme"
)

// CloseMsg signals the parent to return to the inbox.
type CloseMsg struct{}

// Model lists past notifications, newest first. Entries that were unread
// when the view opened are shown in bold.
type Model struct {
	entries  []model.Notification
	viewport viewport.Model
	keys     *keys.KeyMap
	loading  bool
	width    int
	height   int
}

// New creates a new history view model.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{
		viewport: viewport.New(width, height-2),
		keys:     k,
		width:    width,
		height:   height,
	}
}

// Update handles messages for the history view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.History) {
			return m, func() tea.Msg { return CloseMsg{} }
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the history view.
func (m Model) View() string {
	if m.loading {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("Loading notifications...")
	}
	return m.viewport.View()
}

func (m Model) renderContent() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	lines := []string{titleStyle.Render(fmt.Sprintf("Notifications (%d)", len(m.entries))), ""}

	if len(m.entries) == 0 {
		lines = append(lines, theme.DimmedStyle.Render("Nothing yet"))
	}
	for _, n := range m.entries {
		tag := theme.SeverityStyle(n.Severity).Width(9).Render(string(n.Severity))
		text := n.Message
		if !n.Read {
			text = lipgloss.NewStyle().Bold(true).Render(text)
		}
		lines = append(lines, theme.DimmedStyle.Render(n.CreatedAt.Local().Format("Jan 02 15:04:05"))+"  "+tag+text)
	}
	return strings.Join(lines, "\n")
}

// SetEntries displays entries.
func (m *Model) SetEntries(entries []model.Notification) {
	m.entries = entries
	m.loading = false
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
}
