package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/meltmail/internal/inbox"
	"github.com/nhle/meltmail/internal/keys"
	"github.com/nhle/meltmail/internal/render"
	"github.com/nhle/meltmail/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// ExtractOTPMsg asks the parent to look for a code in the open message.
type ExtractOTPMsg struct{}

// CopyOTPMsg asks the parent to copy the extracted code.
type CopyOTPMsg struct {
	Code string
}

// SourceRequestMsg asks the parent to load the raw source.
type SourceRequestMsg struct{}

// Model is the message detail view component.
type Model struct {
	detail   *inbox.Detail
	code     string
	found    bool
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
	loading  bool
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.ExtractOTP):
			if m.detail != nil {
				return m, func() tea.Msg { return ExtractOTPMsg{} }
			}
			return m, nil

		case key.Matches(msg, m.keys.CopyOTP):
			if m.found {
				code := m.code
				return m, func() tea.Msg { return CopyOTPMsg{Code: code} }
			}
			return m, nil

		case key.Matches(msg, m.keys.Source):
			if m.detail != nil {
				return m, func() tea.Msg { return SourceRequestMsg{} }
			}
			return m, nil
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	centered := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.loading {
		return centered.Render("Loading email...")
	}
	if m.detail == nil {
		return centered.Render("No email selected")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.detail == nil || m.detail.Message == nil {
		return ""
	}
	msg := m.detail.Message
	var sections []string

	subject := msg.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(subject))

	catBadge := theme.CategoryStyle(m.detail.Category).Render(
		theme.CategoryIcon(m.detail.Category) + " " + string(m.detail.Category),
	)
	sections = append(sections, catBadge, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	from := msg.From.Display()
	if msg.From.Name != "" && msg.From.Address != "" {
		from = fmt.Sprintf("%s <%s>", msg.From.Name, msg.From.Address)
	}
	sections = append(sections, fmt.Sprintf(
		"%s    %s", metaStyle.Render("From:"), valStyle.Render(from),
	))
	if !msg.CreatedAt.IsZero() {
		sections = append(sections, fmt.Sprintf(
			"%s    %s",
			metaStyle.Render("Date:"),
			valStyle.Render(msg.CreatedAt.Local().Format("2006-01-02 15:04:05")),
		))
	}
	if len(msg.Attachments) > 0 {
		names := make([]string, len(msg.Attachments))
		for i, a := range msg.Attachments {
			names[i] = a.Filename
		}
		sections = append(sections, fmt.Sprintf(
			"%s  %s",
			metaStyle.Render("Attach:"),
			valStyle.Render(strings.Join(names, ", ")),
		))
	}

	if m.found {
		sections = append(sections, "", theme.OTPBoxStyle.Render("OTP  "+m.code))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))
	sections = append(sections, "", separator, "")

	body := m.detail.Text
	if strings.TrimSpace(body) == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render(render.NoContent)
	} else {
		body = lipgloss.NewStyle().Width(max(m.width-2, 20)).Render(body)
	}
	sections = append(sections, body)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDetail updates the message being displayed and re-renders it.
func (m *Model) SetDetail(d inbox.Detail, code string, found bool) {
	sameMessage := m.detail != nil && d.Message != nil &&
		m.detail.Message != nil && m.detail.Message.ID == d.Message.ID

	m.detail = &d
	m.code = code
	m.found = found
	m.loading = false
	m.viewport.SetContent(m.renderContent())
	if !sameMessage {
		m.viewport.GotoTop()
	}
}

// OTP returns the extracted code, if any.
func (m Model) OTP() (string, bool) {
	return m.code, m.found
}

// Clear forgets the open message.
func (m *Model) Clear() {
	m.detail = nil
	m.code = ""
	m.found = false
	m.viewport.SetContent("")
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.detail != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
