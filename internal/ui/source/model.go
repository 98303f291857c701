package source

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/meltmail/internal/keys"
	"github.com/nhle/meltmail/internal/render"
	"github.com/nhle/meltmail/internal/theme"
)

// CloseMsg signals the parent to return to the message detail.
type CloseMsg struct{}

// pane is one of the views of a message source.
type pane int

const (
	paneSummary pane = iota
	paneText
	paneHTML
	paneRaw
)

// Model shows the parsed headers, body parts, attachments and raw text
// of a message.
type Model struct {
	src      *render.Source
	pane     pane
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
	loading  bool
}

// New creates a new source view model.
func New(k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	return Model{
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the source view. Esc or s closes it; tab
// cycles through the summary, each body part present and the raw text.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Source):
			return m, func() tea.Msg { return CloseMsg{} }
		case msg.String() == "tab" && m.src != nil:
			m.pane = m.nextPane()
			m.viewport.SetContent(m.renderContent())
			m.viewport.GotoTop()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the source view.
func (m Model) View() string {
	if m.loading || m.src == nil {
		text := "Loading source..."
		if !m.loading {
			text = "No source loaded"
		}
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render(text)
	}
	return m.viewport.View()
}

func (m Model) renderContent() string {
	if m.src == nil {
		return ""
	}
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	hint := theme.HelpStyle.Render("tab " + m.nextPane().String())

	switch m.pane {
	case paneText:
		return headerStyle.Render("text/plain") + "\n\n" + m.src.Text + "\n\n" + hint
	case paneHTML:
		return headerStyle.Render("text/html") + "\n\n" + m.src.HTML + "\n\n" + hint
	case paneRaw:
		return m.src.Raw + "\n\n" + hint
	}

	keyStyle := lipgloss.NewStyle().Foreground(theme.ColorBlue)

	lines := []string{headerStyle.Render("Headers"), ""}
	for _, h := range m.src.Headers {
		lines = append(lines, keyStyle.Render(h.Key+":")+" "+h.Value)
	}

	lines = append(lines, "", headerStyle.Render("Parts"))
	if m.src.Text == "" && m.src.HTML == "" {
		lines = append(lines, "  none")
	}
	if m.src.Text != "" {
		lines = append(lines, fmt.Sprintf("  text/plain  %d bytes", len(m.src.Text)))
	}
	if m.src.HTML != "" {
		lines = append(lines, fmt.Sprintf("  text/html  %d bytes", len(m.src.HTML)))
	}

	lines = append(lines, "", headerStyle.Render(
		fmt.Sprintf("Attachments (%d)", len(m.src.Attachments)),
	))
	for _, a := range m.src.Attachments {
		lines = append(lines, fmt.Sprintf(
			"  %s  %s  %d bytes", a.Filename, a.ContentType, a.Size,
		))
	}

	lines = append(lines, "", hint)
	return strings.Join(lines, "\n")
}

// nextPane returns the pane after the current one, skipping empty parts.
func (m Model) nextPane() pane {
	p := m.pane
	for {
		p = (p + 1) % (paneRaw + 1)
		switch {
		case p == paneText && m.src.Text == "":
		case p == paneHTML && m.src.HTML == "":
		default:
			return p
		}
	}
}

func (p pane) String() string {
	switch p {
	case paneText:
		return "shows the text part"
	case paneHTML:
		return "shows the html part"
	case paneRaw:
		return "shows the raw message"
	default:
		return "shows the summary"
	}
}

// SetSource displays src.
func (m *Model) SetSource(src *render.Source) {
	m.src = src
	m.loading = false
	m.pane = paneSummary
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
