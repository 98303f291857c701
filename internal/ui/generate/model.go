package generate

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/meltmail/internal/session"
	"github.com/nhle/meltmail/internal/theme"
)

// SubmitMsg is dispatched when the user confirms the form. Name may be
// empty, in which case a random name is used.
type SubmitMsg struct {
	Name string
}

// CancelMsg is dispatched when the user cancels the form.
type CancelMsg struct{}

// maxNameLength bounds the preferred name input.
const maxNameLength = 32

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	name string
}

// Model is the Bubble Tea model for the new address form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	width  int
	height int
}

// New creates a new generate form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start initializes the form, prefilled with the last name used.
func (m *Model) Start(preferredName string) tea.Cmd {
	m.fb.name = preferredName
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the form. ctrl+r fills in a random name.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "ctrl+r" {
		m.fb.name = session.RandomName()
		m.form = m.buildForm()
		return m, m.form.Init()
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		name := strings.TrimSpace(m.fb.name)
		m.form = nil
		return m, func() tea.Msg { return SubmitMsg{Name: name} }
	}
	if m.form.State == huh.StateAborted {
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	hint := theme.HelpStyle.Render("ctrl+r random name · enter create · esc cancel")
	content := titleStyle.Render("New Temporary Address") + "\n" + m.form.View() + "\n" + hint

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Description("Letters and digits only; leave empty for a random name.").
				Placeholder("e.g. quickfox").
				CharLimit(maxNameLength).
				Value(&m.fb.name).
				Validate(validateName),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 6 {
		h = 6
	}
	return h
}

// validateName rejects a non-empty name that has nothing left after
// sanitizing.
func validateName(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if session.SanitizeName(s) == "" {
		return fmt.Errorf("name must contain a letter or digit")
	}
	return nil
}
