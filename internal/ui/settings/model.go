package settings

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/meltmail/internal/credential"
	"github.com/nhle/meltmail/internal/model"
	"github.com/nhle/meltmail/internal/theme"
)

// Mode represents the current state of the settings view.
type Mode int

const (
	ModeSummary Mode = iota // Read-only list of current values
	ModeForm                // Editing
)

// DoneMsg signals the settings view should close.
type DoneMsg struct{}

// SavedMsg carries the edited configuration. The receiver decides how
// much of it applies to the running session.
type SavedMsg struct {
	Config model.AppConfig
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	baseURL     string
	timeout     string
	lifetime    string
	interval    string
	autoStart   bool
	credBackend string
}

// Model is the Bubble Tea model for the settings view.
type Model struct {
	mode      Mode
	current   model.AppConfig
	form      *huh.Form
	fb        *formBindings
	statusMsg string

	width, height int
}

// New creates a new settings view model.
func New(width, height int) Model {
	return Model{
		mode:   ModeSummary,
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Show opens the summary of cfg.
func (m *Model) Show(cfg model.AppConfig) {
	m.current = cfg
	m.mode = ModeSummary
	m.form = nil
	m.statusMsg = ""
}

// SetStatus shows a one-line message under the summary.
func (m *Model) SetStatus(s string) {
	m.statusMsg = s
}

// Editing reports whether the form is open.
func (m Model) Editing() bool {
	return m.mode == ModeForm
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch m.mode {
		case ModeSummary:
			return m.handleSummaryKeys(k)
		case ModeForm:
			if k.String() == "esc" {
				m.mode = ModeSummary
				m.form = nil
				return m, nil
			}
		}
	}
	return m.updateForm(msg)
}

func (m Model) handleSummaryKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "e", "enter":
		return m, m.startEditForm()
	case "esc", "q":
		return m, func() tea.Msg { return DoneMsg{} }
	}
	return m, nil
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m.save()
	}
	if m.form.State == huh.StateAborted {
		m.mode = ModeSummary
		m.form = nil
		return m, nil
	}

	return m, cmd
}

func (m *Model) startEditForm() tea.Cmd {
	c := m.current
	m.fb.baseURL = c.Provider.BaseURL
	m.fb.timeout = strconv.Itoa(c.Provider.TimeoutSec)
	m.fb.lifetime = strconv.Itoa(c.Session.LifetimeSec)
	m.fb.interval = strconv.Itoa(c.Polling.IntervalSec)
	m.fb.autoStart = c.Polling.AutoStart
	m.fb.credBackend = c.Session.CredentialBackend
	if m.fb.credBackend == "" {
		m.fb.credBackend = credential.BackendMemory
	}

	m.mode = ModeForm
	m.statusMsg = ""
	m.form = m.buildForm()
	return m.form.Init()
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Provider URL").
				Description("Root of the mail.tm compatible API").
				Placeholder("https://api.mail.tm").
				Value(&m.fb.baseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Request timeout").
				Description("Seconds before a provider request is abandoned").
				Value(&m.fb.timeout).
				Validate(validateSeconds("Timeout")),
			huh.NewInput().
				Title("Mailbox lifetime").
				Description("Seconds until a new address expires").
				Value(&m.fb.lifetime).
				Validate(validateSeconds("Lifetime")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Refresh interval").
				Description("Seconds between automatic inbox refreshes").
				Value(&m.fb.interval).
				Validate(validateSeconds("Interval")),
			huh.NewConfirm().
				Title("Auto refresh on start").
				Affirmative("Yes").
				Negative("No").
				Value(&m.fb.autoStart),
			huh.NewSelect[string]().
				Title("Credential storage").
				Description("Where the mailbox password is kept while the address is active").
				Options(
					huh.NewOption("In memory", credential.BackendMemory),
					huh.NewOption("System keyring", credential.BackendKeyring),
				).
				Value(&m.fb.credBackend),
		),
	).WithWidth(m.formWidth())
}

// save builds the edited configuration. The inputs are already validated
// so the conversions cannot fail.
func (m Model) save() (Model, tea.Cmd) {
	cfg := m.current
	cfg.Provider.BaseURL = strings.TrimRight(strings.TrimSpace(m.fb.baseURL), "/")
	cfg.Provider.TimeoutSec, _ = strconv.Atoi(strings.TrimSpace(m.fb.timeout))
	cfg.Session.LifetimeSec, _ = strconv.Atoi(strings.TrimSpace(m.fb.lifetime))
	cfg.Polling.IntervalSec, _ = strconv.Atoi(strings.TrimSpace(m.fb.interval))
	cfg.Polling.AutoStart = m.fb.autoStart
	cfg.Session.CredentialBackend = m.fb.credBackend

	m.form = nil
	m.mode = ModeSummary
	if err := cfg.Validate(); err != nil {
		m.statusMsg = err.Error()
		return m, nil
	}
	m.current = cfg
	return m, func() tea.Msg { return SavedMsg{Config: cfg} }
}

// --- View ---

// View renders the settings UI based on the current mode.
func (m Model) View() string {
	if m.mode == ModeForm {
		return m.viewForm()
	}
	return m.viewSummary()
}

func (m Model) viewSummary() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	b.WriteString(titleStyle.Render("Settings"))
	b.WriteString("\n\n")

	c := m.current
	auto := "off"
	if c.Polling.AutoStart {
		auto = "on"
	}
	rows := [][2]string{
		{"Provider URL", c.Provider.BaseURL},
		{"Request timeout", fmt.Sprintf("%ds", c.Provider.TimeoutSec)},
		{"Mailbox lifetime", fmt.Sprintf("%ds", c.Session.LifetimeSec)},
		{"Refresh interval", fmt.Sprintf("%ds", c.Polling.IntervalSec)},
		{"Auto refresh on start", auto},
		{"Credential storage", c.Session.CredentialBackend},
		{"Database", c.Storage.DBPath},
		{"Log file", c.LogFile},
	}
	for _, r := range rows {
		b.WriteString(renderSettingItem(r[0], r[1]))
		b.WriteString("\n")
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		statusStyle := lipgloss.NewStyle().
			Foreground(theme.ColorYellow).
			Italic(true)
		b.WriteString(statusStyle.Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	hintStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	b.WriteString(hintStyle.Render("e edit | esc back"))

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(b.String())
}

func renderSettingItem(label, value string) string {
	labelStyle := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Width(24)
	if value == "" {
		value = "-"
	}
	return theme.ListItemStyle.Render(labelStyle.Render(label) + value)
}

func (m Model) viewForm() string {
	if m.form == nil {
		return ""
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(m.form.View())
}

// --- Helpers ---

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
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

// --- Validators ---

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://api.mail.tm)")
	}
	return nil
}

func validateSeconds(fieldName string) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("%s must be a whole number of seconds", fieldName)
		}
		if n <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
		return nil
	}
}
