package app

import (
	"fmt"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/meltmail/internal/inbox"
	"github.com/nhle/meltmail/internal/keys"
	"github.com/nhle/meltmail/internal/model"
	"github.com/nhle/meltmail/internal/session"
	"github.com/nhle/meltmail/internal/store"
	"github.com/nhle/meltmail/internal/theme"
	"github.com/nhle/meltmail/internal/ui"
	"github.com/nhle/meltmail/internal/ui/command"
	"github.com/nhle/meltmail/internal/ui/detail"
	"github.com/nhle/meltmail/internal/ui/generate"
	helpview "github.com/nhle/meltmail/internal/ui/help"
	"github.com/nhle/meltmail/internal/ui/history"
	"github.com/nhle/meltmail/internal/ui/maillist"
	"github.com/nhle/meltmail/internal/ui/settings"
	sourceview "github.com/nhle/meltmail/internal/ui/source"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewSource
	ViewGenerate
	ViewHelp
	ViewCommand
	ViewSettings
	ViewHistory
)

// Model is the root Bubble Tea model that manages view routing, layout,
// and the hand-off between the inbox service and the views.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	svc       *inbox.Service
	presenter *Presenter
	store     store.Store
	cfg       *model.AppConfig
	cfgPath   string
	clipboard func(string) error

	mailList     maillist.Model
	detail       detail.Model
	sourceView   sourceview.Model
	generateView generate.Model
	helpView     helpview.Model
	commandView  command.Model
	settingsView settings.Model
	historyView  history.Model

	ready          bool
	generating     bool
	polling        bool
	countdown      session.Countdown
	unreadCount    int
	notice         string
	noticeSeverity model.Severity
	noticeSeq      int
}

// Option configures the root model.
type Option func(*Model)

// WithStore shows the unread notification count from st in the header.
func WithStore(st store.Store) Option {
	return func(m *Model) { m.store = st }
}

// WithConfigPath enables the save-config command.
func WithConfigPath(path string) Option {
	return func(m *Model) { m.cfgPath = path }
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) { m.clipboard = write }
}

// New creates the root model. p must be the presenter the service was
// created with.
func New(svc *inbox.Service, p *Presenter, cfg *model.AppConfig, opts ...Option) Model {
	k := keys.DefaultKeyMap()

	m := Model{
		currentView:  ViewList,
		keys:         k,
		svc:          svc,
		presenter:    p,
		cfg:          cfg,
		clipboard:    clipboard.WriteAll,
		mailList:     maillist.New(k, 80, 24),
		detail:       detail.New(k, 80, 24),
		sourceView:   sourceview.New(k, 80, 24),
		generateView: generate.New(80, 24),
		helpView:     helpview.New(k, 80, 24),
		commandView:  command.New(80, 24),
		settingsView: settings.New(80, 24),
		historyView:  history.New(k, 80, 24),
		countdown:    svc.Session().Countdown(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts listening for service events, renders the initial inbox
// and, when configured, turns on automatic refresh.
func (m Model) Init() tea.Cmd {
	svc := m.svc
	cmds := []tea.Cmd{
		m.presenter.waitForEvent(),
		m.fetchUnreadCount(),
		func() tea.Msg {
			svc.Refresh()
			return nil
		},
	}
	if m.cfg.Polling.AutoStart {
		interval := m.cfg.PollInterval()
		cmds = append(cmds, func() tea.Msg {
			svc.EnablePolling(interval)
			return nil
		})
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.mailList.SetSize(contentWidth, contentHeight)
		m.detail.SetSize(contentWidth, contentHeight)
		m.sourceView.SetSize(contentWidth, contentHeight)
		m.generateView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		m.settingsView.SetSize(contentWidth, contentHeight)
		m.historyView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	// === Service events ===

	case inboxMsg:
		cmd := m.mailList.SetView(msg.view)
		m.polling = msg.view.Polling
		if !msg.view.HasSession() && (m.currentView == ViewDetail || m.currentView == ViewSource) {
			m.detail.Clear()
			m.currentView = ViewList
		}
		return m, tea.Batch(cmd, m.presenter.waitForEvent())

	case detailMsg:
		m.detail.SetDetail(msg.detail, msg.code, msg.found)
		return m, m.presenter.waitForEvent()

	case countdownMsg:
		m.countdown = msg.countdown
		return m, m.presenter.waitForEvent()

	case noticeMsg:
		cmd := m.showNotice(msg.text, msg.severity)
		return m, tea.Batch(cmd, m.fetchUnreadCount(), m.presenter.waitForEvent())

	// === Command results ===

	case generatedMsg:
		m.generating = false
		return m, nil

	case openedMsg:
		if msg.err != nil && m.currentView == ViewDetail {
			m.detail.Clear()
			m.currentView = ViewList
		}
		return m, nil

	case sourceLoadedMsg:
		if msg.err != nil {
			if m.currentView == ViewSource {
				m.currentView = ViewDetail
			}
			return m, nil
		}
		m.sourceView.SetSource(msg.src)
		return m, nil

	case historyLoadedMsg:
		if msg.err != nil {
			if m.currentView == ViewHistory {
				m.currentView = ViewList
			}
			return m, m.showNotice("Failed to load notifications", model.SeverityError)
		}
		m.historyView.SetEntries(msg.entries)
		m.unreadCount = 0
		return m, nil

	case unreadCountMsg:
		m.unreadCount = msg.count
		return m, nil

	case clearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil

	// === View messages ===

	case maillist.SelectedMessageMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.detail.Clear()
		m.detail.SetLoading(true)
		return m, m.openMessage(msg.ID)

	case maillist.FilterSelectedMsg:
		return m, m.setFilter(msg.Filter)

	case detail.BackMsg:
		m.svc.CloseMessage()
		m.detail.Clear()
		m.currentView = ViewList
		return m, nil

	case detail.ExtractOTPMsg:
		return m, m.extractOTP()

	case detail.CopyOTPMsg:
		return m, m.copyOTP(msg.Code)

	case detail.SourceRequestMsg:
		m.currentView = ViewSource
		m.sourceView.SetLoading(true)
		return m, m.loadSource()

	case sourceview.CloseMsg:
		m.currentView = ViewDetail
		return m, nil

	case generate.SubmitMsg:
		m.currentView = ViewList
		m.generating = true
		return m, m.generate(msg.Name)

	case generate.CancelMsg:
		m.currentView = ViewList
		return m, nil

	case settings.SavedMsg:
		return m, m.applySettings(msg.Config)

	case settings.DoneMsg:
		m.currentView = ViewList
		return m, nil

	case history.CloseMsg:
		m.currentView = ViewList
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleGlobalKey handles keys that are not owned by the active view.
// Text-entry views (generate form, command palette) only see ctrl+c and
// esc here; the settings view handles its own esc.
func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return tea.Quit, true
	}

	switch m.currentView {
	case ViewGenerate:
		if msg.String() == "esc" {
			m.currentView = ViewList
			return nil, true
		}
		return nil, false
	case ViewCommand:
		if msg.String() == "esc" {
			m.currentView = m.previousView
			return nil, true
		}
		return nil, false
	case ViewSettings:
		return nil, false
	case ViewHelp:
		if msg.String() == "?" || msg.String() == "esc" {
			m.currentView = m.previousView
		}
		return nil, true
	}

	switch msg.String() {
	case "q":
		if m.currentView == ViewList {
			return tea.Quit, true
		}

	case "?":
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil, true

	case ":":
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m.commandView.Focus(), true

	case "y":
		return m.copyAddress(), true

	case "r":
		m.svc.Refresh()
		return nil, true

	case "p":
		return m.togglePolling(), true

	case "g":
		if m.currentView == ViewList {
			m.currentView = ViewGenerate
			return m.generateView.Start(m.svc.PreferredName()), true
		}

	case "d":
		if m.currentView == ViewList {
			return m.deleteMailbox(), true
		}

	case ",":
		if m.currentView == ViewList {
			m.openSettings()
			return nil, true
		}

	case "n":
		if m.currentView == ViewList {
			return m.openHistory(), true
		}
	}
	return nil, false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.mailList, cmd = m.mailList.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewSource:
		m.sourceView, cmd = m.sourceView.Update(msg)
	case ViewGenerate:
		m.generateView, cmd = m.generateView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewSettings:
		m.settingsView, cmd = m.settingsView.Update(msg)
	case ViewHistory:
		m.historyView, cmd = m.historyView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.headerTitle(), m.headerStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.renderNotice())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.mailList.View()
	case ViewDetail:
		return m.detail.View()
	case ViewSource:
		return m.sourceView.View()
	case ViewGenerate:
		return m.generateView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewSettings:
		return m.settingsView.View()
	case ViewHistory:
		return m.historyView.View()
	default:
		return ""
	}
}

// headerTitle shows the active address and the unread notification count.
func (m Model) headerTitle() string {
	title := "meltmail"
	switch {
	case m.generating:
		title += " · generating..."
	case m.svc.Address() != "":
		title += " · " + m.svc.Address()
	default:
		title += " · no address"
	}
	if m.unreadCount > 0 {
		title += fmt.Sprintf(" [%d new]", m.unreadCount)
	}
	return title
}

// headerStatus renders the auto-refresh indicator and the expiry clock.
func (m Model) headerStatus() string {
	auto := "manual"
	if m.polling {
		auto = "⟳ auto"
	}
	clock := theme.CountdownStyle(m.countdown.Urgent(), m.countdown.Expired).
		Render("⏱ " + m.countdown.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, theme.HeaderStyle.Render(auto), clock)
}

// renderNotice styles the latest notification for the status bar.
func (m Model) renderNotice() string {
	if m.notice == "" {
		return ""
	}
	return theme.SeverityStyle(m.noticeSeverity).
		Background(theme.StatusBarStyle.GetBackground()).
		Render(m.notice)
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewDetail:
		return "esc back | o extract otp | c copy otp | s source | j/k scroll"
	case ViewSource:
		return "esc back | tab next part | j/k scroll"
	case ViewGenerate:
		return "enter create | ctrl+r random | esc cancel"
	case ViewSettings:
		if m.settingsView.Editing() {
			return "tab next | enter confirm | esc discard"
		}
		return "e edit | esc back"
	case ViewHistory:
		return "esc back | j/k scroll"
	default:
		return "q quit | ? help | g new | y copy | r refresh | p auto | 1-5 filter | n notifications | , settings"
	}
}
