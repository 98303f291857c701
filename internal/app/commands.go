package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/meltmail/internal/classify"
	"github.com/nhle/meltmail/internal/model"
	"github.com/nhle/meltmail/internal/render"
	"github.com/nhle/meltmail/internal/session"
)

// noticeTTL is how long a notification stays in the status bar.
const noticeTTL = 4 * time.Second

// historyLimit caps the notification history view.
const historyLimit = 50

// historyLoadedMsg carries the notifications for the history view.
type historyLoadedMsg struct {
	entries []model.Notification
	err     error
}

// generatedMsg is sent after a generate attempt finishes.
type generatedMsg struct{ err error }

// openedMsg is sent after a message fetch finishes. The detail itself
// arrives as a detailMsg through the presenter.
type openedMsg struct {
	id  string
	err error
}

// sourceLoadedMsg carries the parsed raw source of the open message.
type sourceLoadedMsg struct {
	src *render.Source
	err error
}

// unreadCountMsg carries the number of unread notifications to the UI.
type unreadCountMsg struct {
	count int
}

// clearNoticeMsg hides the status bar notice if it is still notice seq.
type clearNoticeMsg struct {
	seq int
}

// generate creates a new mailbox off the event loop.
func (m *Model) generate(name string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		_, err := svc.Generate(context.Background(), name)
		return generatedMsg{err: err}
	}
}

// deleteMailbox forgets the current mailbox. Destroy waits for the
// countdown goroutine, so it runs off the event loop.
func (m *Model) deleteMailbox() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		svc.Delete()
		return nil
	}
}

// openMessage fetches the full message.
func (m *Model) openMessage(id string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		_, err := svc.Open(context.Background(), id)
		return openedMsg{id: id, err: err}
	}
}

// extractOTP looks for a code in the open message.
func (m *Model) extractOTP() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		svc.ExtractOTP()
		return nil
	}
}

// loadSource fetches and parses the raw source of the open message.
func (m *Model) loadSource() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		src, err := svc.ShowSource(context.Background())
		return sourceLoadedMsg{src: src, err: err}
	}
}

// setFilter changes the category filter; the preference write happens
// off the event loop.
func (m *Model) setFilter(f classify.Filter) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		svc.SetFilter(f)
		return nil
	}
}

// togglePolling flips automatic refresh.
func (m *Model) togglePolling() tea.Cmd {
	svc := m.svc
	interval := m.cfg.PollInterval()
	return func() tea.Msg {
		svc.TogglePolling(interval)
		return nil
	}
}

// copyAddress puts the active address on the clipboard.
func (m *Model) copyAddress() tea.Cmd {
	address := m.svc.Address()
	if address == "" {
		return m.showNotice("No email generated", model.SeverityWarning)
	}
	if err := m.clipboard(address); err != nil {
		log.Printf("copying address: %v", err)
		return m.showNotice("Failed to copy email", model.SeverityError)
	}
	return m.showNotice("Email copied to clipboard!", model.SeveritySuccess)
}

// copyOTP puts an extracted code on the clipboard.
func (m *Model) copyOTP(code string) tea.Cmd {
	if err := m.clipboard(code); err != nil {
		log.Printf("copying otp: %v", err)
		return m.showNotice("Failed to copy OTP", model.SeverityError)
	}
	return m.showNotice("OTP copied to clipboard!", model.SeveritySuccess)
}

// showNotice displays text in the status bar and schedules its removal.
func (m *Model) showNotice(text string, severity model.Severity) tea.Cmd {
	m.noticeSeq++
	m.notice = text
	m.noticeSeverity = severity

	seq := m.noticeSeq
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return clearNoticeMsg{seq: seq}
	})
}

// fetchUnreadCount returns a tea.Cmd that queries the store for the
// number of unread notifications.
func (m *Model) fetchUnreadCount() tea.Cmd {
	s := m.store
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		n, err := s.CountUnreadNotifications(context.Background())
		if err != nil {
			log.Printf("counting unread notifications: %v", err)
			return unreadCountMsg{count: 0}
		}
		return unreadCountMsg{count: n}
	}
}

// markNotificationsRead clears the unread counter.
func (m *Model) markNotificationsRead() tea.Cmd {
	s := m.store
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		if err := s.MarkAllNotificationsRead(context.Background()); err != nil {
			log.Printf("marking notifications read: %v", err)
		}
		return unreadCountMsg{count: 0}
	}
}

// openHistory shows the most recent notifications and marks them read.
func (m *Model) openHistory() tea.Cmd {
	s := m.store
	if s == nil {
		return m.showNotice("Notification history is not available", model.SeverityWarning)
	}
	m.currentView = ViewHistory
	m.historyView.SetLoading(true)
	return func() tea.Msg {
		ctx := context.Background()
		entries, err := s.GetRecentNotifications(ctx, historyLimit)
		if err != nil {
			log.Printf("loading notifications: %v", err)
			return historyLoadedMsg{err: err}
		}
		if err := s.MarkAllNotificationsRead(ctx); err != nil {
			log.Printf("marking notifications read: %v", err)
		}
		return historyLoadedMsg{entries: entries}
	}
}

// saveConfig writes the running configuration, including the current
// auto-refresh state, back to the config file.
func (m *Model) saveConfig() tea.Cmd {
	if m.cfgPath == "" {
		return m.showNotice("No config file path set", model.SeverityWarning)
	}
	m.cfg.Polling.AutoStart = m.svc.Polling()
	if err := model.SaveConfig(m.cfgPath, m.cfg); err != nil {
		log.Printf("saving config: %v", err)
		return m.showNotice("Failed to save config", model.SeverityError)
	}
	return m.showNotice("Config saved to "+m.cfgPath, model.SeveritySuccess)
}

// openSettings shows the settings view for the running configuration.
func (m *Model) openSettings() {
	m.settingsView.Show(*m.cfg)
	m.currentView = ViewSettings
}

// applySettings adopts an edited configuration and writes it to the
// config file. A new refresh interval takes effect at once; provider and
// session settings apply to the next run.
func (m *Model) applySettings(cfg model.AppConfig) tea.Cmd {
	needsRestart := cfg.Provider != m.cfg.Provider || cfg.Session != m.cfg.Session
	*m.cfg = cfg

	var cmds []tea.Cmd
	if m.svc.Polling() && m.svc.PollInterval() != cfg.PollInterval() {
		svc := m.svc
		interval := cfg.PollInterval()
		cmds = append(cmds, func() tea.Msg {
			svc.EnablePolling(interval)
			return nil
		})
	}

	text := "Settings updated"
	severity := model.SeveritySuccess
	if m.cfgPath != "" {
		if err := model.SaveConfig(m.cfgPath, m.cfg); err != nil {
			log.Printf("saving config: %v", err)
			text, severity = "Settings applied but not saved", model.SeverityError
		} else {
			text = "Settings saved to " + m.cfgPath
		}
	}
	if needsRestart && severity == model.SeveritySuccess {
		text += " (restart to apply provider changes)"
	}
	m.settingsView.SetStatus(text)
	cmds = append(cmds, m.showNotice(text, severity))
	return tea.Batch(cmds...)
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(input string) tea.Cmd {
	name, arg, _ := strings.Cut(strings.TrimSpace(input), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "refresh", "r":
		m.svc.Refresh()
		return nil
	case "new", "generate":
		m.generating = true
		return m.generate(arg)
	case "random":
		m.generating = true
		return m.generate(session.RandomName())
	case "delete":
		return m.deleteMailbox()
	case "copy":
		return m.copyAddress()
	case "auto":
		return m.setAutoRefresh(arg)
	case "filter":
		f, err := classify.ParseFilter(arg)
		if err != nil {
			return m.showNotice(err.Error(), model.SeverityWarning)
		}
		return m.setFilter(f)
	case "read":
		return m.markNotificationsRead()
	case "history":
		return m.openHistory()
	case "settings":
		m.openSettings()
		return nil
	case "save-config":
		return m.saveConfig()
	case "quit", "q":
		return tea.Quit
	default:
		return m.showNotice(fmt.Sprintf("Unknown command %q", input), model.SeverityWarning)
	}
}

// setAutoRefresh handles ":auto [on|off]"; no argument toggles.
func (m *Model) setAutoRefresh(arg string) tea.Cmd {
	svc := m.svc
	interval := m.cfg.PollInterval()

	switch strings.ToLower(arg) {
	case "":
		return m.togglePolling()
	case "on":
		if svc.Polling() {
			return nil
		}
		return func() tea.Msg {
			svc.EnablePolling(interval)
			return nil
		}
	case "off":
		if !svc.Polling() {
			return nil
		}
		return func() tea.Msg {
			svc.DisablePolling()
			return nil
		}
	default:
		return m.showNotice("usage: auto [on|off]", model.SeverityWarning)
	}
}
