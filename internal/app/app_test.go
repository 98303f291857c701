package app

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/meltmail/internal/inbox"
	"github.com/nhle/meltmail/internal/model"
	"github.com/nhle/meltmail/internal/provider"
	"github.com/nhle/meltmail/internal/session"
	"github.com/nhle/meltmail/internal/ui/history"
	"github.com/nhle/meltmail/internal/ui/settings"
	"github.com/nhle/meltmail/tests/testutil"
)

type fakeAPI struct{}

func (fakeAPI) ListDomains(context.Context) []string { return []string{"d.test"} }

func (fakeAPI) CreateAccount(_ context.Context, address, password string) (*provider.Account, error) {
	return &provider.Account{Address: address, Password: password}, nil
}

func (fakeAPI) FetchToken(context.Context, string, string) (string, error) {
	return "tok", nil
}

func (fakeAPI) ListMessages(context.Context, string) ([]model.MessageSummary, error) {
	return []model.MessageSummary{}, nil
}

func (fakeAPI) FetchMessage(context.Context, string, string) (*model.Message, error) {
	return nil, &provider.FetchError{Op: "fetching", Status: 404, Err: provider.ErrNotFound}
}

func (fakeAPI) FetchSource(context.Context, string, string) (string, error) {
	return "", nil
}

func newTestModel(t *testing.T, opts ...Option) (Model, *inbox.Service) {
	t.Helper()

	p := NewPresenter()
	sess := session.New(fakeAPI{})
	svc := inbox.New(sess, fakeAPI{}, p)
	t.Cleanup(svc.Close)

	cfg := &model.AppConfig{Polling: model.PollingConfig{IntervalSec: 10}}
	return New(svc, p, cfg, opts...), svc
}

func TestPresenterKeepsOrder(t *testing.T) {
	p := NewPresenter()
	p.RenderInbox(inbox.View{Address: "a@d.test"})
	p.Notify("hello", model.SeverityInfo)

	first := p.waitForEvent()()
	second := p.waitForEvent()()

	require.IsType(t, inboxMsg{}, first)
	assert.Equal(t, "a@d.test", first.(inboxMsg).view.Address)
	require.IsType(t, noticeMsg{}, second)
	assert.Equal(t, "hello", second.(noticeMsg).text)
}

func TestPresenterNeverBlocks(t *testing.T) {
	p := NewPresenter()
	for i := 0; i < eventBuffer*2; i++ {
		p.RenderCountdown(session.Countdown{})
		p.Notify("n", model.SeverityInfo)
	}
	assert.Len(t, p.events, eventBuffer)
}

func TestPresenterKeepsLatestInboxWhenFull(t *testing.T) {
	p := NewPresenter()
	for i := 0; i < eventBuffer; i++ {
		p.Notify("n", model.SeverityInfo)
	}
	p.RenderInbox(inbox.View{Address: "old@d.test"})
	p.RenderInbox(inbox.View{Address: "new@d.test"})
	p.RenderMessageDetail(inbox.Detail{Text: "body"}, "123456", true)

	for i := 0; i < eventBuffer; i++ {
		require.IsType(t, noticeMsg{}, p.waitForEvent()())
	}

	next := p.waitForEvent()()
	require.IsType(t, inboxMsg{}, next)
	assert.Equal(t, "new@d.test", next.(inboxMsg).view.Address)

	next = p.waitForEvent()()
	require.IsType(t, detailMsg{}, next)
	assert.Equal(t, "123456", next.(detailMsg).code)

	p.RenderInbox(inbox.View{Address: "later@d.test"})
	next = p.waitForEvent()()
	require.IsType(t, inboxMsg{}, next)
	assert.Equal(t, "later@d.test", next.(inboxMsg).view.Address)
}

func TestCopyAddressWithoutMailbox(t *testing.T) {
	var copied []string
	m, _ := newTestModel(t, WithClipboard(func(s string) error {
		copied = append(copied, s)
		return nil
	}))

	m.copyAddress()
	assert.Equal(t, "No email generated", m.notice)
	assert.Empty(t, copied)
}

func TestGenerateThenCopyAddress(t *testing.T) {
	var copied string
	m, svc := newTestModel(t, WithClipboard(func(s string) error {
		copied = s
		return nil
	}))

	msg := m.generate("alice")()
	require.IsType(t, generatedMsg{}, msg)
	require.NoError(t, msg.(generatedMsg).err)

	m.copyAddress()
	assert.Equal(t, svc.Address(), copied)
	assert.True(t, strings.HasPrefix(copied, "alice"))
	assert.Equal(t, "Email copied to clipboard!", m.notice)
	assert.Equal(t, model.SeveritySuccess, m.noticeSeverity)
}

func TestCopyFailureIsReported(t *testing.T) {
	m, _ := newTestModel(t, WithClipboard(func(string) error {
		return errors.New("no clipboard")
	}))

	m.copyOTP("123456")
	assert.Equal(t, "Failed to copy OTP", m.notice)
	assert.Equal(t, model.SeverityError, m.noticeSeverity)
}

func TestNoticeClearsOnlyLatest(t *testing.T) {
	m, _ := newTestModel(t)
	m.showNotice("first", model.SeverityInfo)
	m.showNotice("second", model.SeverityInfo)

	updated, _ := m.Update(clearNoticeMsg{seq: 1})
	m = updated.(Model)
	assert.Equal(t, "second", m.notice)

	updated, _ = m.Update(clearNoticeMsg{seq: 2})
	m = updated.(Model)
	assert.Empty(t, m.notice)
}

func TestUnknownCommand(t *testing.T) {
	m, _ := newTestModel(t)
	m.executeCommand("frobnicate")
	assert.Equal(t, `Unknown command "frobnicate"`, m.notice)
}

func TestFilterCommandRejectsUnknownCategory(t *testing.T) {
	m, _ := newTestModel(t)
	m.executeCommand("filter spam")
	assert.Contains(t, m.notice, "unknown filter")
}

func TestTextEntryViewsDoNotSeeGlobalKeys(t *testing.T) {
	m, _ := newTestModel(t)

	for _, v := range []ViewState{ViewGenerate, ViewCommand} {
		m.currentView = v
		for _, k := range []string{"q", "g", "d", "y", "r", "p", "?", ":"} {
			cmd, handled := m.handleGlobalKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
			assert.False(t, handled, "key %q in view %d", k, v)
			assert.Nil(t, cmd)
		}
		assert.Equal(t, v, m.currentView)
	}
}

func TestEscLeavesGenerateForm(t *testing.T) {
	m, _ := newTestModel(t)
	m.currentView = ViewGenerate

	_, handled := m.handleGlobalKey(tea.KeyMsg{Type: tea.KeyEsc})
	assert.True(t, handled)
	assert.Equal(t, ViewList, m.currentView)
}

func TestDeletedMailboxLeavesDetail(t *testing.T) {
	m, _ := newTestModel(t)
	m.currentView = ViewDetail

	updated, _ := m.Update(inboxMsg{view: inbox.View{}})
	m = updated.(Model)
	assert.Equal(t, ViewList, m.currentView)
}

func TestFailedOpenReturnsToList(t *testing.T) {
	m, _ := newTestModel(t)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	assert.Equal(t, ViewList, m.currentView, "nothing to open in an empty inbox")
	assert.Nil(t, cmd)

	m.currentView = ViewDetail
	updated, _ = m.Update(openedMsg{id: "missing", err: provider.ErrNotFound})
	m = updated.(Model)
	assert.Equal(t, ViewList, m.currentView)
}

func TestSettingsCommandOpensView(t *testing.T) {
	m, _ := newTestModel(t)
	m.executeCommand("settings")
	assert.Equal(t, ViewSettings, m.currentView)

	cmd, handled := m.handleGlobalKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.False(t, handled, "settings view owns its keys")
	assert.Nil(t, cmd)

	updated, _ := m.Update(settings.DoneMsg{})
	m = updated.(Model)
	assert.Equal(t, ViewList, m.currentView)
}

func TestSavedSettingsAreWrittenAndApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, _ := newTestModel(t, WithConfigPath(path))

	cfg := *m.cfg
	cfg.Provider = model.ProviderConfig{BaseURL: "https://api.mail.tm", TimeoutSec: 30}
	cfg.Session = model.SessionConfig{LifetimeSec: 600, CredentialBackend: "memory"}
	cfg.Polling.IntervalSec = 3

	m.applySettings(cfg)
	assert.Equal(t, 3, m.cfg.Polling.IntervalSec)
	assert.Contains(t, m.notice, "Settings saved to")

	loaded, err := model.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Polling.IntervalSec)
}

func TestRandomCommandUsesGeneratedName(t *testing.T) {
	m, svc := newTestModel(t)

	cmd := m.executeCommand("random")
	require.NotNil(t, cmd)
	assert.True(t, m.generating)

	msg := cmd()
	require.IsType(t, generatedMsg{}, msg)
	require.NoError(t, msg.(generatedMsg).err)

	re := regexp.MustCompile(`^(quick|smart|fast|cool|mega|super|ultra|hyper)(fox|wolf|bear|eagle|hawk|lion|tiger|dragon)\d+@d\.test$`)
	assert.Regexp(t, re, svc.Address())
}

func TestSavedIntervalRestartsRunningPoller(t *testing.T) {
	m, svc := newTestModel(t)
	svc.EnablePolling(10 * time.Second)

	cfg := *m.cfg
	cfg.Polling.IntervalSec = 3
	cmd := m.applySettings(cfg)
	require.NotNil(t, cmd)

	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	require.NotEmpty(t, batch)
	batch[0]()
	assert.Equal(t, 3*time.Second, svc.PollInterval())
}

func TestHistoryShowsNotificationsAndMarksThemRead(t *testing.T) {
	st := testutil.NewTestStore(t)
	testutil.SeedNotifications(t, st, "1 new email", "Failed to refresh inbox")
	m, _ := newTestModel(t, WithStore(st))
	m.unreadCount = 2

	cmd, handled := m.handleGlobalKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	require.True(t, handled)
	require.NotNil(t, cmd)
	assert.Equal(t, ViewHistory, m.currentView)

	msg := cmd()
	require.IsType(t, historyLoadedMsg{}, msg)
	loaded := msg.(historyLoadedMsg)
	require.NoError(t, loaded.err)
	require.Len(t, loaded.entries, 2)
	assert.Equal(t, "Failed to refresh inbox", loaded.entries[0].Message)
	assert.False(t, loaded.entries[0].Read)

	updated, _ := m.Update(loaded)
	m = updated.(Model)
	assert.Zero(t, m.unreadCount)

	n, err := st.CountUnreadNotifications(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	updated, _ = m.Update(history.CloseMsg{})
	m = updated.(Model)
	assert.Equal(t, ViewList, m.currentView)
}

func TestHistoryCommandWithoutStore(t *testing.T) {
	m, _ := newTestModel(t)
	cmd := m.executeCommand("history")
	require.NotNil(t, cmd)
	assert.Equal(t, ViewList, m.currentView)
	assert.Equal(t, "Notification history is not available", m.notice)
}
