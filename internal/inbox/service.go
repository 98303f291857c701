// Package inbox wires the session, the provider and the poller together
// and reports everything a front end needs through a Presenter.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log"
	gosync "sync"
	"time"

	"github.com/nhle/meltmail/internal/classify"
	"github.com/nhle/meltmail/internal/model"
	"github.com/nhle/meltmail/internal/otp"
	"github.com/nhle/meltmail/internal/provider"
	"github.com/nhle/meltmail/internal/render"
	"github.com/nhle/meltmail/internal/session"
	"github.com/nhle/meltmail/internal/store"
	"github.com/nhle/meltmail/internal/sync"
)

// requestTimeout bounds a single provider call made on the user's behalf.
const requestTimeout = 30 * time.Second

// notificationHistory is how many notifications are kept in the store.
const notificationHistory = 200

var (
	// ErrNoMessage is returned by operations on the open message when
	// none is open.
	ErrNoMessage = errors.New("no message open")

	// ErrSuperseded is returned when the mailbox changed while a message
	// was being fetched.
	ErrSuperseded = errors.New("mailbox changed during request")
)

// MessageProvider is the part of the provider API the inbox reads from.
type MessageProvider interface {
	ListMessages(ctx context.Context, token string) ([]model.MessageSummary, error)
	FetchMessage(ctx context.Context, token, id string) (*model.Message, error)
	FetchSource(ctx context.Context, token, id string) (string, error)
}

// Service is the single entry point of a front end. Its methods are safe
// for concurrent use; network calls block the caller, so a UI runs them
// off its event loop.
type Service struct {
	session   *session.Session
	provider  MessageProvider
	presenter Presenter
	store     store.Store
	poller    *sync.Poller

	mu        gosync.Mutex
	messages  []classify.Classified
	filter    classify.Filter
	seen      map[string]bool
	stale     bool
	lastErr   error
	updatedAt time.Time
	current   *Detail
	reauthFor string
}

// Option configures a Service.
type Option func(*Service)

// WithStore records notifications and preferences in st.
func WithStore(st store.Store) Option {
	return func(s *Service) { s.store = st }
}

// New creates a service. The session's countdown is forwarded to the
// presenter.
func New(sess *session.Session, p MessageProvider, presenter Presenter, opts ...Option) *Service {
	s := &Service{
		session:   sess,
		provider:  p,
		presenter: presenter,
		filter:    classify.FilterAll,
		seen:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.poller = sync.New(p, sess, s.handleResult)
	sess.OnTick(presenter.RenderCountdown)

	if s.store != nil {
		if v, err := s.store.GetPreference(context.Background(), store.PrefFilter); err == nil && v != "" {
			if f, err := classify.ParseFilter(v); err == nil {
				s.filter = f
			}
		}
	}
	return s
}

// Generate creates a new mailbox, replacing the current one.
func (s *Service) Generate(ctx context.Context, preferredName string) (session.Account, error) {
	acct, err := s.session.Start(ctx, preferredName)
	if err != nil {
		log.Printf("generating mailbox: %v", err)
		s.notify(generateFailure(err), model.SeverityError)
		return session.Account{}, err
	}

	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()

	if preferredName != "" {
		s.savePreference(store.PrefPreferredName, preferredName)
	}

	s.render()
	s.poller.Refresh()
	s.notify("New temporary email created!", model.SeveritySuccess)
	return acct, nil
}

// Delete forgets the current mailbox. The provider account is left to
// expire on its own.
func (s *Service) Delete() {
	s.session.Destroy()

	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()

	s.render()
	s.presenter.RenderCountdown(s.session.Countdown())
	s.notify("Temporary email deleted", model.SeverityInfo)
}

// Refresh fetches the inbox now. The result arrives through RenderInbox.
func (s *Service) Refresh() {
	if !s.session.Active() {
		s.render()
		return
	}
	s.poller.Refresh()
}

// EnablePolling refreshes the inbox every interval until disabled.
func (s *Service) EnablePolling(interval time.Duration) {
	s.poller.Enable(interval)
	s.notify("Auto-refresh enabled", model.SeverityInfo)
	s.render()
}

// DisablePolling stops automatic refreshes.
func (s *Service) DisablePolling() {
	s.poller.Disable()
	s.notify("Auto-refresh disabled", model.SeverityInfo)
	s.render()
}

// TogglePolling flips automatic refresh and reports whether it is now on.
func (s *Service) TogglePolling(interval time.Duration) bool {
	if s.Polling() {
		s.DisablePolling()
		return false
	}
	s.EnablePolling(interval)
	return true
}

// Polling reports whether automatic refresh is on.
func (s *Service) Polling() bool {
	return s.poller.State() == sync.StatePolling
}

// PollInterval returns the automatic refresh period, or zero when
// polling is off.
func (s *Service) PollInterval() time.Duration {
	return s.poller.Interval()
}

// Open fetches and renders the full message. A message classified as an
// OTP mail has its code extracted straight away. ErrSuperseded is
// returned when the mailbox was replaced or deleted during the fetch.
func (s *Service) Open(ctx context.Context, id string) (*Detail, error) {
	gen := s.session.Generation()
	token := s.session.Token()

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	msg, err := s.provider.FetchMessage(ctx, token, id)
	if err != nil {
		log.Printf("opening message %s: %v", id, err)
		s.notify("Failed to load email", model.SeverityError)
		return nil, err
	}
	body := render.MessageBody(msg)
	detail := &Detail{
		Message:  msg,
		Category: classify.Classify(*msg),
		Body:     body,
		Text:     render.DisplayText(body),
	}

	s.mu.Lock()
	if gen != s.session.Generation() {
		s.mu.Unlock()
		return nil, ErrSuperseded
	}
	s.current = detail
	s.mu.Unlock()

	if detail.Category == model.CategoryOTP {
		code, found := otp.Extract(detail.Text)
		s.presenter.RenderMessageDetail(*detail, code, found)
		return detail, nil
	}

	s.presenter.RenderMessageDetail(*detail, "", false)
	return detail, nil
}

// CloseMessage dismisses the open message.
func (s *Service) CloseMessage() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

// Current returns the open message, if any.
func (s *Service) Current() (Detail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Detail{}, false
	}
	return *s.current, true
}

// ExtractOTP looks for a code in the open message.
func (s *Service) ExtractOTP() (string, bool) {
	detail, ok := s.Current()
	if !ok {
		return "", false
	}

	code, found := otp.Extract(detail.Text)
	s.presenter.RenderMessageDetail(detail, code, found)
	if found {
		s.notify("OTP extracted from email", model.SeveritySuccess)
	} else {
		s.notify("No OTP code found in this email", model.SeverityInfo)
	}
	return code, found
}

// ShowSource loads and parses the raw source of the open message.
func (s *Service) ShowSource(ctx context.Context) (*render.Source, error) {
	detail, ok := s.Current()
	if !ok {
		return nil, ErrNoMessage
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	raw, err := s.provider.FetchSource(ctx, s.session.Token(), detail.Message.ID)
	if err != nil {
		log.Printf("loading source of %s: %v", detail.Message.ID, err)
		s.notify("Failed to load message source", model.SeverityError)
		return nil, err
	}

	src, err := render.ParseSource(raw)
	if err != nil {
		log.Printf("parsing source of %s: %v", detail.Message.ID, err)
		// Headers may still be usable; keep the raw text regardless.
		if src == nil {
			src = &render.Source{Raw: raw}
		}
	}

	s.mu.Lock()
	if s.current != nil && s.current.Message.ID == detail.Message.ID {
		s.current.Source = src
	}
	s.mu.Unlock()

	return src, nil
}

// SetFilter changes which categories are listed.
func (s *Service) SetFilter(f classify.Filter) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()

	s.savePreference(store.PrefFilter, string(f))
	s.render()
}

// Filter returns the active filter.
func (s *Service) Filter() classify.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Address returns the active mailbox address, or "".
func (s *Service) Address() string {
	return s.session.Address()
}

// Session exposes the underlying session.
func (s *Service) Session() *session.Session {
	return s.session
}

// PreferredName returns the last preferred name used, if remembered.
func (s *Service) PreferredName() string {
	if s.store == nil {
		return ""
	}
	v, err := s.store.GetPreference(context.Background(), store.PrefPreferredName)
	if err != nil {
		log.Printf("reading preferred name: %v", err)
		return ""
	}
	return v
}

// Close stops polling and the countdown and waits for in-flight fetches.
// The mailbox credential is removed.
func (s *Service) Close() {
	s.poller.Close()
	s.session.Destroy()
}

// handleResult receives every fresh poll result.
func (s *Service) handleResult(res sync.Result) {
	if res.Token != s.session.Token() {
		// Fetched for a mailbox that has since been replaced or deleted.
		return
	}

	if res.Err != nil {
		if errors.Is(res.Err, provider.ErrNoToken) {
			s.render()
			return
		}
		if provider.IsUnauthorized(res.Err) && s.reauthenticate(res.Token) {
			s.poller.Refresh()
			return
		}

		log.Printf("refreshing inbox (%s): %v", res.Trigger, res.Err)
		s.mu.Lock()
		if res.Token != s.session.Token() {
			s.mu.Unlock()
			return
		}
		s.stale = true
		s.lastErr = res.Err
		s.mu.Unlock()
		s.render()

		// Scheduled failures only mark the listing stale.
		if res.Trigger == sync.TriggerManual {
			s.notify("Failed to refresh inbox", model.SeverityWarning)
		}
		return
	}

	s.mu.Lock()
	// Generate swaps the token before it resets state under s.mu.
	if res.Token != s.session.Token() {
		s.mu.Unlock()
		return
	}
	fresh := 0
	for _, m := range res.Messages {
		if !s.seen[m.ID] {
			s.seen[m.ID] = true
			fresh++
		}
	}
	s.messages = res.Messages
	s.stale = false
	s.lastErr = nil
	s.updatedAt = res.At
	s.mu.Unlock()

	s.render()

	switch {
	case fresh == 1:
		s.notify("1 new email", model.SeverityInfo)
	case fresh > 1:
		s.notify(fmt.Sprintf("%d new emails", fresh), model.SeverityInfo)
	}
}

// reauthenticate tries once per token to replace a rejected token.
func (s *Service) reauthenticate(token string) bool {
	s.mu.Lock()
	if s.reauthFor == token {
		s.mu.Unlock()
		return false
	}
	s.reauthFor = token
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if _, err := s.session.Reauthenticate(ctx); err != nil {
		log.Printf("re-authenticating %s: %v", s.session.Address(), err)
		return false
	}
	return true
}

func (s *Service) render() {
	s.mu.Lock()
	view := View{
		Address:   s.session.Address(),
		Messages:  classify.FilterMessages(s.messages, s.filter),
		Total:     len(s.messages),
		Filter:    s.filter,
		Stale:     s.stale,
		Err:       s.lastErr,
		UpdatedAt: s.updatedAt,
	}
	s.mu.Unlock()

	view.Polling = s.Polling()
	if !view.HasSession() {
		view.Messages = nil
		view.Total = 0
	}
	s.presenter.RenderInbox(view)
}

func (s *Service) notify(message string, severity model.Severity) {
	s.presenter.Notify(message, severity)

	if s.store == nil {
		return
	}
	ctx := context.Background()
	err := s.store.CreateNotification(ctx, model.Notification{
		Message:   message,
		Severity:  severity,
		CreatedAt: time.Now(),
	})
	if err != nil {
		log.Printf("recording notification: %v", err)
		return
	}
	if err := s.store.PruneNotifications(ctx, notificationHistory); err != nil {
		log.Printf("pruning notifications: %v", err)
	}
}

// generateFailure picks the notice shown when a mailbox cannot be made.
func generateFailure(err error) string {
	switch {
	case provider.IsProvisioningError(err):
		return "Failed to generate email: the provider rejected the new account"
	case provider.IsAuthenticationError(err):
		return "Failed to generate email: could not sign in to the new account"
	default:
		return fmt.Sprintf("Failed to generate email: %v", err)
	}
}

func (s *Service) savePreference(key, value string) {
	if s.store == nil {
		return
	}
	if err := s.store.SetPreference(context.Background(), key, value); err != nil {
		log.Printf("saving preference %s: %v", key, err)
	}
}

func (s *Service) resetLocked() {
	s.messages = nil
	s.seen = make(map[string]bool)
	s.stale = false
	s.lastErr = nil
	s.updatedAt = time.Time{}
	s.current = nil
	s.reauthFor = ""
}
