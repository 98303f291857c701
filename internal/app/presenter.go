package app

import (
	"log"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/meltmail/internal/inbox"
	"github.com/nhle/meltmail/internal/model"
	"github.com/nhle/meltmail/internal/session"
)

// eventBuffer is the capacity of the presenter's event channel.
const eventBuffer = 64

// inboxMsg carries a fresh inbox rendering to the UI.
type inboxMsg struct {
	view inbox.View
}

// detailMsg carries an opened (or re-rendered) message to the UI.
type detailMsg struct {
	detail inbox.Detail
	code   string
	found  bool
}

// countdownMsg carries one tick of the expiry clock.
type countdownMsg struct {
	countdown session.Countdown
}

// noticeMsg carries a user-visible notification.
type noticeMsg struct {
	text     string
	severity model.Severity
}

// Presenter turns service callbacks into Bubble Tea messages. Calls
// never block. When the UI falls behind, countdown ticks are dropped,
// only the latest inbox and detail renderings are kept, and notices are
// logged and dropped.
type Presenter struct {
	events chan tea.Msg

	mu sync.Mutex
	// Renderings that did not fit in events; delivered once it drains.
	inbox  *inboxMsg
	detail *detailMsg
}

// NewPresenter creates a presenter with a buffered event channel.
func NewPresenter() *Presenter {
	return &Presenter{events: make(chan tea.Msg, eventBuffer)}
}

// RenderInbox implements inbox.Presenter.
func (p *Presenter) RenderInbox(view inbox.View) {
	msg := inboxMsg{view: view}

	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case p.events <- msg:
		p.inbox = nil
	default:
		p.inbox = &msg
	}
}

// RenderMessageDetail implements inbox.Presenter.
func (p *Presenter) RenderMessageDetail(detail inbox.Detail, code string, found bool) {
	msg := detailMsg{detail: detail, code: code, found: found}

	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case p.events <- msg:
		p.detail = nil
	default:
		p.detail = &msg
	}
}

// RenderCountdown implements inbox.Presenter.
func (p *Presenter) RenderCountdown(c session.Countdown) {
	select {
	case p.events <- countdownMsg{countdown: c}:
	default:
		// The next tick supersedes this one.
	}
}

// Notify implements inbox.Presenter.
func (p *Presenter) Notify(message string, severity model.Severity) {
	p.send(noticeMsg{text: message, severity: severity})
}

func (p *Presenter) send(msg tea.Msg) {
	select {
	case p.events <- msg:
	default:
		log.Printf("ui event queue full, dropping %T", msg)
	}
}

// takePending returns a held-back rendering, inbox first.
func (p *Presenter) takePending() tea.Msg {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inbox != nil {
		msg := *p.inbox
		p.inbox = nil
		return msg
	}
	if p.detail != nil {
		msg := *p.detail
		p.detail = nil
		return msg
	}
	return nil
}

// waitForEvent returns a tea.Cmd that waits for the next presenter
// event. The handler must call it again to keep listening.
func (p *Presenter) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg, ok := <-p.events:
			if !ok {
				return nil
			}
			return msg
		default:
		}

		// Pending renderings are only stored while events is full, so
		// an empty queue here means nothing more can be held back.
		if msg := p.takePending(); msg != nil {
			return msg
		}

		msg, ok := <-p.events
		if !ok {
			return nil
		}
		return msg
	}
}
