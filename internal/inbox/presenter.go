package inbox

import (
	"time"

	"github.com/nhle/meltmail/internal/classify"
	"github.com/nhle/meltmail/internal/model"
	"github.com/nhle/meltmail/internal/render"
	"github.com/nhle/meltmail/internal/session"
)

// Presenter is implemented by a front end. Calls may arrive from any
// goroutine and must not block on the Service.
type Presenter interface {
	RenderInbox(view View)
	RenderMessageDetail(detail Detail, otp string, found bool)
	RenderCountdown(c session.Countdown)
	Notify(message string, severity model.Severity)
}

// View is the inbox as it should be shown.
type View struct {
	// Address is the active mailbox, or "" when there is none.
	Address string

	// Messages are the listing records that pass Filter, newest first as
	// returned by the provider.
	Messages []classify.Classified
	Total    int
	Filter   classify.Filter

	// Stale is set when the last fetch failed and Messages are from an
	// earlier fetch. Err is that failure.
	Stale bool
	Err   error

	Polling   bool
	UpdatedAt time.Time
}

// HasSession reports whether a mailbox exists.
func (v View) HasSession() bool {
	return v.Address != ""
}

// Detail is an opened message.
type Detail struct {
	Message  *model.Message
	Category model.Category
	Body     render.Body
	// Text is the display text of Body; OTP extraction runs on it.
	Text string
	// Source is set once the raw source has been loaded.
	Source *render.Source
}
