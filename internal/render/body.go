package render

import "github.com/nhle/meltmail/internal/model"

// NoContent is shown when a message has neither an HTML nor a text body.
const NoContent = "No content available"

// Body is a message body ready for display. Preformatted bodies are plain
// text and must be shown as-is; otherwise Content is sanitized HTML.
type Body struct {
	Content      string
	Preformatted bool
}

// MessageBody picks the body to display. HTML takes precedence and is
// sanitized; a text body is kept verbatim.
func MessageBody(msg *model.Message) Body {
	if msg == nil {
		return Body{Content: NoContent, Preformatted: true}
	}
	if msg.HTML != "" {
		return Body{Content: Sanitize(msg.HTML)}
	}
	if msg.Text != "" {
		return Body{Content: msg.Text, Preformatted: true}
	}
	return Body{Content: NoContent, Preformatted: true}
}

// Text returns the display text of the body.
func (b Body) Text() string {
	return DisplayText(b)
}
