package provider

import (
	"strings"

	"github.com/nhle/meltmail/internal/model"
)

// DomainsResponse is the response from GET /domains.
type DomainsResponse struct {
	Members    []Domain `json:"hydra:member"`
	TotalItems int      `json:"hydra:totalItems"`
}

// Domain is a single domain record.
type Domain struct {
	ID        string `json:"id"`
	Domain    string `json:"domain"`
	IsActive  bool   `json:"isActive"`
	IsPrivate bool   `json:"isPrivate"`
}

// Credentials is the request body for POST /accounts and POST /token.
type Credentials struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

// Account is a provisioned mailbox and the password it was created with.
type Account struct {
	ID       string `json:"id"`
	Address  string `json:"address"`
	Password string `json:"-"`
}

// TokenResponse is the response from POST /token.
type TokenResponse struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// MessagesResponse is the response from GET /messages.
type MessagesResponse struct {
	Members    []model.MessageSummary `json:"hydra:member"`
	TotalItems int                    `json:"hydra:totalItems"`
}

// MessageRecord is the response from GET /messages/{id}. The API returns
// the HTML body as a list of parts.
type MessageRecord struct {
	model.MessageSummary

	Text        string         `json:"text"`
	HTML        []string       `json:"html"`
	Attachments []AttachRecord `json:"attachments"`
}

// AttachRecord is a single attachment entry on a message record.
type AttachRecord struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

// SourceResponse is the response from GET /sources/{id}.
type SourceResponse struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

// toMessage maps the wire record onto the domain message.
func (r MessageRecord) toMessage() *model.Message {
	msg := &model.Message{
		MessageSummary: r.MessageSummary,
		Text:           r.Text,
		HTML:           strings.Join(r.HTML, ""),
	}
	for _, a := range r.Attachments {
		msg.Attachments = append(msg.Attachments, model.Attachment{
			ID:          a.ID,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}
	return msg
}
