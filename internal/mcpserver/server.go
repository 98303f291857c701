// Package mcpserver exposes the temporary mailbox to MCP clients over
// stdio, so an agent can create an address, wait for a verification mail
// and read its code.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nhle/meltmail/internal/classify"
	"github.com/nhle/meltmail/internal/model"
	"github.com/nhle/meltmail/internal/otp"
	"github.com/nhle/meltmail/internal/provider"
	"github.com/nhle/meltmail/internal/render"
	"github.com/nhle/meltmail/internal/session"
)

const (
	// defaultPollEvery is how often get_otp re-checks the inbox while
	// waiting.
	defaultPollEvery = 2 * time.Second

	// maxWait caps wait_seconds.
	maxWait = 5 * time.Minute

	// maxScan is how many messages get_otp opens looking for a code.
	maxScan = 10

	mailboxURI = "mailbox://current"
)

// ErrNoMailbox is returned by tools that need a mailbox when none exists.
var ErrNoMailbox = errors.New("no mailbox; call create_mailbox first")

// MessageProvider is the part of the provider API the server reads from.
type MessageProvider interface {
	ListMessages(ctx context.Context, token string) ([]model.MessageSummary, error)
	FetchMessage(ctx context.Context, token, id string) (*model.Message, error)
}

// Server provides MCP access to one temporary mailbox.
type Server struct {
	session   *session.Session
	provider  MessageProvider
	version   string
	pollEvery time.Duration
}

// NewServer creates a server backed by sess and p.
func NewServer(sess *session.Session, p MessageProvider, version string) *Server {
	return &Server{
		session:   sess,
		provider:  p,
		version:   version,
		pollEvery: defaultPollEvery,
	}
}

// CreateMailboxInput defines input for the create_mailbox tool.
type CreateMailboxInput struct {
	Name string `json:"name,omitempty" jsonschema:"preferred local part; letters and digits are kept, empty picks a random name"`
}

// MailboxOutput describes the active mailbox.
type MailboxOutput struct {
	Address          string `json:"address"`
	Active           bool   `json:"active"`
	Expired          bool   `json:"expired"`
	RemainingSeconds int    `json:"remainingSeconds"`
}

// ListMessagesInput defines input for the list_messages tool.
type ListMessagesInput struct {
	Category string `json:"category,omitempty" jsonschema:"one of all, otp, notifications, updates, other"`
}

// MessageSummary is a listing record as returned to the client.
type MessageSummary struct {
	ID         string `json:"id"`
	From       string `json:"from"`
	Subject    string `json:"subject"`
	Category   string `json:"category"`
	Preview    string `json:"preview"`
	Seen       bool   `json:"seen"`
	ReceivedAt string `json:"receivedAt"`
}

// ListMessagesOutput defines output for the list_messages tool.
type ListMessagesOutput struct {
	Messages []MessageSummary `json:"messages"`
	Count    int              `json:"count"`
}

// GetMessageInput defines input for the get_message tool.
type GetMessageInput struct {
	ID string `json:"id" jsonschema:"message id from list_messages"`
}

// GetMessageOutput defines output for the get_message tool.
type GetMessageOutput struct {
	ID         string   `json:"id"`
	From       string   `json:"from"`
	Subject    string   `json:"subject"`
	Category   string   `json:"category"`
	ReceivedAt string   `json:"receivedAt"`
	Text       string   `json:"text"`
	OTP        string   `json:"otp,omitempty"`
	Attachment []string `json:"attachments,omitempty"`
}

// GetOTPInput defines input for the get_otp tool.
type GetOTPInput struct {
	ID          string `json:"id,omitempty" jsonschema:"message to read; empty searches the inbox, newest OTP mail first"`
	WaitSeconds int    `json:"wait_seconds,omitempty" jsonschema:"keep checking the inbox for up to this many seconds (max 300)"`
}

// GetOTPOutput defines output for the get_otp tool.
type GetOTPOutput struct {
	Found     bool   `json:"found"`
	Code      string `json:"code,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

// DeleteMailboxOutput defines output for the delete_mailbox tool.
type DeleteMailboxOutput struct {
	Deleted bool   `json:"deleted"`
	Address string `json:"address,omitempty"`
}

// MCP builds the MCP server with every tool and resource registered.
func (s *Server) MCP() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "meltmail",
		Version: s.version,
	}, nil)

	server.AddResource(
		&mcp.Resource{
			URI:         mailboxURI,
			Name:        "Current mailbox",
			Description: "Address and remaining lifetime of the active temporary mailbox",
			MIMEType:    "application/json",
		},
		s.resourceMailbox,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_mailbox",
		Description: "Create a new temporary email address, replacing the current one",
	}, s.createMailbox)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_messages",
		Description: "List messages in the temporary inbox, optionally filtered by category",
	}, s.listMessages)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_message",
		Description: "Read a message as plain text",
	}, s.getMessage)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_otp",
		Description: "Find a one-time code (4 to 8 digits) in a message, optionally waiting for it to arrive",
	}, s.getOTP)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_mailbox",
		Description: "Forget the current temporary email address",
	}, s.deleteMailbox)

	return server
}

// Run serves MCP over stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.MCP().Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) resourceMailbox(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(s.mailbox(), "", "  ")
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      mailboxURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}

func (s *Server) mailbox() MailboxOutput {
	c := s.session.Countdown()
	return MailboxOutput{
		Address:          s.session.Address(),
		Active:           c.Active,
		Expired:          c.Expired,
		RemainingSeconds: int(c.Remaining / time.Second),
	}
}

func (s *Server) createMailbox(ctx context.Context, req *mcp.CallToolRequest, input CreateMailboxInput) (*mcp.CallToolResult, *MailboxOutput, error) {
	if _, err := s.session.Start(ctx, input.Name); err != nil {
		return nil, nil, fmt.Errorf("creating mailbox: %w", err)
	}
	out := s.mailbox()
	return nil, &out, nil
}

func (s *Server) listMessages(ctx context.Context, req *mcp.CallToolRequest, input ListMessagesInput) (*mcp.CallToolResult, *ListMessagesOutput, error) {
	filter, err := classify.ParseFilter(input.Category)
	if err != nil {
		return nil, nil, err
	}

	msgs, err := s.list(ctx)
	if err != nil {
		return nil, nil, err
	}

	out := &ListMessagesOutput{Messages: make([]MessageSummary, 0, len(msgs))}
	for _, m := range classify.FilterMessages(msgs, filter) {
		out.Messages = append(out.Messages, MessageSummary{
			ID:         m.ID,
			From:       m.From.Display(),
			Subject:    m.Subject,
			Category:   string(m.Category),
			Preview:    m.Preview,
			Seen:       m.IsSeen,
			ReceivedAt: formatTime(m.CreatedAt),
		})
	}
	out.Count = len(out.Messages)
	return nil, out, nil
}

func (s *Server) getMessage(ctx context.Context, req *mcp.CallToolRequest, input GetMessageInput) (*mcp.CallToolResult, *GetMessageOutput, error) {
	if input.ID == "" {
		return nil, nil, errors.New("id is required")
	}

	msg, text, err := s.open(ctx, input.ID)
	if err != nil {
		return nil, nil, err
	}

	out := &GetMessageOutput{
		ID:         msg.ID,
		From:       msg.From.Display(),
		Subject:    msg.Subject,
		Category:   string(classify.Classify(*msg)),
		ReceivedAt: formatTime(msg.CreatedAt),
		Text:       text,
	}
	if code, ok := otp.Extract(text); ok {
		out.OTP = code
	}
	for _, a := range msg.Attachments {
		out.Attachment = append(out.Attachment, a.Filename)
	}
	return nil, out, nil
}

func (s *Server) getOTP(ctx context.Context, req *mcp.CallToolRequest, input GetOTPInput) (*mcp.CallToolResult, *GetOTPOutput, error) {
	wait := time.Duration(input.WaitSeconds) * time.Second
	if wait > maxWait {
		wait = maxWait
	}
	deadline := time.Now().Add(wait)

	for {
		out, err := s.findOTP(ctx, input.ID)
		if err != nil {
			return nil, nil, err
		}
		if out.Found || !time.Now().Before(deadline) {
			return nil, out, nil
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(s.pollEvery):
		}
	}
}

// findOTP extracts a code from message id, or when id is empty from the
// first message that has one: OTP-classified mail first, then the rest,
// newest first within each group.
func (s *Server) findOTP(ctx context.Context, id string) (*GetOTPOutput, error) {
	if id != "" {
		_, text, err := s.open(ctx, id)
		if err != nil {
			return nil, err
		}
		code, found := otp.Extract(text)
		return &GetOTPOutput{Found: found, Code: code, MessageID: id}, nil
	}

	msgs, err := s.list(ctx)
	if err != nil {
		return nil, err
	}

	ordered := classify.FilterMessages(msgs, classify.Filter(model.CategoryOTP))
	for _, m := range msgs {
		if m.Category != model.CategoryOTP {
			ordered = append(ordered, m)
		}
	}
	if len(ordered) > maxScan {
		ordered = ordered[:maxScan]
	}

	for _, m := range ordered {
		_, text, err := s.open(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if code, found := otp.Extract(text); found {
			return &GetOTPOutput{Found: true, Code: code, MessageID: m.ID}, nil
		}
	}
	return &GetOTPOutput{}, nil
}

func (s *Server) deleteMailbox(ctx context.Context, req *mcp.CallToolRequest, input struct{}) (*mcp.CallToolResult, *DeleteMailboxOutput, error) {
	address := s.session.Address()
	s.session.Destroy()
	return nil, &DeleteMailboxOutput{Deleted: address != "", Address: address}, nil
}

func (s *Server) list(ctx context.Context) ([]classify.Classified, error) {
	var summaries []model.MessageSummary
	err := s.withToken(ctx, func(token string) error {
		var err error
		summaries, err = s.provider.ListMessages(ctx, token)
		return err
	})
	if err != nil {
		return nil, err
	}
	return classify.All(summaries), nil
}

// open fetches a message and returns it with its display text.
func (s *Server) open(ctx context.Context, id string) (*model.Message, string, error) {
	var msg *model.Message
	err := s.withToken(ctx, func(token string) error {
		var err error
		msg, err = s.provider.FetchMessage(ctx, token, id)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return msg, render.DisplayText(render.MessageBody(msg)), nil
}

// withToken calls fn with the session token. A rejected token is
// replaced once and fn retried.
func (s *Server) withToken(ctx context.Context, fn func(token string) error) error {
	if !s.session.Active() {
		return ErrNoMailbox
	}

	err := fn(s.session.Token())
	if err == nil || !provider.IsUnauthorized(err) {
		return err
	}

	token, rerr := s.session.Reauthenticate(ctx)
	if rerr != nil {
		log.Printf("re-authenticating %s: %v", s.session.Address(), rerr)
		return err
	}
	return fn(token)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
