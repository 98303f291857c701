package model

import "time"

// Category is the derived classification of a message. It is computed on
// every render and never stored.
type Category string

const (
	CategoryOTP           Category = "otp"
	CategoryNotifications Category = "notifications"
	CategoryUpdates       Category = "updates"
	CategoryOther         Category = "other"
)

// Categories lists every category in classification order.
var Categories = []Category{
	CategoryOTP,
	CategoryNotifications,
	CategoryUpdates,
	CategoryOther,
}

// Address is a mail participant. Address is always set; Name is optional.
type Address struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// Display returns the name when present, then the address, then a
// placeholder for an unknown sender.
func (a Address) Display() string {
	if a.Name != "" {
		return a.Name
	}
	if a.Address != "" {
		return a.Address
	}
	return "Unknown Sender"
}

// MessageSummary is a message as it appears in the inbox listing.
type MessageSummary struct {
	// ID is the provider-assigned identifier.
	ID string `json:"id"`

	From    Address   `json:"from"`
	To      []Address `json:"to,omitempty"`
	Subject string    `json:"subject"`

	// Intro is the provider-supplied excerpt of the body, available on
	// listing records that carry no full body.
	Intro string `json:"intro,omitempty"`

	// IsSeen is the provider-controlled read flag.
	IsSeen bool `json:"seen"`

	HasAttachments bool      `json:"hasAttachments"`
	Size           int       `json:"size"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Message is a full message including its body. When HTML is present it
// is the authoritative body for display.
type Message struct {
	MessageSummary

	Text        string       `json:"text,omitempty"`
	HTML        string       `json:"html,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment holds metadata about a message attachment.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}
