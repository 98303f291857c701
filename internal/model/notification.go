package model

import "time"

// Severity is the level of a user-visible notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a message surfaced to the user, kept in the local
// history so the header can show how many are unread.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id" db:"id"`

	// Message is the human-readable notification text.
	Message string `json:"message" db:"message"`

	// Severity controls how the notification is styled.
	Severity Severity `json:"severity" db:"severity"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read" db:"read"`

	// CreatedAt is when this notification was generated.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
