package store

import (
	"context"

	"github.com/nhle/meltmail/internal/model"
)

// Preference keys.
const (
	PrefPreferredName = "preferred_name"
	PrefFilter        = "filter"
)

// Store defines the persistence interface for user preferences and the
// notification history. Mailboxes and messages are never stored.
type Store interface {
	// === Preferences ===

	GetPreference(ctx context.Context, key string) (string, error)
	SetPreference(ctx context.Context, key, value string) error

	// === Notifications ===

	CreateNotification(ctx context.Context, n model.Notification) error
	GetRecentNotifications(ctx context.Context, limit int) ([]model.Notification, error)
	CountUnreadNotifications(ctx context.Context) (int, error)
	MarkAllNotificationsRead(ctx context.Context) error
	PruneNotifications(ctx context.Context, keep int) error
}
