package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/meltmail/internal/model"
	"github.com/nhle/meltmail/internal/store"
)

// NewTestStore opens an in-memory notification store with the schema
// applied. The store is closed when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})
	return s
}

// SeedNotifications stores one unread info notification per message. The
// last message is the newest.
func SeedNotifications(t *testing.T, s store.Store, messages ...string) {
	t.Helper()

	base := time.Now().Add(-time.Duration(len(messages)) * time.Second)
	for i, msg := range messages {
		n := model.Notification{
			Message:   msg,
			Severity:  model.SeverityInfo,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.CreateNotification(context.Background(), n); err != nil {
			t.Fatalf("seeding notification %q: %v", msg, err)
		}
	}
}
