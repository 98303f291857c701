package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/meltmail/internal/model"
)

// CreateNotification inserts a new notification record.
func (s *SQLiteStore) CreateNotification(
	ctx context.Context,
	n model.Notification,
) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Severity == "" {
		n.Severity = model.SeverityInfo
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, message, severity, read, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.Message, string(n.Severity),
		boolToInt(n.Read), n.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}

	return nil
}

// GetRecentNotifications returns up to limit notifications, newest first.
func (s *SQLiteStore) GetRecentNotifications(
	ctx context.Context,
	limit int,
) ([]model.Notification, error) {
	query := "SELECT * FROM notifications ORDER BY created_at DESC, rowid DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.queryNotifications(ctx, query)
}

// CountUnreadNotifications returns the number of unread notifications.
func (s *SQLiteStore) CountUnreadNotifications(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM notifications WHERE read = 0"); err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return n, nil
}

// MarkAllNotificationsRead marks every notification as read.
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE notifications SET read = 1 WHERE read = 0"); err != nil {
		return fmt.Errorf("marking notifications read: %w", err)
	}
	return nil
}

// PruneNotifications deletes all but the newest keep notifications.
func (s *SQLiteStore) PruneNotifications(ctx context.Context, keep int) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM notifications WHERE id NOT IN (
			SELECT id FROM notifications ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, keep,
	)
	if err != nil {
		return fmt.Errorf("pruning notifications: %w", err)
	}
	return nil
}

func (s *SQLiteStore) queryNotifications(
	ctx context.Context,
	query string,
) ([]model.Notification, error) {
	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// scanNotification scans a notification row from a sqlx.Rows result set.
func scanNotification(rows *sqlx.Rows) (model.Notification, error) {
	var (
		n         model.Notification
		severity  string
		readInt   int
		createdAt time.Time
	)

	err := rows.Scan(&n.ID, &n.Message, &severity, &readInt, &createdAt)
	if err != nil {
		return model.Notification{}, fmt.Errorf("scanning notification row: %w", err)
	}

	n.Severity = model.Severity(severity)
	n.Read = readInt != 0
	n.CreatedAt = createdAt

	return n, nil
}
