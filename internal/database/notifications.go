package database

import (
	"context"
	"fmt"
	"time"

	"labsched/internal/models"
)

func (db *DB) CreateNotification(ctx context.Context, n *models.Notification) error {
	now := time.Now().UTC()
	query := `INSERT INTO notifications (user_id, title, message, type, is_read, created_at)
              VALUES (?, ?, ?, ?, 0, ?)`
	result, err := db.ExecContext(ctx, query, n.UserID, n.Title, n.Message, n.Type, formatTime(now))
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	n.ID = id
	n.IsRead = false
	n.CreatedAt = now
	return nil
}

// GetNotifications returns the user's notifications newest first. Callers
// validate skip and limit before reaching here.
func (db *DB) GetNotifications(ctx context.Context, userID int64, unreadOnly bool, skip, limit int) ([]*models.Notification, error) {
	query := `SELECT id, user_id, title, message, type, is_read, created_at
              FROM notifications WHERE user_id = ?`
	args := []any{userID}
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, skip)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		var n models.Notification
		var createdStr string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.IsRead, &createdStr); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if n.CreatedAt, err = parseStoredTime(createdStr); err != nil {
			return nil, err
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead flips the read flag only when the notification belongs
// to userID. A miss on either id or owner reports ErrNotFound so the API does
// not reveal other users' notification ids.
func (db *DB) MarkNotificationRead(ctx context.Context, id, userID int64) error {
	query := `UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`
	result, err := db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) CountUnreadNotifications(ctx context.Context, userID int64) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}
