package notification

import (
	"context"
	"database/sql"
	"fmt"
)

// Repository handles notification data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new notification repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new notification and returns the persisted row
func (r *Repository) Create(ctx context.Context, recipientID int64, notificationType Type, content, url string) (*Notification, error) {
	query := `
		INSERT INTO notifications (recipient_id, notification_type, content, url)
		VALUES ($1, $2, $3, $4)
		RETURNING id, recipient_id, notification_type, content, url, is_read, created_at
	`

	notification := &Notification{}
	err := r.db.QueryRowContext(ctx, query, recipientID, notificationType, content, url).Scan(
		&notification.ID,
		&notification.RecipientID,
		&notification.Type,
		&notification.Content,
		&notification.URL,
		&notification.IsRead,
		&notification.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	return notification, nil
}

// GetByID retrieves a notification by its ID, or nil when absent
func (r *Repository) GetByID(ctx context.Context, id int64) (*Notification, error) {
	query := `
		SELECT id, recipient_id, notification_type, content, url, is_read, created_at
		FROM notifications
		WHERE id = $1
	`

	notification := &Notification{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&notification.ID,
		&notification.RecipientID,
		&notification.Type,
		&notification.Content,
		&notification.URL,
		&notification.IsRead,
		&notification.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}

	return notification, nil
}

// ListByRecipientID retrieves all notifications for a recipient, newest first
func (r *Repository) ListByRecipientID(ctx context.Context, recipientID int64) ([]*Notification, error) {
	query := `
		SELECT id, recipient_id, notification_type, content, url, is_read, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		notification := &Notification{}
		if err := rows.Scan(
			&notification.ID,
			&notification.RecipientID,
			&notification.Type,
			&notification.Content,
			&notification.URL,
			&notification.IsRead,
			&notification.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, notification)
	}

	return notifications, nil
}

// MarkAsRead flips the read flag and returns the updated row
func (r *Repository) MarkAsRead(ctx context.Context, id int64) (*Notification, error) {
	query := `
		UPDATE notifications
		SET is_read = true
		WHERE id = $1
		RETURNING id, recipient_id, notification_type, content, url, is_read, created_at
	`

	notification := &Notification{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&notification.ID,
		&notification.RecipientID,
		&notification.Type,
		&notification.Content,
		&notification.URL,
		&notification.IsRead,
		&notification.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark notification as read: %w", err)
	}

	return notification, nil
}

// Delete removes a single notification
func (r *Repository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM notifications WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

// DeleteAllRead removes every read notification of the recipient and reports
// how many rows were removed
func (r *Repository) DeleteAllRead(ctx context.Context, recipientID int64) (int64, error) {
	query := `DELETE FROM notifications WHERE recipient_id = $1 AND is_read = true`

	result, err := r.db.ExecContext(ctx, query, recipientID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete read notifications: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}
