package store

import (
	"context"
	"time"

	"github.com/emlakhub/apiserver/types"
	"github.com/jmoiron/sqlx"
)

const notificationColumns = `id, user_id, title, message, type, is_read, listing_id, created_at`

// NotificationRepository handles persistence for notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n types.Notification) (types.Notification, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	const query = `
		INSERT INTO notifications (user_id, title, message, type, is_read, listing_id, created_at)
		VALUES (:user_id, :title, :message, :type, :is_read, :listing_id, :created_at)
		RETURNING id`
	if err := namedGet(ctx, conn(ctx, r.db), &n, query, n); err != nil {
		return types.Notification{}, mapError(err)
	}
	return n, nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id int) (types.Notification, error) {
	var n types.Notification
	err := sqlx.GetContext(ctx, conn(ctx, r.db), &n,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	if err != nil {
		return types.Notification{}, mapError(err)
	}
	return n, nil
}

// ListByUser returns the user's notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID int, unreadOnly bool) ([]types.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	items := []types.Notification{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &items, query, userID); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID int) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, conn(ctx, r.db), &count,
		`SELECT COUNT(1) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID)
	return count, err
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id int) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// MarkAllRead flags every unread notification of the user and returns how many changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int) (int64, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *NotificationRepository) Delete(ctx context.Context, id int) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// DeleteRead removes the user's read notifications and returns how many were removed.
func (r *NotificationRepository) DeleteRead(ctx context.Context, userID int) (int64, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM notifications WHERE user_id = $1 AND is_read = TRUE`, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
