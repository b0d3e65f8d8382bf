package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/orrn/printdesk/internal/model"
)

func (q *queries) CreateNotification(ctx context.Context, n *model.Notification) error {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Status == "" {
		n.Status = model.NotificationUnread
	}

	result, err := q.q.ExecContext(ctx, InsertNotification,
		n.UserID, n.Subject, n.Message, n.Status, n.CreatedAt)
	if err != nil {
		return persistErr(err, "create notification")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return persistErr(err, "get notification id")
	}
	n.ID = id
	return nil
}

func (q *queries) GetNotification(ctx context.Context, id int64) (*model.Notification, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	n, err := scanNotification(q.q.QueryRowContext(ctx, GetNotificationByID, id))
	if err != nil {
		return nil, getErr(err, "notification", id)
	}
	return n, nil
}

func (q *queries) ListNotificationsFor(ctx context.Context, userID int64) ([]*model.Notification, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	rows, err := q.q.QueryContext(ctx, ListNotificationsForUser, userID)
	if err != nil {
		return nil, persistErr(err, "list notifications for user %d", userID)
	}
	defer rows.Close()

	notifications := make([]*model.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, persistErr(err, "scan notification")
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(err, "list notifications for user %d", userID)
	}
	return notifications, nil
}

func (q *queries) MarkNotificationRead(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	result, err := q.q.ExecContext(ctx, MarkNotificationRead, id)
	if err != nil {
		return false, persistErr(err, "mark notification %d read", id)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, persistErr(err, "get affected rows")
	}
	if affected > 0 {
		return true, nil
	}

	var exists bool
	if err := q.q.QueryRowContext(ctx, NotificationExists, id).Scan(&exists); err != nil {
		return false, persistErr(err, "check notification %d", id)
	}
	if !exists {
		return false, getErr(sql.ErrNoRows, "notification", id)
	}
	return false, nil
}

func (q *queries) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	result, err := q.q.ExecContext(ctx, MarkAllReadForUser, userID)
	if err != nil {
		return 0, persistErr(err, "mark all notifications read for user %d", userID)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, persistErr(err, "get affected rows")
	}
	return affected, nil
}

func (q *queries) CountUnread(ctx context.Context, userID int64) (int, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	var count int
	if err := q.q.QueryRowContext(ctx, CountUnreadForUser, userID).Scan(&count); err != nil {
		return 0, persistErr(err, "count unread notifications for user %d", userID)
	}
	return count, nil
}

func scanNotification(row rowScanner) (*model.Notification, error) {
	n := &model.Notification{}
	var userID sql.NullInt64
	if err := row.Scan(&n.ID, &userID, &n.Subject, &n.Message, &n.Status, &n.CreatedAt); err != nil {
		return nil, err
	}
	if userID.Valid {
		id := userID.Int64
		n.UserID = &id
	}
	return n, nil
}
