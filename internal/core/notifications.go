package core

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/orrn/printdesk/internal/apperr"
	"github.com/orrn/printdesk/internal/metrics"
	"github.com/orrn/printdesk/internal/model"
)

const (
	maxSubjectLen = 200
	maxMessageLen = 4000
)

// Dispatcher creates notifications and tracks their read state. A nil user id
// addresses every user through a single broadcast row.
type Dispatcher struct {
	store     Store
	publisher Publisher
	events    EventSender
	logger    *slog.Logger
}

func NewDispatcher(store Store, publisher Publisher, events EventSender, logger *slog.Logger) *Dispatcher {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if events == nil {
		events = nopEvents{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:     store,
		publisher: publisher,
		events:    events,
		logger:    logger,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, userID *int64, subject, message string) (*model.Notification, error) {
	var n *model.Notification
	err := d.store.WithTx(ctx, func(q Queries) error {
		var err error
		n, err = d.create(ctx, q, userID, subject, message)
		return err
	})
	if err != nil {
		return nil, err
	}

	d.delivered(n)
	return n, nil
}

// create inserts an Unread notification through q, so callers can make it
// part of a larger transaction. delivered must run after that commits.
func (d *Dispatcher) create(ctx context.Context, q Queries, userID *int64, subject, message string) (*model.Notification, error) {
	subject = strings.TrimSpace(subject)
	message = strings.TrimSpace(message)
	if subject == "" {
		return nil, apperr.Validation("subject is required")
	}
	if message == "" {
		return nil, apperr.Validation("message is required")
	}
	if utf8.RuneCountInString(subject) > maxSubjectLen {
		return nil, apperr.Validation("subject exceeds %d characters", maxSubjectLen)
	}
	if utf8.RuneCountInString(message) > maxMessageLen {
		return nil, apperr.Validation("message exceeds %d characters", maxMessageLen)
	}

	if userID != nil {
		exists, err := q.UserExists(ctx, *userID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, apperr.NotFound("user %d", *userID)
		}
	}

	n := &model.Notification{
		UserID:    userID,
		Subject:   subject,
		Message:   message,
		Status:    model.NotificationUnread,
		CreatedAt: now(),
	}
	if err := q.CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (d *Dispatcher) delivered(n *model.Notification) {
	audience := "user"
	if n.IsBroadcast() {
		audience = "broadcast"
	}
	metrics.NotificationsCreated.WithLabelValues(audience).Inc()

	d.logger.Info("notification created",
		slog.Int64("notif_id", n.ID),
		slog.String("audience", audience),
		slog.String("subject", n.Subject))

	d.publisher.Publish(n)
	d.events.SendNotificationCreated(n)
}

// ListFor returns the notifications addressed to userID plus broadcasts,
// newest first, read and unread alike.
func (d *Dispatcher) ListFor(ctx context.Context, userID int64) ([]*model.Notification, error) {
	return d.store.ListNotificationsFor(ctx, userID)
}

func (d *Dispatcher) Get(ctx context.Context, notifID int64) (*model.Notification, error) {
	return d.store.GetNotification(ctx, notifID)
}

// MarkRead is idempotent: a notification that is already Read stays Read and
// no error is returned.
func (d *Dispatcher) MarkRead(ctx context.Context, notifID int64) error {
	changed, err := d.store.MarkNotificationRead(ctx, notifID)
	if err != nil {
		return err
	}
	if changed {
		d.logger.Debug("notification marked read", slog.Int64("notif_id", notifID))
	}
	return nil
}

// ClearAllUnread marks every Unread notification visible to userID as Read in
// one statement and returns how many rows changed.
func (d *Dispatcher) ClearAllUnread(ctx context.Context, userID int64) (int64, error) {
	n, err := d.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	d.logger.Info("notifications cleared", slog.Int64("user_id", userID), slog.Int64("count", n))
	return n, nil
}

func (d *Dispatcher) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return d.store.CountUnread(ctx, userID)
}
