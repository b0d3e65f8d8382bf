package model

import "time"

type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "Unread"
	NotificationRead   NotificationStatus = "Read"
)

// Notification is addressed to one user, or to everyone when UserID is nil.
type Notification struct {
	ID        int64              `json:"notif_id"`
	UserID    *int64             `json:"user_id"`
	Subject   string             `json:"subject"`
	Message   string             `json:"message"`
	Status    NotificationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

func (n *Notification) IsBroadcast() bool {
	return n.UserID == nil
}

// VisibleTo reports whether userID sees n in its notification list.
func (n *Notification) VisibleTo(userID int64) bool {
	return n.UserID == nil || *n.UserID == userID
}
