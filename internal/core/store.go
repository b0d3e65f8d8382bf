package core

import (
	"context"
	"time"

	"github.com/orrn/printdesk/internal/model"
)

// Store is the repository the services run against. WithTx runs fn inside one
// storage transaction; fn's Queries must not be used after it returns.
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(q Queries) error) error
}

type Queries interface {
	UserQueries
	JobQueries
	NotificationQueries
	AuditQueries
}

type UserQueries interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	// UserIdentityTaken reports whether another user (not excludeID) already
	// has the fullname, username or email.
	UserIdentityTaken(ctx context.Context, fullname, username, email string, excludeID int64) (bool, error)
	UpdateUser(ctx context.Context, u *model.User) error
}

type JobQueries interface {
	CreateFile(ctx context.Context, f *model.File) error
	GetFile(ctx context.Context, id int64) (*model.File, error)
	CreateJob(ctx context.Context, j *model.PrintJob) error
	GetJob(ctx context.Context, id int64) (*model.PrintJob, error)
	// SetJobStatus moves a job from one status to another and reports
	// whether a row matched both the id and the expected current status.
	SetJobStatus(ctx context.Context, id int64, from, to model.JobStatus, at time.Time) (bool, error)
	ListRecentJobs(ctx context.Context, userID int64, limit int) ([]*model.PrintJob, error)
	ListJobs(ctx context.Context, filter model.JobFilter) ([]*model.PrintJob, error)
	CountJobsByStatus(ctx context.Context) (map[model.JobStatus]int, error)
	History(ctx context.Context, userID int64) ([]model.HistoryEntry, error)
}

type NotificationQueries interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	GetNotification(ctx context.Context, id int64) (*model.Notification, error)
	ListNotificationsFor(ctx context.Context, userID int64) ([]*model.Notification, error)
	// MarkNotificationRead reports whether the row changed; an unknown id is
	// a not-found error.
	MarkNotificationRead(ctx context.Context, id int64) (bool, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
}

type AuditQueries interface {
	CreateAuditLog(ctx context.Context, l *model.AuditLog) error
	ListAuditLogs(ctx context.Context, entityType string, entityID int64) ([]*model.AuditLog, error)
}
