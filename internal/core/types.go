package core

import (
	"time"

	"github.com/orrn/printdesk/internal/model"
)

// Publisher pushes committed notifications to live subscribers.
type Publisher interface {
	Publish(n *model.Notification)
}

// EventSender receives lifecycle events after the owning transaction commits.
type EventSender interface {
	SendJobSubmitted(job *model.PrintJob, file *model.File)
	SendJobStatusChanged(job *model.PrintJob, previous model.JobStatus)
	SendNotificationCreated(n *model.Notification)
}

type nopPublisher struct{}

func (nopPublisher) Publish(*model.Notification) {}

type nopEvents struct{}

func (nopEvents) SendJobSubmitted(*model.PrintJob, *model.File)          {}
func (nopEvents) SendJobStatusChanged(*model.PrintJob, model.JobStatus) {}
func (nopEvents) SendNotificationCreated(*model.Notification)           {}

var now = func() time.Time { return time.Now().UTC() }
