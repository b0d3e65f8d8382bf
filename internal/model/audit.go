package model

import "time"

const (
	AuditJobSubmitted = "job.submitted"
	AuditJobApproved  = "job.approved"
	AuditJobDeclined  = "job.declined"

	EntityPrintJob = "print_job"
)

type AuditLog struct {
	ID         int64     `json:"id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   int64     `json:"entity_id"`
	Actor      string    `json:"actor"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}
