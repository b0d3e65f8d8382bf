package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/orrn/printdesk/internal/apperr"
	"github.com/orrn/printdesk/internal/metrics"
	"github.com/orrn/printdesk/internal/model"
)

const (
	DefaultRecentLimit = 5
	MaxRecentLimit     = 100

	maxNotesLen = 2000
)

type SubmitRequest struct {
	UserID      int64
	File        model.FileMeta
	Pages       int
	PaperSize   model.PaperSize
	ColorOption model.ColorOption
	Copies      int
	Notes       string
}

func (r *SubmitRequest) normalize() {
	r.File.FileName = strings.TrimSpace(r.File.FileName)
	r.File.FileType = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(r.File.FileType), "."))
	if r.File.FileType == "" {
		r.File.FileType = model.TypeFromName(r.File.FileName)
	}
	if r.PaperSize == "" {
		r.PaperSize = model.DefaultPaperSize
	}
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *SubmitRequest) validate() error {
	if r.UserID <= 0 {
		return apperr.Validation("user id must be positive, got %d", r.UserID)
	}
	if r.File.FileName == "" {
		return apperr.Validation("file name is required")
	}
	if r.Pages <= 0 {
		return apperr.Validation("pages must be positive, got %d", r.Pages)
	}
	if r.Copies <= 0 {
		return apperr.Validation("copies must be positive, got %d", r.Copies)
	}
	if !r.ColorOption.Valid() {
		return apperr.Validation("color option must be %s or %s, got %q", model.ColorBW, model.ColorColor, r.ColorOption)
	}
	if !r.PaperSize.Valid() {
		return apperr.Validation("paper size must be %s, %s or %s, got %q", model.PaperShort, model.PaperA4, model.PaperLong, r.PaperSize)
	}
	if utf8.RuneCountInString(r.Notes) > maxNotesLen {
		return apperr.Validation("notes exceed %d characters", maxNotesLen)
	}
	return nil
}

// JobManager owns the print job lifecycle: Pending on submission, then one
// decision to Approved or Declined.
type JobManager struct {
	store      Store
	dispatcher *Dispatcher
	events     EventSender
	logger     *slog.Logger
}

func NewJobManager(store Store, dispatcher *Dispatcher, events EventSender, logger *slog.Logger) *JobManager {
	if events == nil {
		events = nopEvents{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobManager{
		store:      store,
		dispatcher: dispatcher,
		events:     events,
		logger:     logger,
	}
}

// Submit records the file and its Pending job in one transaction and returns
// the job id.
func (m *JobManager) Submit(ctx context.Context, req SubmitRequest) (int64, error) {
	req.normalize()
	if err := req.validate(); err != nil {
		return 0, err
	}

	createdAt := now()
	file := &model.File{
		UserID:    req.UserID,
		FileName:  req.File.FileName,
		FilePath:  req.File.LocalPath,
		FileType:  req.File.FileType,
		CreatedAt: createdAt,
	}
	job := &model.PrintJob{
		UserID:      req.UserID,
		Pages:       req.Pages,
		PaperSize:   req.PaperSize,
		ColorOption: req.ColorOption,
		Copies:      req.Copies,
		Notes:       req.Notes,
		Status:      model.JobStatusPending,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}

	err := m.store.WithTx(ctx, func(q Queries) error {
		exists, err := q.UserExists(ctx, req.UserID)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("user %d", req.UserID)
		}

		if err := q.CreateFile(ctx, file); err != nil {
			return err
		}
		job.FileID = &file.ID
		if err := q.CreateJob(ctx, job); err != nil {
			return err
		}

		return q.CreateAuditLog(ctx, &model.AuditLog{
			Action:     model.AuditJobSubmitted,
			EntityType: model.EntityPrintJob,
			EntityID:   job.ID,
			Actor:      fmt.Sprintf("user:%d", req.UserID),
			Details:    auditDetails(map[string]interface{}{"file": file.FileName, "pages": job.Pages, "copies": job.Copies}),
			CreatedAt:  createdAt,
		})
	})
	if err != nil {
		m.logger.Warn("job submission failed",
			slog.Int64("user_id", req.UserID),
			slog.String("file", req.File.FileName),
			slog.Any("error", err))
		return 0, err
	}

	metrics.JobsSubmitted.Inc()
	m.logger.Info("job submitted",
		slog.Int64("job_id", job.ID),
		slog.Int64("user_id", job.UserID),
		slog.String("file", file.FileName),
		slog.Int("pages", job.Pages),
		slog.Int("copies", job.Copies))

	m.events.SendJobSubmitted(job, file)
	return job.ID, nil
}

// UpdateStatus decides a Pending job. The status change, its audit row and
// the owner's notification commit together; a job that is no longer Pending
// fails with an invalid-transition error.
func (m *JobManager) UpdateStatus(ctx context.Context, jobID int64, newStatus model.JobStatus, actor string) (*model.PrintJob, error) {
	if !newStatus.IsTerminal() {
		return nil, apperr.Validation("status must be %s or %s, got %q", model.JobStatusApproved, model.JobStatusDeclined, newStatus)
	}

	var (
		job      *model.PrintJob
		notif    *model.Notification
		previous model.JobStatus
	)
	err := m.store.WithTx(ctx, func(q Queries) error {
		j, err := q.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if !model.CanTransition(j.Status, newStatus) {
			return apperr.InvalidTransition("job %d is %s and cannot become %s", jobID, j.Status, newStatus)
		}

		at := now()
		ok, err := q.SetJobStatus(ctx, jobID, j.Status, newStatus, at)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidTransition("job %d was decided concurrently", jobID)
		}
		previous = j.Status
		j.Status = newStatus
		j.UpdatedAt = at

		if err := q.CreateAuditLog(ctx, &model.AuditLog{
			Action:     auditAction(newStatus),
			EntityType: model.EntityPrintJob,
			EntityID:   jobID,
			Actor:      actor,
			Details:    auditDetails(map[string]interface{}{"from": previous, "to": newStatus}),
			CreatedAt:  at,
		}); err != nil {
			return err
		}

		fileName, err := jobFileName(ctx, q, j)
		if err != nil {
			return err
		}
		subject, message := statusNotice(j, fileName)
		n, err := m.dispatcher.create(ctx, q, &j.UserID, subject, message)
		if err != nil {
			return err
		}

		job, notif = j, n
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.JobTransitions.WithLabelValues(string(newStatus)).Inc()
	m.logger.Info("job status updated",
		slog.Int64("job_id", job.ID),
		slog.String("from", string(previous)),
		slog.String("to", string(newStatus)),
		slog.String("actor", actor))

	m.dispatcher.delivered(notif)
	m.events.SendJobStatusChanged(job, previous)
	return job, nil
}

// ListRecent returns up to limit of the user's jobs, newest first. A limit
// of zero or less means DefaultRecentLimit.
func (m *JobManager) ListRecent(ctx context.Context, userID int64, limit int) ([]*model.PrintJob, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	return m.store.ListRecentJobs(ctx, userID, limit)
}

func (m *JobManager) GetJob(ctx context.Context, jobID int64) (*model.PrintJob, error) {
	return m.store.GetJob(ctx, jobID)
}

func (m *JobManager) ListJobs(ctx context.Context, filter model.JobFilter) ([]*model.PrintJob, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.Validation("unknown status %q", filter.Status)
	}
	return m.store.ListJobs(ctx, filter)
}

func (m *JobManager) Stats(ctx context.Context) (*model.JobStats, error) {
	counts, err := m.store.CountJobsByStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats := &model.JobStats{
		Pending:  counts[model.JobStatusPending],
		Approved: counts[model.JobStatusApproved],
		Declined: counts[model.JobStatusDeclined],
	}
	for _, c := range counts {
		stats.Total += c
	}
	return stats, nil
}

func (m *JobManager) AuditTrail(ctx context.Context, jobID int64) ([]*model.AuditLog, error) {
	if _, err := m.store.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return m.store.ListAuditLogs(ctx, model.EntityPrintJob, jobID)
}

func jobFileName(ctx context.Context, q Queries, j *model.PrintJob) (string, error) {
	if j.FileID == nil {
		return model.MissingFileName, nil
	}
	f, err := q.GetFile(ctx, *j.FileID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return model.MissingFileName, nil
		}
		return "", err
	}
	return f.FileName, nil
}

func statusNotice(j *model.PrintJob, fileName string) (subject, message string) {
	switch j.Status {
	case model.JobStatusApproved:
		return "Print request approved",
			fmt.Sprintf("Your print request for %q (job #%d, %d page(s) x %d) has been approved.", fileName, j.ID, j.Pages, j.Copies)
	default:
		return "Print request declined",
			fmt.Sprintf("Your print request for %q (job #%d) has been declined.", fileName, j.ID)
	}
}

func auditAction(s model.JobStatus) string {
	if s == model.JobStatusApproved {
		return model.AuditJobApproved
	}
	return model.AuditJobDeclined
}

func auditDetails(v map[string]interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
