package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/orrn/printdesk/internal/model"
)

const maxListLimit = 100

func (q *queries) CreateFile(ctx context.Context, f *model.File) error {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	result, err := q.q.ExecContext(ctx, InsertFile,
		f.UserID, f.FileName, f.FilePath, f.FileType, f.CreatedAt)
	if err != nil {
		return persistErr(err, "create file %q", f.FileName)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return persistErr(err, "get file id")
	}
	f.ID = id
	return nil
}

func (q *queries) GetFile(ctx context.Context, id int64) (*model.File, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	f := &model.File{}
	err := q.q.QueryRowContext(ctx, GetFileByID, id).Scan(
		&f.ID, &f.UserID, &f.FileName, &f.FilePath, &f.FileType, &f.CreatedAt)
	if err != nil {
		return nil, getErr(err, "file", id)
	}
	return f, nil
}

func (q *queries) CreateJob(ctx context.Context, j *model.PrintJob) error {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	if j.UpdatedAt.IsZero() {
		j.UpdatedAt = j.CreatedAt
	}
	if j.Status == "" {
		j.Status = model.JobStatusPending
	}

	result, err := q.q.ExecContext(ctx, InsertJob,
		j.UserID, j.FileID, j.Pages, j.PaperSize, j.ColorOption,
		j.Copies, j.Notes, j.Status, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return persistErr(err, "create job")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return persistErr(err, "get job id")
	}
	j.ID = id
	return nil
}

func (q *queries) GetJob(ctx context.Context, id int64) (*model.PrintJob, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	j, err := scanJob(q.q.QueryRowContext(ctx, GetJobByID, id))
	if err != nil {
		return nil, getErr(err, "job", id)
	}
	return j, nil
}

func (q *queries) SetJobStatus(ctx context.Context, id int64, from, to model.JobStatus, at time.Time) (bool, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	result, err := q.q.ExecContext(ctx, UpdateJobStatus, to, at, id, from)
	if err != nil {
		return false, persistErr(err, "update job %d status", id)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, persistErr(err, "get affected rows")
	}
	return affected == 1, nil
}

func (q *queries) ListRecentJobs(ctx context.Context, userID int64, limit int) ([]*model.PrintJob, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	rows, err := q.q.QueryContext(ctx, ListRecentJobsByUser, userID, limit)
	if err != nil {
		return nil, persistErr(err, "list recent jobs for user %d", userID)
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (q *queries) ListJobs(ctx context.Context, filter model.JobFilter) ([]*model.PrintJob, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	var conditions []string
	var args []interface{}

	if filter.UserID > 0 {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	query := "SELECT " + jobColumns + " FROM print_jobs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, job_id DESC LIMIT ? OFFSET ?"

	limit := 50
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr(err, "list jobs")
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (q *queries) CountJobsByStatus(ctx context.Context) (map[model.JobStatus]int, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	rows, err := q.q.QueryContext(ctx, CountJobsByStatus)
	if err != nil {
		return nil, persistErr(err, "count jobs by status")
	}
	defer rows.Close()

	counts := make(map[model.JobStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, persistErr(err, "scan job count")
		}
		counts[model.JobStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(err, "count jobs by status")
	}
	return counts, nil
}

func (q *queries) History(ctx context.Context, userID int64) ([]model.HistoryEntry, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	rows, err := q.q.QueryContext(ctx, ListHistoryByUser, userID)
	if err != nil {
		return nil, persistErr(err, "list history for user %d", userID)
	}
	defer rows.Close()

	entries := make([]model.HistoryEntry, 0)
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(&e.JobID, &e.FileName, &e.SubmittedAt, &e.Status, &e.Pages, &e.Copies); err != nil {
			return nil, persistErr(err, "scan history entry")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(err, "list history for user %d", userID)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*model.PrintJob, error) {
	j := &model.PrintJob{}
	var fileID sql.NullInt64
	err := row.Scan(
		&j.ID, &j.UserID, &fileID, &j.Pages, &j.PaperSize, &j.ColorOption,
		&j.Copies, &j.Notes, &j.Status, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if fileID.Valid {
		id := fileID.Int64
		j.FileID = &id
	}
	return j, nil
}

func scanJobs(rows *sql.Rows) ([]*model.PrintJob, error) {
	jobs := make([]*model.PrintJob, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, persistErr(err, "scan job")
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(err, "iterate jobs")
	}
	return jobs, nil
}
